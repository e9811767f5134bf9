// Package git provides repository cloning for deployment builds.
package git

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/oar-cd/launchpad/config"
)

// tokenUser is sent as the basic-auth username alongside an access token.
// Git hosts ignore it for token authentication but require it to be non-empty.
const tokenUser = "x-access-token"

type GitService struct {
	config *config.Config
}

func NewGitService(config *config.Config) *GitService {
	return &GitService{
		config: config,
	}
}

// createAuthMethod returns HTTP basic auth for a non-empty token, nil for public repositories
func (s *GitService) createAuthMethod(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	return &http.BasicAuth{
		Username: tokenUser,
		Password: token,
	}
}

// Clone clones the default branch of gitURL into workingDir
func (s *GitService) Clone(ctx context.Context, gitURL, workingDir, token string) error {
	slog.Debug("Cloning repository", "git_url", gitURL, "working_dir", workingDir)

	ctx, cancel := context.WithTimeout(ctx, s.config.GitTimeout)
	defer cancel()

	_, err := git.PlainCloneContext(ctx, workingDir, false, &git.CloneOptions{
		URL:          gitURL,
		SingleBranch: true,
		Auth:         s.createAuthMethod(token),
	})
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "git",
			"operation", "git_clone",
			"git_url", gitURL,
			"working_dir", workingDir,
			"error", err)
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	slog.Debug("Repository cloned successfully", "git_url", gitURL, "working_dir", workingDir)
	return nil
}

// GetLatestCommit returns the hash of HEAD in workingDir
func (s *GitService) GetLatestCommit(workingDir string) (string, error) {
	repo, err := git.PlainOpen(workingDir)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "git",
			"operation", "git_get_latest_commit",
			"working_dir", workingDir,
			"error", err)
		return "", err
	}

	ref, err := repo.Head()
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "git",
			"operation", "git_get_latest_commit",
			"working_dir", workingDir,
			"error", err)
		return "", err
	}

	return ref.Hash().String(), nil
}
