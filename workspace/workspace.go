// Package workspace acquires repositories into per-deployment build directories.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/domain"
)

// Cloner clones the default branch of a repository into a directory and
// reports the commit it checked out
type Cloner interface {
	Clone(ctx context.Context, gitURL, workingDir, token string) error
	GetLatestCommit(workingDir string) (string, error)
}

// shortCommitLength is how much of a commit hash the job log shows
const shortCommitLength = 7

// JobLog appends system lines to a deployment's log
type JobLog interface {
	Log(id uuid.UUID, message string) error
}

// Manager owns deployment-specific build directories under a common root
type Manager struct {
	root   string
	cloner Cloner
	log    JobLog
}

func NewManager(root string, cloner Cloner, log JobLog) *Manager {
	return &Manager{root: root, cloner: cloner, log: log}
}

// Dir returns the build directory of a deployment
func (m *Manager) Dir(id uuid.UUID) string {
	return filepath.Join(m.root, id.String())
}

// Acquire produces a fresh clone of repoURL in the deployment's build directory.
// Any directory left by a previous attempt is removed first.
func (m *Manager) Acquire(ctx context.Context, id uuid.UUID, repoURL, token string) (string, error) {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		_ = m.log.Log(id, "❌ Error: Repository URL is missing.")
		return "", fmt.Errorf("%w: repository URL is required", domain.ErrMissingInput)
	}

	dir := m.Dir(id)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clean build directory: %w", err)
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create builds directory: %w", err)
	}

	_ = m.log.Log(id, fmt.Sprintf("Cloning %s...", repoURL))

	if err := m.cloner.Clone(ctx, repoURL, dir, token); err != nil {
		_ = m.log.Log(id, fmt.Sprintf("❌ Clone failed: %v", err))
		return "", fmt.Errorf("%w: %w", domain.ErrCloneFailed, err)
	}

	_ = m.log.Log(id, clonedMessage(m.cloner, dir))
	slog.Debug("Repository acquired", "deployment_id", id, "dir", dir)
	return dir, nil
}

// clonedMessage names the checked out commit when it can be resolved. A clone
// that succeeded is not failed over a missing HEAD.
func clonedMessage(cloner Cloner, dir string) string {
	commit, err := cloner.GetLatestCommit(dir)
	if err != nil || commit == "" {
		return "Repository cloned successfully."
	}
	if len(commit) > shortCommitLength {
		commit = commit[:shortCommitLength]
	}
	return fmt.Sprintf("Repository cloned successfully (commit %s).", commit)
}

// List returns the deployment ids that own a build directory. Entries that
// are not deployment directories are ignored.
func (m *Manager) List() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(m.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read builds directory: %w", err)
	}

	var ids []uuid.UUID
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := uuid.Parse(entry.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Remove deletes the deployment's build directory if it exists
func (m *Manager) Remove(id uuid.UUID) error {
	dir := m.Dir(id)
	rel, err := filepath.Rel(m.root, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to remove path outside builds directory: %s", dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		slog.Error("Service operation failed",
			"layer", "workspace",
			"operation", "remove_build_dir",
			"deployment_id", id,
			"error", err)
		return err
	}
	return nil
}
