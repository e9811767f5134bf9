package deploy

import (
	"context"
	"fmt"
	"slices"

	"github.com/oar-cd/launchpad/domain"
	"github.com/oar-cd/launchpad/joblog"
	"github.com/oar-cd/launchpad/process"
)

var managedTags = joblog.Tags{Stdout: "[Vercel]: ", Stderr: "[Vercel Info]: "}

// ManagedConfig tunes the managed-platform strategy
type ManagedConfig struct {
	Command string
	Args    []string
}

// ManagedStrategy hands the repository to a managed hosting platform's CLI
type ManagedStrategy struct {
	steps
	config     ManagedConfig
	workspace  Acquirer
	supervisor Supervisor
}

func NewManagedStrategy(log JobLog, status StatusStore, workspace Acquirer, supervisor Supervisor, config ManagedConfig) *ManagedStrategy {
	return &ManagedStrategy{
		steps:      steps{log: log, status: status},
		config:     config,
		workspace:  workspace,
		supervisor: supervisor,
	}
}

func (s *ManagedStrategy) Execute(ctx context.Context, d *domain.Deployment) error {
	s.say(d.ID, "Starting Vercel Deployment...")

	// Checked before any clone so a missing token never reaches the network
	token := d.Credentials.Get(domain.CredentialDeployToken)
	if token == "" {
		s.say(d.ID, fmt.Sprintf("❌ Error: %s is required (%v)", domain.CredentialDeployToken, domain.ErrMissingCredential))
		return s.setStatus(d.ID, domain.DeploymentStatusFailed)
	}

	dir, err := s.workspace.Acquire(ctx, d.ID, d.RepositoryURL, d.Credentials.Get(domain.CredentialGitToken))
	if err != nil {
		return err
	}

	if err := s.setStatus(d.ID, domain.DeploymentStatusBuilding); err != nil {
		return err
	}
	s.say(d.ID, "Triggering Vercel Deploy...")

	args := append(slices.Clone(s.config.Args), "--token", token, "--yes")
	cmd := process.Command{
		Name:    s.config.Command,
		Args:    args,
		Dir:     dir,
		Secrets: []string{token},
	}

	code, err := s.supervisor.Run(ctx, d.ID, cmd, managedTags, nil)
	if err != nil {
		return err
	}
	if code != 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.processFailed(d.ID, cmd, code, "❌ Vercel Deployment Failed.")
	}

	return s.finish(d.ID, domain.DeploymentStatusDeployed, "✅ Vercel Deployment Successful!")
}
