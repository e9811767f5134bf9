package deploy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/domain"
)

// DeploymentManager defines the contract for deployment operations
type DeploymentManager interface {
	Submit(repoURL, platform string, credentials map[string]string) (*domain.Deployment, error)
	Get(id uuid.UUID) (*domain.Deployment, error)
	List() ([]*domain.Deployment, error)
	Delete(id uuid.UUID) error
	Analyze(ctx context.Context, id uuid.UUID) (domain.AnalysisResult, error)
	Wait(ctx context.Context, id uuid.UUID, poll time.Duration) (*domain.Deployment, error)
	FollowLogs(ctx context.Context, id uuid.UUID, afterSeq uint, poll time.Duration, fn func(domain.LogLine) error) error
	RecoverInterrupted() (int, error)
}

var _ DeploymentManager = (*Service)(nil)
