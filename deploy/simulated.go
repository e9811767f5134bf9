package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/oar-cd/launchpad/domain"
)

// SimulatedConfig tunes the simulated strategy
type SimulatedConfig struct {
	BuildDelay  time.Duration
	DeployDelay time.Duration
	FailureRate float64
	LiveDomain  string
}

// SimulatedStrategy exercises the pipeline without touching the filesystem or network
type SimulatedStrategy struct {
	steps
	config SimulatedConfig
	random Random
}

func NewSimulatedStrategy(log JobLog, status StatusStore, random Random, config SimulatedConfig) *SimulatedStrategy {
	return &SimulatedStrategy{
		steps:  steps{log: log, status: status},
		config: config,
		random: random,
	}
}

func (s *SimulatedStrategy) Execute(ctx context.Context, d *domain.Deployment) error {
	s.say(d.ID, "Initializing simulated deployment environment...")

	if err := s.setStatus(d.ID, domain.DeploymentStatusBuilding); err != nil {
		return err
	}
	s.say(d.ID, "Building project...")

	if err := sleep(ctx, s.config.BuildDelay); err != nil {
		return err
	}

	if s.random.Float64() < s.config.FailureRate {
		return s.finish(d.ID, domain.DeploymentStatusFailed, "❌ Error: Build failed. Missing dependency 'lib-optimus'.")
	}

	if err := sleep(ctx, s.config.DeployDelay); err != nil {
		return err
	}
	s.say(d.ID, "Build complete. Allocating resources...")

	return s.finish(d.ID, domain.DeploymentStatusDeployed, "🚀 Service is live at: "+s.liveURL(d))
}

func (s *SimulatedStrategy) liveURL(d *domain.Deployment) string {
	name := slug.Make(d.RepositoryName())
	if name == "" {
		name = "project"
	}
	return fmt.Sprintf("https://%s/%s-%s", s.config.LiveDomain, name, d.ID.String()[:8])
}
