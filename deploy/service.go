// Package deploy runs deployment jobs: it creates the record, dispatches the
// platform strategy in the background and guarantees every job ends in a
// terminal status.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/domain"
	"github.com/oar-cd/launchpad/metrics"
	"github.com/oar-cd/launchpad/repository"
)

// ErrShuttingDown is returned by Submit once Shutdown has been called
var ErrShuttingDown = errors.New("deployment service is shutting down")

// DefaultPollInterval is used by Wait and FollowLogs when no interval is given
const DefaultPollInterval = 500 * time.Millisecond

// Analyzer diagnoses a deployment's log
type Analyzer interface {
	Analyze(ctx context.Context, id uuid.UUID) (domain.AnalysisResult, error)
}

// BuildDirs removes per-deployment build directories
type BuildDirs interface {
	Remove(id uuid.UUID) error
}

type Service struct {
	repo       repository.DeploymentRepository
	log        JobLog
	strategies map[domain.Platform]Strategy
	builds     BuildDirs
	analyzer   Analyzer
	metrics    *metrics.Metrics
	jobTimeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	closed  bool
	running map[uuid.UUID]struct{}
	wg      sync.WaitGroup
}

// NewService creates the deployment service. A zero jobTimeout lets jobs run
// without a deadline. builds, analyzer and m may be nil.
func NewService(
	repo repository.DeploymentRepository,
	log JobLog,
	strategies map[domain.Platform]Strategy,
	builds BuildDirs,
	analyzer Analyzer,
	m *metrics.Metrics,
	jobTimeout time.Duration,
) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		repo:       repo,
		log:        log,
		strategies: strategies,
		builds:     builds,
		analyzer:   analyzer,
		metrics:    m,
		jobTimeout: jobTimeout,
		ctx:        ctx,
		cancel:     cancel,
		running:    make(map[uuid.UUID]struct{}),
	}
}

// Submit creates a QUEUED deployment and starts its strategy in the background.
// It returns without waiting for any strategy step.
func (s *Service) Submit(repoURL, platform string, credentials map[string]string) (*domain.Deployment, error) {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return nil, fmt.Errorf("%w: repository URL is required", domain.ErrMissingInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrShuttingDown
	}

	d := domain.NewDeployment(repoURL, domain.ParsePlatform(platform), credentials)
	if err := s.repo.Create(&d); err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "submit_deployment",
			"repository_url", repoURL,
			"error", err)
		return nil, fmt.Errorf("failed to create deployment: %w", err)
	}

	slog.Info("Deployment submitted",
		"deployment_id", d.ID,
		"repository_url", d.RepositoryURL,
		"platform", d.Platform.String())
	s.metrics.DeploymentSubmitted(d.Platform.String())

	s.running[d.ID] = struct{}{}
	s.wg.Add(1)
	go s.run(d)

	submitted := d
	return &submitted, nil
}

// IsRunning reports whether this service is still executing the deployment,
// including one whose record was deleted mid-run
func (s *Service) IsRunning(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[id]
	return ok
}

func (s *Service) Get(id uuid.UUID) (*domain.Deployment, error) {
	return s.repo.FindByID(id)
}

// List returns all deployments, newest first
func (s *Service) List() ([]*domain.Deployment, error) {
	return s.repo.List()
}

// Delete removes a deployment and its log. The build directory of a finished
// deployment is removed too; a running job cleans up after itself.
func (s *Service) Delete(id uuid.UUID) error {
	d, err := s.repo.FindByID(id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(id); err != nil {
		return err
	}
	slog.Info("Deployment deleted", "deployment_id", id)

	if d.Status.IsTerminal() {
		s.removeBuildDir(id)
	}
	return nil
}

// Analyze diagnoses the deployment's log as it is now
func (s *Service) Analyze(ctx context.Context, id uuid.UUID) (domain.AnalysisResult, error) {
	if s.analyzer == nil {
		return domain.AnalysisResult{}, domain.ErrAnalysisUnavailable
	}
	return s.analyzer.Analyze(ctx, id)
}

// Wait polls until the deployment reaches a terminal status
func (s *Service) Wait(ctx context.Context, id uuid.UUID, poll time.Duration) (*domain.Deployment, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	for {
		d, err := s.repo.FindByID(id)
		if err != nil {
			return nil, err
		}
		if d.Status.IsTerminal() {
			return d, nil
		}
		if err := sleep(ctx, poll); err != nil {
			return nil, err
		}
	}
}

// FollowLogs calls fn for every log line after afterSeq, in order, until the
// deployment is terminal and its log has been delivered.
func (s *Service) FollowLogs(ctx context.Context, id uuid.UUID, afterSeq uint, poll time.Duration, fn func(domain.LogLine) error) error {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	for {
		// Status first: the line explaining a terminal status is always
		// appended before the status itself
		d, err := s.repo.FindByID(id)
		if err != nil {
			return err
		}

		lines, err := s.repo.LogsSince(id, afterSeq)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := fn(line); err != nil {
				return err
			}
			afterSeq = line.Seq
		}

		if d.Status.IsTerminal() {
			return nil
		}
		if err := sleep(ctx, poll); err != nil {
			return err
		}
	}
}

// RecoverInterrupted fails deployments left QUEUED or BUILDING by a previous
// process. It must run before any new submission.
func (s *Service) RecoverInterrupted() (int, error) {
	stale, err := s.repo.ListByStatus(domain.DeploymentStatusQueued, domain.DeploymentStatusBuilding)
	if err != nil {
		return 0, fmt.Errorf("failed to list interrupted deployments: %w", err)
	}

	recovered := 0
	for _, d := range stale {
		if s.fail(d.ID, "❌ Critical Error: deployment interrupted by server restart") {
			recovered++
			s.metrics.DeploymentFinished(d.Platform.String(), domain.DeploymentStatusFailed.String())
		}
	}

	if recovered > 0 {
		slog.Warn("Marked interrupted deployments as failed", "count", recovered)
	}
	return recovered, nil
}

// Shutdown stops accepting submissions and waits for running jobs. When ctx
// expires first, running jobs are cancelled and end FAILED.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		slog.Warn("Cancelling running deployments")
		s.cancel()
		<-done
		return ctx.Err()
	}
}

func (s *Service) strategyFor(platform domain.Platform) Strategy {
	if strategy, ok := s.strategies[platform]; ok {
		return strategy
	}
	return s.strategies[domain.PlatformSimulated]
}

// run executes one job. It is the only goroutine driving this deployment.
func (s *Service) run(d domain.Deployment) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.running, d.ID)
		s.mu.Unlock()
	}()

	ctx := s.ctx
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	strategy := s.strategyFor(d.Platform)
	if strategy == nil {
		s.fail(d.ID, fmt.Sprintf("❌ Critical Error: no strategy for platform %s", d.Platform))
	} else if err := execute(ctx, strategy, &d); err != nil {
		slog.Error("Service operation failed",
			"layer", "strategy",
			"operation", "execute",
			"deployment_id", d.ID,
			"platform", d.Platform.String(),
			"error", err)
		s.fail(d.ID, s.criticalMessage(err))
	}

	s.settle(d)
}

// execute runs the strategy, turning a panic into an error
func execute(ctx context.Context, strategy Strategy, d *domain.Deployment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Strategy panicked",
				"layer", "strategy",
				"operation", "execute",
				"deployment_id", d.ID,
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()
	return strategy.Execute(ctx, d)
}

func (s *Service) criticalMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("❌ Critical Error: deployment timed out after %s", s.jobTimeout)
	case errors.Is(err, context.Canceled):
		return "❌ Critical Error: deployment interrupted by server shutdown"
	default:
		return "❌ Critical Error: " + err.Error()
	}
}

// fail logs the explanatory line and moves the deployment to FAILED.
// It reports whether the transition happened.
func (s *Service) fail(id uuid.UUID, line string) bool {
	_ = s.log.Log(id, line)

	err := s.repo.TransitionStatus(id, domain.DeploymentStatusFailed)
	switch {
	case err == nil:
		return true
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
		slog.Debug("Deployment already settled", "deployment_id", id, "error", err)
	default:
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "fail_deployment",
			"deployment_id", id,
			"error", err)
	}
	return false
}

// settle guarantees a terminal status once the strategy has returned
func (s *Service) settle(d domain.Deployment) {
	current, err := s.repo.FindByID(d.ID)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Info("Deployment deleted while running", "deployment_id", d.ID)
		s.removeBuildDir(d.ID)
		return
	}
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "settle_deployment",
			"deployment_id", d.ID,
			"error", err)
		return
	}

	status := current.Status
	if !status.IsTerminal() {
		if s.fail(d.ID, "❌ Critical Error: deployment ended without a final status") {
			status = domain.DeploymentStatusFailed
		}
	}

	slog.Info("Deployment finished",
		"deployment_id", d.ID,
		"platform", d.Platform.String(),
		"status", status.String())
	s.metrics.DeploymentFinished(d.Platform.String(), status.String())
}

func (s *Service) removeBuildDir(id uuid.UUID) {
	if s.builds == nil {
		return
	}
	if err := s.builds.Remove(id); err != nil {
		slog.Warn("Failed to remove build directory", "deployment_id", id, "error", err)
	}
}
