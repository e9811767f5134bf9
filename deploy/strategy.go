package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/domain"
	"github.com/oar-cd/launchpad/joblog"
	"github.com/oar-cd/launchpad/process"
)

// Strategy drives one deployment from QUEUED to a terminal status.
// Expected failures are logged and end in FAILED inside the strategy;
// a returned error is treated as a critical failure by the caller.
type Strategy interface {
	Execute(ctx context.Context, d *domain.Deployment) error
}

// JobLog appends system lines to a deployment's log
type JobLog interface {
	Log(id uuid.UUID, message string) error
}

// StatusStore commits state machine transitions
type StatusStore interface {
	TransitionStatus(id uuid.UUID, status domain.DeploymentStatus) error
}

// Acquirer clones a deployment's repository into its build directory
type Acquirer interface {
	Acquire(ctx context.Context, id uuid.UUID, repoURL, token string) (string, error)
}

// Supervisor runs one external command while streaming its output into the log
type Supervisor interface {
	Run(ctx context.Context, jobID uuid.UUID, cmd process.Command, tags joblog.Tags, onLine process.LineFunc) (int, error)
}

// EndpointDiscoverer finds the published endpoints of a started container
type EndpointDiscoverer interface {
	Endpoints(ctx context.Context, containerID string) ([]string, error)
}

// Random is a source of pseudo-random numbers in [0, 1)
type Random interface {
	Float64() float64
}

// RandomFunc adapts a function such as math/rand/v2.Float64 to Random
type RandomFunc func() float64

func (f RandomFunc) Float64() float64 { return f() }

// steps holds the log and status plumbing every strategy shares
type steps struct {
	log    JobLog
	status StatusStore
}

func (s steps) say(id uuid.UUID, message string) {
	// Append failures are logged by the appender and must not stop the job
	_ = s.log.Log(id, message)
}

func (s steps) setStatus(id uuid.UUID, status domain.DeploymentStatus) error {
	if err := s.status.TransitionStatus(id, status); err != nil {
		return fmt.Errorf("failed to set status %s: %w", status, err)
	}
	return nil
}

// finish appends the line explaining the outcome, then commits the terminal status
func (s steps) finish(id uuid.UUID, status domain.DeploymentStatus, line string) error {
	s.say(id, line)
	return s.setStatus(id, status)
}

// processFailed records which command failed and how, then finishes the job as FAILED
func (s steps) processFailed(id uuid.UUID, cmd process.Command, code int, line string) error {
	s.say(id, fmt.Sprintf("Error: %s exited with code %d (%v)", cmd.Name, code, domain.ErrProcessFailed))
	return s.finish(id, domain.DeploymentStatusFailed, line)
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
