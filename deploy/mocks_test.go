package deploy

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/domain"
	"github.com/oar-cd/launchpad/joblog"
	"github.com/oar-cd/launchpad/process"
	"github.com/stretchr/testify/mock"
)

// recorder is an in-memory JobLog and StatusStore that enforces the state
// machine and keeps log lines and transitions in one ordered event list
type recorder struct {
	mu     sync.Mutex
	status map[uuid.UUID]domain.DeploymentStatus
	events []string
	lines  []string
}

func newRecorder(ids ...uuid.UUID) *recorder {
	r := &recorder{status: make(map[uuid.UUID]domain.DeploymentStatus)}
	for _, id := range ids {
		r.status[id] = domain.DeploymentStatusQueued
	}
	return r
}

func (r *recorder) Log(id uuid.UUID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "log:"+message)
	r.lines = append(r.lines, message)
	return nil
}

func (r *recorder) TransitionStatus(id uuid.UUID, status domain.DeploymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.status[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !domain.CanTransition(current, status) {
		return domain.ErrInvalidTransition
	}
	r.status[id] = status
	r.events = append(r.events, "status:"+status.String())
	return nil
}

func (r *recorder) Status(id uuid.UUID) domain.DeploymentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status[id]
}

func (r *recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// MockAcquirer is a mock implementation of Acquirer
type MockAcquirer struct {
	mock.Mock
}

func (m *MockAcquirer) Acquire(ctx context.Context, id uuid.UUID, repoURL, token string) (string, error) {
	args := m.Called(ctx, id, repoURL, token)
	return args.String(0), args.Error(1)
}

// MockSupervisor is a mock implementation of Supervisor. Lines configured via
// Output are fed to onLine before the call returns.
type MockSupervisor struct {
	mock.Mock
	output map[string][]string
}

func (m *MockSupervisor) Output(subcommand string, lines ...string) {
	if m.output == nil {
		m.output = make(map[string][]string)
	}
	m.output[subcommand] = lines
}

func (m *MockSupervisor) Run(ctx context.Context, jobID uuid.UUID, cmd process.Command, tags joblog.Tags, onLine process.LineFunc) (int, error) {
	args := m.Called(ctx, jobID, cmd, tags)
	if onLine != nil && len(cmd.Args) > 0 {
		for _, line := range m.output[cmd.Args[0]] {
			onLine(domain.LogStreamStdout, line)
		}
	}
	return args.Int(0), args.Error(1)
}

// MockDiscoverer is a mock implementation of EndpointDiscoverer
type MockDiscoverer struct {
	mock.Mock
}

func (m *MockDiscoverer) Endpoints(ctx context.Context, containerID string) ([]string, error) {
	args := m.Called(ctx, containerID)
	if endpoints := args.Get(0); endpoints != nil {
		return endpoints.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// fixedRandom always returns the same draw
type fixedRandom float64

func (f fixedRandom) Float64() float64 { return float64(f) }
