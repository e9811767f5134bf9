package process

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/domain"
	"github.com/oar-cd/launchpad/joblog"
)

// LogAppender receives supervised output lines
type LogAppender interface {
	Append(id uuid.UUID, stream domain.LogStream, message string) error
}

// ExitObserver is notified of every supervised process exit
type ExitObserver interface {
	ObserveExit(command string, code int, err error)
}

// LineFunc observes raw output lines after they were appended. It is called
// from one goroutine per stream.
type LineFunc func(stream domain.LogStream, line string)

// Supervisor runs a command to completion while streaming its output into a deployment log
type Supervisor struct {
	runner   Runner
	log      LogAppender
	observer ExitObserver
}

// NewSupervisor creates a supervisor. observer may be nil.
func NewSupervisor(runner Runner, log LogAppender, observer ExitObserver) *Supervisor {
	return &Supervisor{runner: runner, log: log, observer: observer}
}

// Run starts cmd and forwards every stdout and stderr line to the deployment log,
// prefixed with the matching tag, as soon as it is read. It returns the exit code
// once the process has exited and both streams are drained. An error means the
// process could not be started or observed; a non-zero code is not an error.
func (s *Supervisor) Run(ctx context.Context, jobID uuid.UUID, cmd Command, tags joblog.Tags, onLine LineFunc) (int, error) {
	slog.Debug("Starting supervised process", "deployment_id", jobID, "command", cmd.String())

	p, err := s.runner.Start(ctx, cmd)
	if err != nil {
		s.observe(cmd, -1, err)
		return -1, err
	}

	// One forwarder per stream keeps each stream's lines in order
	var wg sync.WaitGroup
	forward := func(stream domain.LogStream, lines <-chan string) {
		defer wg.Done()
		for line := range lines {
			// A failed append is already logged by the appender; keep draining
			_ = s.log.Append(jobID, stream, tags.For(stream)+line)
			if onLine != nil {
				onLine(stream, line)
			}
		}
	}

	wg.Add(2)
	go forward(domain.LogStreamStdout, p.Stdout)
	go forward(domain.LogStreamStderr, p.Stderr)
	wg.Wait()

	code, err := p.Wait()
	s.observe(cmd, code, err)

	if err != nil {
		slog.Error("Service operation failed",
			"layer", "process",
			"operation", "wait",
			"deployment_id", jobID,
			"command", cmd.String(),
			"error", err)
		return code, err
	}

	slog.Debug("Supervised process exited", "deployment_id", jobID, "command", cmd.String(), "exit_code", code)
	return code, nil
}

func (s *Supervisor) observe(cmd Command, code int, err error) {
	if s.observer != nil {
		s.observer.ObserveExit(cmd.Name, code, err)
	}
}
