// Package process runs external build and deploy commands and streams their output.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	// MaxLineSize is the longest output line delivered intact. Longer lines
	// arrive split into chunks of at most this size.
	MaxLineSize = 1024 * 1024
	// WaitDelay bounds how long output is read after a cancelled process is killed
	WaitDelay = 5 * time.Second
)

// Command describes one external process invocation
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is appended to the current process environment
	Env []string
	// Secrets are masked when the command is rendered for logs
	Secrets []string
}

func (c Command) String() string {
	s := strings.Join(append([]string{c.Name}, c.Args...), " ")
	for _, secret := range c.Secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "***")
		}
	}
	return s
}

// Process is a started command. Both output channels must be drained;
// they are closed when the corresponding stream ends.
type Process struct {
	Stdout <-chan string
	Stderr <-chan string

	done chan struct{}
	code int
	err  error
}

// Wait blocks until the process has exited and both streams are closed.
// The exit code is 0 on success, the process's code otherwise, and -1 when
// it was killed by a signal. err reports failures to observe the exit.
func (p *Process) Wait() (int, error) {
	<-p.done
	return p.code, p.err
}

// Runner starts external processes
type Runner interface {
	Start(ctx context.Context, cmd Command) (*Process, error)
}

// ExecRunner runs commands on the host with os/exec
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Start spawns cmd and returns immediately. Cancelling ctx kills the process.
func (r *ExecRunner) Start(ctx context.Context, cmd Command) (*Process, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	// Output goes through in-process pipes so WaitDelay can bound a
	// cancelled process whose children still hold the streams open
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	c.Stdout = stdoutW
	c.Stderr = stderrW
	c.WaitDelay = WaitDelay

	if err := c.Start(); err != nil {
		slog.Error("Service operation failed",
			"layer", "process",
			"operation", "start",
			"command", cmd.String(),
			"error", err)
		_ = stdoutR.Close()
		_ = stderrR.Close()
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Name, err)
	}

	outCh := make(chan string, 64)
	errCh := make(chan string, 64)
	p := &Process{
		Stdout: outCh,
		Stderr: errCh,
		done:   make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go scanLines(&wg, stdoutR, outCh, cmd)
	go scanLines(&wg, stderrR, errCh, cmd)

	go func() {
		code, err := exitStatus(c.Wait())
		_ = stdoutW.Close()
		_ = stderrW.Close()
		wg.Wait()
		p.code, p.err = code, err
		close(p.done)
	}()

	return p, nil
}

// scanLines forwards r line by line. A line longer than MaxLineSize is
// delivered as consecutive chunks so nothing after it is lost.
func scanLines(wg *sync.WaitGroup, r io.Reader, out chan<- string, cmd Command) {
	defer wg.Done()
	defer close(out)

	reader := bufio.NewReaderSize(r, MaxLineSize)
	split := false
	for {
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("Output stream interrupted",
					"layer", "process",
					"operation", "scan_output",
					"command", cmd.String(),
					"error", err)
				// Keep the pipe drained so the process can finish
				_, _ = io.Copy(io.Discard, r)
			}
			return
		}

		if isPrefix && !split {
			slog.Warn("Splitting long output line",
				"layer", "process",
				"operation", "scan_output",
				"command", cmd.String(),
				"max_line_size", MaxLineSize)
		}
		split = isPrefix
		out <- string(line)
	}
}

func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// ExitCode is -1 when the process was terminated by a signal
		return exitErr.ExitCode(), nil
	}

	return -1, err
}
