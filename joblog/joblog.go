// Package joblog writes human-readable, timestamped lines onto a deployment's log.
package joblog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/domain"
)

// TimeFormat is the clock prefix of every log line
const TimeFormat = "15:04:05"

// Store is the slice of the record store the appender needs
type Store interface {
	AppendLog(id uuid.UUID, stream domain.LogStream, line string) (domain.LogLine, error)
}

type Appender struct {
	store Store
	now   func() time.Time
}

func NewAppender(store Store) *Appender {
	return &Appender{store: store, now: time.Now}
}

// WithClock returns a copy of the appender that reads time from now
func (a *Appender) WithClock(now func() time.Time) *Appender {
	return &Appender{store: a.store, now: now}
}

// Format renders one log line
func Format(t time.Time, message string) string {
	return "[" + t.Format(TimeFormat) + "] " + message
}

// Log appends a system line
func (a *Appender) Log(id uuid.UUID, message string) error {
	return a.Append(id, domain.LogStreamSystem, message)
}

// Append adds one timestamped line on the given stream. Each call is a single
// atomic append in the store.
func (a *Appender) Append(id uuid.UUID, stream domain.LogStream, message string) error {
	_, err := a.store.AppendLog(id, stream, Format(a.now(), message))
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, domain.ErrNotFound) {
			// The deployment was deleted while its job was still running
			level = slog.LevelWarn
		}
		slog.Log(context.Background(), level, "Failed to append deployment log",
			"layer", "joblog",
			"operation", "append_log",
			"deployment_id", id,
			"stream", string(stream),
			"error", err)
	}
	return err
}

// Tags prefixes process output per stream, e.g. "[Docker Build]: " for stdout
type Tags struct {
	Stdout string
	Stderr string
}

func (t Tags) For(stream domain.LogStream) string {
	switch stream {
	case domain.LogStreamStdout:
		return t.Stdout
	case domain.LogStreamStderr:
		return t.Stderr
	default:
		return ""
	}
}
