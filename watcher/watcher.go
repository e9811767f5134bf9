// Package watcher periodically reclaims deployment build directories.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/domain"
)

// Removal reasons reported to metrics
const (
	ReasonOrphaned = "orphaned"
	ReasonExpired  = "expired"
)

// Records looks up the deployment that owns a build directory
type Records interface {
	FindByID(id uuid.UUID) (*domain.Deployment, error)
}

// Builds lists and removes build directories
type Builds interface {
	List() ([]uuid.UUID, error)
	Remove(id uuid.UUID) error
}

// Jobs reports deployments still executing in this process
type Jobs interface {
	IsRunning(id uuid.UUID) bool
}

// Metrics counts reclaimed directories
type Metrics interface {
	BuildDirRemoved(reason string)
}

type WatcherService struct {
	records      Records
	builds       Builds
	jobs         Jobs
	metrics      Metrics
	pollInterval time.Duration
	retention    time.Duration
	now          func() time.Time
}

// NewWatcherService creates a sweeper. Directories whose deployment no longer
// exists are removed unless jobs still runs it; directories of finished
// deployments are removed once the deployment has been terminal for retention.
// A zero retention keeps them. jobs may be nil.
func NewWatcherService(
	records Records,
	builds Builds,
	jobs Jobs,
	metrics Metrics,
	pollInterval time.Duration,
	retention time.Duration,
) *WatcherService {
	return &WatcherService{
		records:      records,
		builds:       builds,
		jobs:         jobs,
		metrics:      metrics,
		pollInterval: pollInterval,
		retention:    retention,
		now:          time.Now,
	}
}

func (w *WatcherService) Start(ctx context.Context) error {
	if w.pollInterval <= 0 {
		return fmt.Errorf("invalid poll interval: %v", w.pollInterval)
	}

	slog.Info("Build sweeper starting",
		"poll_interval", w.pollInterval,
		"retention", w.retention)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Run initial sweep immediately
	if _, err := w.Sweep(ctx); err != nil {
		slog.Error("Initial build sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Build sweeper shutting down")
			return nil
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				slog.Error("Build sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass and returns the number of directories removed
func (w *WatcherService) Sweep(ctx context.Context) (int, error) {
	slog.Debug("Starting build sweep")

	ids, err := w.builds.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list build directories: %w", err)
	}

	removed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return removed, nil
		}

		reason, err := w.reasonToRemove(id)
		if err != nil {
			slog.Error("Failed to check build directory",
				"layer", "watcher",
				"operation", "sweep",
				"deployment_id", id,
				"error", err)
			continue
		}
		if reason == "" {
			continue
		}

		if err := w.builds.Remove(id); err != nil {
			continue
		}
		removed++
		w.metrics.BuildDirRemoved(reason)
		slog.Info("Build directory removed",
			"deployment_id", id,
			"reason", reason)
	}

	slog.Debug("Build sweep completed",
		"total_directories", len(ids),
		"removed", removed)

	return removed, nil
}

func (w *WatcherService) reasonToRemove(id uuid.UUID) (string, error) {
	// A job deleted mid-run still builds in its directory and removes it itself
	if w.jobs != nil && w.jobs.IsRunning(id) {
		return "", nil
	}

	d, err := w.records.FindByID(id)
	if errors.Is(err, domain.ErrNotFound) {
		return ReasonOrphaned, nil
	}
	if err != nil {
		return "", err
	}

	// Running deployments own their directory
	if !d.Status.IsTerminal() || w.retention <= 0 {
		return "", nil
	}
	if w.now().Sub(d.UpdatedAt) >= w.retention {
		return ReasonExpired, nil
	}
	return "", nil
}
