// Package app provides the main application context for Launchpad, wiring the
// database, repositories and services together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"

	"github.com/oar-cd/launchpad/analysis"
	"github.com/oar-cd/launchpad/config"
	"github.com/oar-cd/launchpad/db"
	"github.com/oar-cd/launchpad/deploy"
	"github.com/oar-cd/launchpad/docker"
	"github.com/oar-cd/launchpad/domain"
	"github.com/oar-cd/launchpad/encryption"
	"github.com/oar-cd/launchpad/git"
	"github.com/oar-cd/launchpad/joblog"
	"github.com/oar-cd/launchpad/metrics"
	"github.com/oar-cd/launchpad/process"
	"github.com/oar-cd/launchpad/repository"
	"github.com/oar-cd/launchpad/watcher"
	"github.com/oar-cd/launchpad/workspace"
	"gorm.io/gorm"
)

var (
	// Version is set at build time via -ldflags
	Version = "dev"

	database          *gorm.DB
	service           *deploy.Service
	deploymentService deploy.DeploymentManager
	appMetrics        *metrics.Metrics
	dockerClient      *docker.Client
	appConfig         *config.Config
	buildSweeper      *watcher.WatcherService
)

// InitializeWithConfig initializes the app with a pre-configured Config
func InitializeWithConfig(cfg *config.Config) error {
	var err error

	appConfig = cfg

	// Ensure required directories exist
	for _, dir := range []string{cfg.DataDir, cfg.TmpDir, cfg.BuildsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	database, err = db.InitDB(cfg.DatabasePath)
	if err != nil {
		return err
	}

	if err := db.AutoMigrateAll(database); err != nil {
		return err
	}

	encryptionSvc, err := encryption.NewEncryptionService(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	appMetrics = metrics.New()

	deploymentRepo := repository.NewDeploymentRepository(database, encryptionSvc)
	appender := joblog.NewAppender(deploymentRepo)

	gitService := git.NewGitService(cfg)
	builds := workspace.NewManager(cfg.BuildsDir, gitService, appender)
	supervisor := process.NewSupervisor(process.NewExecRunner(), appender, appMetrics)

	// Endpoint discovery is optional; strategies run without it
	var discoverer deploy.EndpointDiscoverer
	dockerClient, err = docker.New(cfg.DockerHost)
	if err != nil {
		slog.Warn("Docker client unavailable, endpoint discovery disabled", "error", err)
	} else {
		discoverer = dockerClient
	}

	strategies := map[domain.Platform]deploy.Strategy{
		domain.PlatformSimulated: deploy.NewSimulatedStrategy(appender, deploymentRepo, deploy.RandomFunc(rand.Float64), deploy.SimulatedConfig{
			BuildDelay:  cfg.SimulatedBuildDelay,
			DeployDelay: cfg.SimulatedDeployDelay,
			FailureRate: cfg.SimulatedFailureRate,
			LiveDomain:  cfg.LiveDomain,
		}),
		domain.PlatformContainer: deploy.NewContainerStrategy(appender, deploymentRepo, builds, supervisor, discoverer, deploy.ContainerConfig{
			DockerCommand:    cfg.DockerCommand,
			DockerHost:       cfg.DockerHost,
			DefaultNamespace: cfg.DefaultNamespace,
		}),
		domain.PlatformManaged: deploy.NewManagedStrategy(appender, deploymentRepo, builds, supervisor, deploy.ManagedConfig{
			Command: cfg.ManagedCommand,
			Args:    cfg.ManagedArgs,
		}),
	}

	var inference analysis.Inference
	ollama, err := analysis.NewOllamaClient(cfg.InferenceURL, &http.Client{Timeout: cfg.InferenceTimeout})
	if err != nil {
		slog.Warn("Inference endpoint misconfigured, analysis will use the fallback diagnosis",
			"url", cfg.InferenceURL,
			"error", err)
	} else {
		inference = ollama
	}
	engine := analysis.NewEngine(deploymentRepo, inference, cfg.InferenceModel, cfg.InferenceTimeout, appMetrics)

	service = deploy.NewService(deploymentRepo, appender, strategies, builds, engine, appMetrics, cfg.JobTimeout)
	deploymentService = service

	buildSweeper = nil
	if cfg.BuildSweepInterval > 0 {
		buildSweeper = watcher.NewWatcherService(deploymentRepo, builds, service, appMetrics, cfg.BuildSweepInterval, cfg.BuildRetention)
	}
	return nil
}

// DrainDeployments rejects new submissions and waits for running deployments.
// Reads keep working until Shutdown.
func DrainDeployments(ctx context.Context) error {
	if service == nil {
		return nil
	}
	return service.Shutdown(ctx)
}

// Shutdown waits for running deployments and releases resources.
// Calling it again after it returned is a no-op.
func Shutdown(ctx context.Context) error {
	var shutdownErr error
	if service != nil {
		shutdownErr = service.Shutdown(ctx)
		service = nil
	}

	if dockerClient != nil {
		if err := dockerClient.Close(); err != nil {
			slog.Warn("Failed to close docker client", "error", err)
		}
		dockerClient = nil
	}

	if database != nil {
		if sqlDB, err := database.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				slog.Warn("Failed to close database", "error", err)
			}
		}
		database = nil
	}
	return shutdownErr
}

func GetDeploymentService() deploy.DeploymentManager {
	return deploymentService
}

func GetMetrics() *metrics.Metrics {
	return appMetrics
}

// GetBuildSweeper returns nil when sweeping is disabled
func GetBuildSweeper() *watcher.WatcherService {
	return buildSweeper
}

func GetConfig() *config.Config {
	return appConfig
}

// SetDeploymentServiceForTesting allows overriding the deployment service for testing purposes
func SetDeploymentServiceForTesting(manager deploy.DeploymentManager) {
	deploymentService = manager
}
