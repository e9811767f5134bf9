// Package server implements the command that serves the deployment API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oar-cd/launchpad/app"
	"github.com/oar-cd/launchpad/internal/handlers"
	"github.com/oar-cd/launchpad/metrics"
	"github.com/spf13/cobra"
)

// ShutdownTimeout bounds both the HTTP drain and the wait for running deployments
const ShutdownTimeout = 30 * time.Second

// NewCmdServer creates the command that serves the HTTP API
func NewCmdServer() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the Launchpad API server",
		Long: `Serve the deployment API, log streams, health check and metrics.

Deployments left unfinished by a previous run are marked FAILED before the
server accepts requests. Build directories of removed or long-finished
deployments are reclaimed periodically. On SIGINT or SIGTERM the server stops accepting
requests and waits for running deployments before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	return cmd
}

// NewRouter wires the API, system routes and middleware
func NewRouter(dm handlers.DeploymentManager, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(handlers.Metrics(m))

	handlers.NewDeploymentHandlers(dm).RegisterRoutes(r)
	handlers.RegisterSystemRoutes(r, m)
	return r
}

func runServer(ctx context.Context) error {
	cfg := app.GetConfig()
	service := app.GetDeploymentService()
	if cfg == nil || service == nil {
		return errors.New("application is not initialized")
	}

	recovered, err := service.RecoverInterrupted()
	if err != nil {
		return fmt.Errorf("failed to recover interrupted deployments: %w", err)
	}
	if recovered > 0 {
		slog.Warn("Marked interrupted deployments as failed",
			"layer", "server",
			"operation", "recover_interrupted",
			"count", recovered)
	}

	address := net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(cfg.HTTPPort))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	if sweeper := app.GetBuildSweeper(); sweeper != nil {
		go func() {
			if err := sweeper.Start(ctx); err != nil {
				slog.Error("Build sweeper failed", "error", err)
			}
		}()
	}

	serveErr := serve(ctx, listener, NewRouter(service, app.GetMetrics()), app.DrainDeployments)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, app.Shutdown(shutdownCtx))
}

// serve runs the HTTP server until ctx is cancelled. On the way out it drains
// deployments while the server still answers, so submissions get 503 and
// open log streams reach their final event, then stops the server.
func serve(ctx context.Context, listener net.Listener, handler http.Handler, drain func(context.Context) error) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", fmt.Sprintf("http://%s", listener.Addr()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("web server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	slog.Info("Waiting for running deployments")
	if err := drain(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("deployment shutdown failed: %w", err))
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Web server shutdown incomplete", "error", err)
		_ = server.Close()
	}

	slog.Info("Server stopped")
	return runErr
}
