// Package handlers provides HTTP request handlers for the Launchpad API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/deploy"
	"github.com/oar-cd/launchpad/domain"
)

// DeploymentManager is the slice of the deployment service the handlers use
type DeploymentManager interface {
	Submit(repoURL, platform string, credentials map[string]string) (*domain.Deployment, error)
	Get(id uuid.UUID) (*domain.Deployment, error)
	List() ([]*domain.Deployment, error)
	Delete(id uuid.UUID) error
	Analyze(ctx context.Context, id uuid.UUID) (domain.AnalysisResult, error)
	FollowLogs(ctx context.Context, id uuid.UUID, afterSeq uint, poll time.Duration, fn func(domain.LogLine) error) error
}

type DeploymentHandlers struct {
	deployments  DeploymentManager
	pollInterval time.Duration
}

func NewDeploymentHandlers(dm DeploymentManager) *DeploymentHandlers {
	return &DeploymentHandlers{
		deployments:  dm,
		pollInterval: deploy.DefaultPollInterval,
	}
}

// submitRequest is the body of POST /api/deployments
type submitRequest struct {
	RepoURL     string            `json:"repoUrl"`
	Platform    string            `json:"platform"`
	Credentials map[string]string `json:"credentials"`
}

// deploymentView is the public representation of a deployment. Credentials are never exposed.
type deploymentView struct {
	ID         string    `json:"id"`
	Repo       string    `json:"repo"`
	Platform   string    `json:"platform"`
	Status     string    `json:"status"`
	Logs       []string  `json:"logs"`
	AIAnalysis string    `json:"aiAnalysis,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type analysisView struct {
	Success  bool   `json:"success"`
	Severity string `json:"severity"`
	Analysis string `json:"analysis"`
}

func toView(d *domain.Deployment) deploymentView {
	logs := make([]string, len(d.Logs))
	for i, l := range d.Logs {
		logs[i] = l.Text
	}
	return deploymentView{
		ID:         d.ID.String(),
		Repo:       d.RepositoryURL,
		Platform:   d.Platform.String(),
		Status:     d.Status.String(),
		Logs:       logs,
		AIAnalysis: d.AnalysisStr(),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// Helper functions
func parseDeploymentID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "deploymentID"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Handler operation failed",
			"layer", "handler",
			"operation", "write_json",
			"error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForError maps the error taxonomy to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissingInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, deploy.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *DeploymentHandlers) handleServiceError(w http.ResponseWriter, operation string, id uuid.UUID, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		slog.Error("Handler operation failed",
			"layer", "handler",
			"operation", operation,
			"deployment_id", id,
			"error", err)
	}
	writeError(w, status, deploy.FormatErrorForUser(err))
}

// RegisterRoutes mounts the deployment API on r
func (h *DeploymentHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/deployments", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Submit)
		r.Route("/{deploymentID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Delete)
			r.Post("/analyze", h.Analyze)
			r.Get("/logs/stream", h.StreamLogs)
		})
	})
}

// Submit creates a deployment and returns it while the job runs in the background
func (h *DeploymentHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := h.deployments.Submit(req.RepoURL, req.Platform, req.Credentials)
	if err != nil {
		h.handleServiceError(w, "submit_deployment", uuid.Nil, err)
		return
	}

	writeJSON(w, http.StatusCreated, toView(d))
}

func (h *DeploymentHandlers) List(w http.ResponseWriter, r *http.Request) {
	deployments, err := h.deployments.List()
	if err != nil {
		h.handleServiceError(w, "list_deployments", uuid.Nil, err)
		return
	}

	views := make([]deploymentView, len(deployments))
	for i, d := range deployments {
		views[i] = toView(d)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *DeploymentHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseDeploymentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid deployment ID")
		return
	}

	d, err := h.deployments.Get(id)
	if err != nil {
		h.handleServiceError(w, "get_deployment", id, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(d))
}

func (h *DeploymentHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseDeploymentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid deployment ID")
		return
	}

	if err := h.deployments.Delete(id); err != nil {
		h.handleServiceError(w, "delete_deployment", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Analyze diagnoses the deployment's current log
func (h *DeploymentHandlers) Analyze(w http.ResponseWriter, r *http.Request) {
	id, err := parseDeploymentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid deployment ID")
		return
	}

	result, err := h.deployments.Analyze(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, "analyze_deployment", id, err)
		return
	}

	writeJSON(w, http.StatusOK, analysisView{
		Success:  true,
		Severity: string(result.Severity),
		Analysis: result.Diagnosis,
	})
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

func flushResponse(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// StreamLogs sends every log line after ?after=<seq> as a server-sent event
// until the deployment is terminal, then a final "done" event with its status.
// Each event id is the line sequence so clients can resume.
func (h *DeploymentHandlers) StreamLogs(w http.ResponseWriter, r *http.Request) {
	id, err := parseDeploymentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid deployment ID")
		return
	}

	after, err := resumePoint(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resume position")
		return
	}

	// Fail fast with a proper status before the stream starts
	if _, err := h.deployments.Get(id); err != nil {
		h.handleServiceError(w, "stream_logs", id, err)
		return
	}

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flushResponse(w)

	err = h.deployments.FollowLogs(r.Context(), id, after, h.pollInterval, func(line domain.LogLine) error {
		if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", line.Seq, line.Text); err != nil {
			return err
		}
		flushResponse(w)
		return nil
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("Handler operation failed",
				"layer", "handler",
				"operation", "stream_logs",
				"deployment_id", id,
				"error", err)
		}
		return
	}

	status := "UNKNOWN"
	if d, err := h.deployments.Get(id); err == nil {
		status = d.Status.String()
	}
	if _, err := fmt.Fprintf(w, "event: done\ndata: {\"status\":%q}\n\n", status); err != nil {
		slog.Error("Handler operation failed",
			"layer", "handler",
			"operation", "stream_completion",
			"deployment_id", id,
			"error", err)
	}
	flushResponse(w)
}

// resumePoint reads the sequence to resume after from ?after= or Last-Event-ID
func resumePoint(r *http.Request) (uint, error) {
	raw := r.URL.Query().Get("after")
	if raw == "" {
		raw = r.Header.Get("Last-Event-ID")
	}
	if raw == "" {
		return 0, nil
	}
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(seq), nil
}
