// Package analysis classifies deployment logs and asks a language model to
// explain failures.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/domain"
	"github.com/oar-cd/launchpad/metrics"
)

const (
	// SuccessDiagnosis is reported when the log shows a completed deployment
	SuccessDiagnosis = "✅ No errors detected. Deployment completed successfully."
	// FallbackDiagnosis is reported when the inference endpoint cannot answer
	FallbackDiagnosis = "AI analysis unavailable. Ensure the inference endpoint is running."
	// TailSize is how many characters from the end of the log are sent for inference
	TailSize = 2000
)

var successPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)deployment successful`),
	regexp.MustCompile(`(?i)container running!`),
	regexp.MustCompile(`(?i)service is live`),
	regexp.MustCompile(`(?i)status:\s*deployed`),
}

var failurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`❌`),
	regexp.MustCompile(`(?i)error`),
	regexp.MustCompile(`(?i)failed`),
	regexp.MustCompile(`(?i)exception`),
	regexp.MustCompile(`(?i)exit code [1-9]`),
}

// Store is the slice of the record store the engine needs
type Store interface {
	FindByID(id uuid.UUID) (*domain.Deployment, error)
	UpdateAnalysis(id uuid.UUID, analysis string) error
}

type Engine struct {
	store     Store
	inference Inference
	model     string
	timeout   time.Duration
	metrics   *metrics.Metrics
}

// NewEngine creates an analysis engine. m may be nil.
func NewEngine(store Store, inference Inference, model string, timeout time.Duration, m *metrics.Metrics) *Engine {
	return &Engine{
		store:     store,
		inference: inference,
		model:     model,
		timeout:   timeout,
		metrics:   m,
	}
}

// Analyze diagnoses the current log of a deployment and stores the diagnosis.
// Inference failures degrade to FallbackDiagnosis and are never returned.
func (e *Engine) Analyze(ctx context.Context, id uuid.UUID) (domain.AnalysisResult, error) {
	deployment, err := e.store.FindByID(id)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	logText := deployment.LogText()
	result := domain.AnalysisResult{FailureSignals: HasFailureSignals(logText)}

	path := metrics.AnalysisPathPattern
	if IsSuccessful(logText) {
		result.Severity = domain.SeverityNone
		result.Diagnosis = SuccessDiagnosis
	} else {
		result.Severity = domain.SeverityHigh
		result.Diagnosis, path = e.diagnose(ctx, id, logText)
	}
	e.metrics.AnalysisCompleted(path)

	if err := e.store.UpdateAnalysis(id, result.Diagnosis); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("Service operation failed",
				"layer", "analysis",
				"operation", "store_analysis",
				"deployment_id", id,
				"error", err)
		}
		return domain.AnalysisResult{}, err
	}

	return result, nil
}

func (e *Engine) diagnose(ctx context.Context, id uuid.UUID, logText string) (string, string) {
	if e.inference == nil {
		return FallbackDiagnosis, metrics.AnalysisPathFallback
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	response, err := e.inference.Generate(ctx, e.model, BuildPrompt(logText))
	if err == nil && strings.TrimSpace(response) == "" {
		err = errors.New("empty response")
	}
	if err != nil {
		slog.Warn("Inference unavailable, using fallback diagnosis",
			"layer", "analysis",
			"operation", "generate",
			"deployment_id", id,
			"model", e.model,
			"error", fmt.Errorf("%w: %w", domain.ErrAnalysisUnavailable, err))
		return FallbackDiagnosis, metrics.AnalysisPathFallback
	}

	return response, metrics.AnalysisPathInference
}

// IsSuccessful reports whether any success indicator appears in the log
func IsSuccessful(logText string) bool {
	for _, p := range successPatterns {
		if p.MatchString(logText) {
			return true
		}
	}
	return false
}

// HasFailureSignals reports whether any failure indicator appears in the log
func HasFailureSignals(logText string) bool {
	for _, p := range failurePatterns {
		if p.MatchString(logText) {
			return true
		}
	}
	return false
}

// BuildPrompt asks for a one-sentence diagnosis of the end of the log
func BuildPrompt(logText string) string {
	return "Task: Identify the error in these logs.\nLogs:\n" + Tail(logText, TailSize) +
		"\n\nIf success, say \"NO ERROR\".\nIf error, explain in 1 sentence."
}

// Tail returns the last n characters of s without splitting a character
func Tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
