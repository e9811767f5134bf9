// Package domain provides core domain types and entities for Launchpad.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credential keys understood by the strategies
const (
	CredentialNamespace   = "Username"
	CredentialDeployToken = "Vercel Token"
	CredentialGitToken    = "Git Token"
)

// SeedLogLine is the first line of every deployment log
const SeedLogLine = "Deployment Queued..."

// Credentials holds platform-specific secrets. Strategies validate only the keys they need.
type Credentials map[string]string

// Get returns the trimmed value for key, or "" if absent
func (c Credentials) Get(key string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c[key])
}

type Deployment struct {
	ID            uuid.UUID
	RepositoryURL string
	Platform      Platform
	Credentials   Credentials
	Status        DeploymentStatus
	Logs          []LogLine
	Analysis      *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewDeployment(repositoryURL string, platform Platform, credentials Credentials) Deployment {
	return Deployment{
		ID:            uuid.New(),
		RepositoryURL: strings.TrimSpace(repositoryURL),
		Platform:      platform,
		Credentials:   credentials,
		Status:        DeploymentStatusQueued,
	}
}

// LogText joins the log lines in order
func (d *Deployment) LogText() string {
	lines := make([]string, len(d.Logs))
	for i, l := range d.Logs {
		lines[i] = l.Text
	}
	return strings.Join(lines, "\n")
}

func (d *Deployment) AnalysisStr() string {
	if d.Analysis == nil {
		return ""
	}
	return *d.Analysis
}

// RepositoryName derives the repository name from its URL: the last path
// segment without a trailing ".git".
func (d *Deployment) RepositoryName() string {
	return RepositoryNameFromURL(d.RepositoryURL)
}

func RepositoryNameFromURL(repoURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(repoURL), "/")
	if i := strings.LastIndexAny(trimmed, "/:"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return strings.TrimSuffix(trimmed, ".git")
}

// LogLine is one entry of a deployment's append-only log
type LogLine struct {
	Seq       uint
	Stream    LogStream
	Text      string
	CreatedAt time.Time
}

// AnalysisResult is the outcome of analyzing a deployment's log
type AnalysisResult struct {
	Severity       Severity
	Diagnosis      string
	FailureSignals bool
}
