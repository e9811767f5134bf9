// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/domain"
)

// MockDeploymentManager implements the DeploymentManager interface for testing.
// Unset functions return empty results.
type MockDeploymentManager struct {
	SubmitFunc             func(repoURL, platform string, credentials map[string]string) (*domain.Deployment, error)
	GetFunc                func(id uuid.UUID) (*domain.Deployment, error)
	ListFunc               func() ([]*domain.Deployment, error)
	DeleteFunc             func(id uuid.UUID) error
	AnalyzeFunc            func(ctx context.Context, id uuid.UUID) (domain.AnalysisResult, error)
	WaitFunc               func(ctx context.Context, id uuid.UUID, poll time.Duration) (*domain.Deployment, error)
	FollowLogsFunc         func(ctx context.Context, id uuid.UUID, afterSeq uint, poll time.Duration, fn func(domain.LogLine) error) error
	RecoverInterruptedFunc func() (int, error)
}

func (m *MockDeploymentManager) Submit(repoURL, platform string, credentials map[string]string) (*domain.Deployment, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(repoURL, platform, credentials)
	}
	d := domain.NewDeployment(repoURL, domain.ParsePlatform(platform), credentials)
	return &d, nil
}

func (m *MockDeploymentManager) Get(id uuid.UUID) (*domain.Deployment, error) {
	if m.GetFunc != nil {
		return m.GetFunc(id)
	}
	return &domain.Deployment{ID: id}, nil
}

func (m *MockDeploymentManager) List() ([]*domain.Deployment, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return []*domain.Deployment{}, nil
}

func (m *MockDeploymentManager) Delete(id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(id)
	}
	return nil
}

func (m *MockDeploymentManager) Analyze(ctx context.Context, id uuid.UUID) (domain.AnalysisResult, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, id)
	}
	return domain.AnalysisResult{}, nil
}

func (m *MockDeploymentManager) Wait(ctx context.Context, id uuid.UUID, poll time.Duration) (*domain.Deployment, error) {
	if m.WaitFunc != nil {
		return m.WaitFunc(ctx, id, poll)
	}
	return m.Get(id)
}

func (m *MockDeploymentManager) FollowLogs(ctx context.Context, id uuid.UUID, afterSeq uint, poll time.Duration, fn func(domain.LogLine) error) error {
	if m.FollowLogsFunc != nil {
		return m.FollowLogsFunc(ctx, id, afterSeq, poll, fn)
	}
	return nil
}

func (m *MockDeploymentManager) RecoverInterrupted() (int, error) {
	if m.RecoverInterruptedFunc != nil {
		return m.RecoverInterruptedFunc()
	}
	return 0, nil
}
