package utils

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var logBuf bytes.Buffer
	originalLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(originalLogger) })
	return &logBuf
}

func TestCommandError(t *testing.T) {
	logBuf := captureLogs(t)

	err := CommandError("removing deployment", domain.ErrNotFound, "deployment_id", "abc")

	assert.EqualError(t, err, "removing deployment failed: deployment not found")
	logOutput := logBuf.String()
	assert.Contains(t, logOutput, "Command failed")
	assert.Contains(t, logOutput, "removing deployment")
	assert.Contains(t, logOutput, "deployment_id=abc")
}

func TestCommandError_Unexpected(t *testing.T) {
	captureLogs(t)

	err := CommandError("listing deployments", errors.New("boom"))
	assert.EqualError(t, err, "listing deployments failed: an unexpected error occurred")
}

func TestParseDeploymentID(t *testing.T) {
	logBuf := captureLogs(t)
	want := uuid.New()

	got, err := ParseDeploymentID("show", want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ParseDeploymentID("show", "invalid-uuid")
	assert.EqualError(t, err, "invalid deployment ID 'invalid-uuid': must be a valid UUID")
	assert.Contains(t, logBuf.String(), "Invalid UUID provided")
}

func TestParseCredentials(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{
			name:  "empty",
			pairs: nil,
			want:  map[string]string{},
		},
		{
			name:  "keys with spaces",
			pairs: []string{"Vercel Token=abc", "Username=acme"},
			want:  map[string]string{"Vercel Token": "abc", "Username": "acme"},
		},
		{
			name:  "equals in value",
			pairs: []string{"Git Token=a=b"},
			want:  map[string]string{"Git Token": "a=b"},
		},
		{
			name:    "missing separator",
			pairs:   []string{"Username"},
			wantErr: true,
		},
		{
			name:    "empty key",
			pairs:   []string{"=value"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCredentials(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
