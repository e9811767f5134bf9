package workspace_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/config"
	"github.com/oar-cd/launchpad/git"
	"github.com/oar-cd/launchpad/testing/fixtures"
	"github.com/oar-cd/launchpad/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineLog struct {
	lines []string
}

func (l *lineLog) Log(id uuid.UUID, message string) error {
	l.lines = append(l.lines, message)
	return nil
}

func TestAcquire_LocalRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	source := filepath.Join(t.TempDir(), "site")
	hash, err := fixtures.InitGitRepo(source, []fixtures.RepoFile{
		{Path: "index.html", Content: "<h1>launchpad</h1>"},
		{Path: "css/site.css", Content: "body {}"},
	})
	require.NoError(t, err)

	log := &lineLog{}
	manager := workspace.NewManager(
		filepath.Join(t.TempDir(), "builds"),
		git.NewGitService(&config.Config{GitTimeout: 30 * time.Second}),
		log,
	)
	id := uuid.New()

	dir, err := manager.Acquire(context.Background(), id, source, "")
	require.NoError(t, err)
	assert.Equal(t, manager.Dir(id), dir)

	content, err := os.ReadFile(filepath.Join(dir, "css", "site.css"))
	require.NoError(t, err)
	assert.Equal(t, "body {}", string(content))
	assert.Equal(t, []string{"Cloning " + source + "...", "Repository cloned successfully (commit " + hash[:7] + ")."}, log.lines)

	ids, err := manager.List()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, ids)

	require.NoError(t, manager.Remove(id))
	assert.NoDirExists(t, dir)
}
