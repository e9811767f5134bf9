package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCloner writes the given files into the target directory instead of cloning
type MockCloner struct {
	files     map[string]string
	err       error
	commit    string
	commitErr error
	calls     int
	token     string
}

func (m *MockCloner) Clone(ctx context.Context, gitURL, workingDir, token string) error {
	m.calls++
	m.token = token
	if m.err != nil {
		return m.err
	}
	if err := os.MkdirAll(workingDir, 0o755); err != nil {
		return err
	}
	for name, content := range m.files {
		if err := os.WriteFile(filepath.Join(workingDir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockCloner) GetLatestCommit(workingDir string) (string, error) {
	return m.commit, m.commitErr
}

// MockJobLog collects logged messages
type MockJobLog struct {
	lines []string
}

func (m *MockJobLog) Log(id uuid.UUID, message string) error {
	m.lines = append(m.lines, message)
	return nil
}

func TestManager_Acquire(t *testing.T) {
	root := t.TempDir()
	cloner := &MockCloner{
		files:  map[string]string{"index.html": "<h1>hi</h1>"},
		commit: "3f9a1c2b7d4e5f60718293a4b5c6d7e8f9012345",
	}
	log := &MockJobLog{}
	manager := NewManager(root, cloner, log)
	id := uuid.New()

	dir, err := manager.Acquire(context.Background(), id, " https://example.com/r.git ", "tok")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, id.String()), dir)
	assert.FileExists(t, filepath.Join(dir, "index.html"))
	assert.Equal(t, "tok", cloner.token)
	assert.Equal(t, []string{
		"Cloning https://example.com/r.git...",
		"Repository cloned successfully (commit 3f9a1c2).",
	}, log.lines)
}

func TestManager_Acquire_CommitUnavailable(t *testing.T) {
	cloner := &MockCloner{commitErr: errors.New("reference not found")}
	log := &MockJobLog{}
	manager := NewManager(t.TempDir(), cloner, log)

	_, err := manager.Acquire(context.Background(), uuid.New(), "https://example.com/r.git", "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Cloning https://example.com/r.git...",
		"Repository cloned successfully.",
	}, log.lines)
}

func TestManager_Acquire_ResetsExistingDirectory(t *testing.T) {
	root := t.TempDir()
	manager := NewManager(root, &MockCloner{files: map[string]string{"new.txt": "new"}}, &MockJobLog{})
	id := uuid.New()

	stale := manager.Dir(id)
	require.NoError(t, os.MkdirAll(filepath.Join(stale, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "nested", "old.txt"), []byte("old"), 0o644))

	dir, err := manager.Acquire(context.Background(), id, "https://example.com/r.git", "")
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "nested", "old.txt"))
	assert.FileExists(t, filepath.Join(dir, "new.txt"))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id.String(), entries[0].Name())
}

func TestManager_Acquire_MissingURL(t *testing.T) {
	cloner := &MockCloner{}
	log := &MockJobLog{}
	manager := NewManager(t.TempDir(), cloner, log)

	_, err := manager.Acquire(context.Background(), uuid.New(), "   ", "")

	assert.ErrorIs(t, err, domain.ErrMissingInput)
	assert.Zero(t, cloner.calls)
	assert.Equal(t, []string{"❌ Error: Repository URL is missing."}, log.lines)
}

func TestManager_Acquire_CloneFailed(t *testing.T) {
	cloner := &MockCloner{err: errors.New("authentication required")}
	log := &MockJobLog{}
	manager := NewManager(t.TempDir(), cloner, log)

	_, err := manager.Acquire(context.Background(), uuid.New(), "https://example.com/private.git", "")

	assert.ErrorIs(t, err, domain.ErrCloneFailed)
	assert.Contains(t, err.Error(), "authentication required")
	require.Len(t, log.lines, 2)
	assert.Equal(t, "Cloning https://example.com/private.git...", log.lines[0])
	assert.Contains(t, log.lines[1], "authentication required")
}

func TestManager_Remove(t *testing.T) {
	root := t.TempDir()
	manager := NewManager(root, &MockCloner{}, &MockJobLog{})
	id := uuid.New()

	require.NoError(t, os.MkdirAll(manager.Dir(id), 0o755))
	require.NoError(t, manager.Remove(id))
	assert.NoDirExists(t, manager.Dir(id))

	// Removing a missing directory is not an error
	assert.NoError(t, manager.Remove(uuid.New()))
}

func TestManager_List(t *testing.T) {
	root := filepath.Join(t.TempDir(), "builds")
	manager := NewManager(root, &MockCloner{}, &MockJobLog{})

	ids, err := manager.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	first, second := uuid.New(), uuid.New()
	require.NoError(t, os.MkdirAll(manager.Dir(first), 0o755))
	require.NoError(t, os.MkdirAll(manager.Dir(second), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "scratch"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, uuid.NewString()), []byte("x"), 0o644))

	ids, err = manager.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{first, second}, ids)
}
