package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// collect drains both streams of p and returns their lines
func collect(p *Process) (stdout, stderr []string) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for line := range p.Stdout {
			stdout = append(stdout, line)
		}
	}()
	go func() {
		defer wg.Done()
		for line := range p.Stderr {
			stderr = append(stderr, line)
		}
	}()
	wg.Wait()
	return stdout, stderr
}

func TestCommand_String(t *testing.T) {
	cmd := Command{
		Name:    "npx",
		Args:    []string{"vercel", "deploy", "--token", "tok_123", "--yes"},
		Secrets: []string{"tok_123", ""},
	}
	assert.Equal(t, "npx vercel deploy --token *** --yes", cmd.String())
}

func TestExecRunner_StreamsAndExitCode(t *testing.T) {
	requireShell(t)

	tests := []struct {
		name       string
		script     string
		wantCode   int
		wantStdout []string
		wantStderr []string
	}{
		{
			name:       "success",
			script:     "echo one; echo two; echo warn >&2",
			wantCode:   0,
			wantStdout: []string{"one", "two"},
			wantStderr: []string{"warn"},
		},
		{
			name:       "non-zero exit",
			script:     "echo building; echo boom >&2; exit 3",
			wantCode:   3,
			wantStdout: []string{"building"},
			wantStderr: []string{"boom"},
		},
		{
			name:     "no output",
			script:   "exit 0",
			wantCode: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewExecRunner().Start(context.Background(), Command{Name: "sh", Args: []string{"-c", tt.script}})
			require.NoError(t, err)

			stdout, stderr := collect(p)
			code, err := p.Wait()

			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStdout, stdout)
			assert.Equal(t, tt.wantStderr, stderr)
		})
	}
}

func TestExecRunner_WaitResolvesOnce(t *testing.T) {
	requireShell(t)

	p, err := NewExecRunner().Start(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 7"}})
	require.NoError(t, err)
	collect(p)

	first, _ := p.Wait()
	second, _ := p.Wait()
	assert.Equal(t, 7, first)
	assert.Equal(t, first, second)
}

func TestExecRunner_WorkingDirAndEnv(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("here"), 0o644))

	p, err := NewExecRunner().Start(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "cat marker.txt; echo; echo $LAUNCHPAD_TEST_VAR"},
		Dir:  dir,
		Env:  []string{"LAUNCHPAD_TEST_VAR=value"},
	})
	require.NoError(t, err)

	stdout, _ := collect(p)
	code, err := p.Wait()
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.Equal(t, []string{"here", "value"}, stdout)
}

func TestExecRunner_LongLines(t *testing.T) {
	requireShell(t)

	// 200 KiB without a newline until the end
	p, err := NewExecRunner().Start(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "head -c 204800 /dev/zero | tr '\\0' 'a'; echo"},
	})
	require.NoError(t, err)

	stdout, _ := collect(p)
	_, err = p.Wait()
	require.NoError(t, err)
	require.Len(t, stdout, 1)
	assert.Equal(t, strings.Repeat("a", 204800), stdout[0])
}

func TestExecRunner_OversizedLineKeepsLaterOutput(t *testing.T) {
	requireShell(t)

	size := MaxLineSize + 51424
	p, err := NewExecRunner().Start(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", fmt.Sprintf("echo before; head -c %d /dev/zero | tr '\\0' 'a'; echo; echo after1; echo after2 >&2; echo after3", size)},
	})
	require.NoError(t, err)

	stdout, stderr := collect(p)
	code, err := p.Wait()
	require.NoError(t, err)
	assert.Zero(t, code)

	require.Len(t, stdout, 5)
	assert.Equal(t, "before", stdout[0])
	assert.Len(t, stdout[1], MaxLineSize)
	assert.Equal(t, strings.Repeat("a", size), stdout[1]+stdout[2])
	assert.Equal(t, []string{"after1", "after3"}, stdout[3:])
	assert.Equal(t, []string{"after2"}, stderr)
}

func TestExecRunner_StartFailure(t *testing.T) {
	_, err := NewExecRunner().Start(context.Background(), Command{Name: "launchpad-definitely-not-a-command"})
	assert.Error(t, err)
}

func TestExecRunner_CancelKillsProcess(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	p, err := NewExecRunner().Start(ctx, Command{Name: "sh", Args: []string{"-c", "echo started; exec sleep 30"}})
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	done := make(chan int)
	go func() {
		collect(p)
		code, _ := p.Wait()
		done <- code
	}()

	select {
	case code := <-done:
		assert.NotZero(t, code)
	case <-time.After(10 * time.Second):
		t.Fatal("process was not killed after cancellation")
	}
}
