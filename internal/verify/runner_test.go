package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WMahoney09/klauss/internal/execx"
)

func TestRunHookReportsExitCode(t *testing.T) {
	exec := &execx.MockCommandExecutor{
		RunFunc: func(ctx context.Context, spec execx.Spec) (execx.Result, error) {
			return execx.Result{ExitCode: 1, Stderr: "boom\n"}, nil
		},
	}
	r := RunHook(context.Background(), exec, "/work", Hook{Description: "Test", Command: "go test ./...", FailOnError: true})
	assert.False(t, r.Passed)
	assert.Equal(t, 1, r.ExitCode)
	assert.Equal(t, "boom\n", r.Stderr)
}

func TestRunHookTimeout(t *testing.T) {
	exec := &execx.MockCommandExecutor{
		RunFunc: func(ctx context.Context, spec execx.Spec) (execx.Result, error) {
			return execx.Result{TimedOut: true}, nil
		},
	}
	r := RunHook(context.Background(), exec, "/work", Hook{Description: "Test", Command: "sleep 9999"})
	assert.False(t, r.Passed)
	assert.Equal(t, -1, r.ExitCode)
	assert.True(t, r.TimedOut)
}

func TestVerifyTaskRunsAllHooksAndAggregates(t *testing.T) {
	calls := 0
	exec := &execx.MockCommandExecutor{
		RunFunc: func(ctx context.Context, spec execx.Spec) (execx.Result, error) {
			calls++
			if calls == 1 {
				return execx.Result{ExitCode: 1}, nil // fail_on_error=false, should not flip allPassed
			}
			return execx.Result{ExitCode: 0}, nil
		},
	}
	hooks := []Hook{
		{Description: "Lint", Command: "lint", FailOnError: false},
		{Description: "Build", Command: "build", FailOnError: true},
	}
	allPassed, results := VerifyTask(context.Background(), exec, "/work", hooks)
	require.Len(t, results, 2)
	assert.True(t, allPassed)
	assert.False(t, results[0].Passed)
	assert.True(t, results[1].Passed)
}

func TestCheckExpectedOutputs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "present.go"), []byte("x"), 0o644))

	allExist, present := CheckExpectedOutputs(dir, []string{"present.go", "missing.go"})
	assert.False(t, allExist)
	assert.True(t, present["present.go"])
	assert.False(t, present["missing.go"])
}

func TestDetectProjectTypesGo(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0o644))

	types := DetectProjectTypes(dir)
	require.Contains(t, types, TypeGo)

	hooks := DefaultHooks(dir, types)
	require.Len(t, hooks, 2)
	assert.Equal(t, "Build all", hooks[0].Description)
	assert.Equal(t, "Test all", hooks[1].Description)
}
