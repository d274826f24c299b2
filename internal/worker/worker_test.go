package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WMahoney09/klauss/internal/execx"
	"github.com/WMahoney09/klauss/internal/queue"
	"github.com/WMahoney09/klauss/internal/taskstore"
)

func newTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	path := filepath.Join(t.TempDir(), "klauss.db")
	store, err := taskstore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return queue.New(store)
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func TestRunTaskCompletesOnSuccess(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.AddTask(ctx, queue.Task{Prompt: "write a function", WorkingDir: t.TempDir()})
	require.NoError(t, err)
	task, err := q.ClaimTask(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, id, task.ID)

	exec := &execx.MockCommandExecutor{
		RunFunc: func(ctx context.Context, spec execx.Spec) (execx.Result, error) {
			return execx.Result{Stdout: "done", ExitCode: 0}, nil
		},
	}
	w := New("w1", q, exec, testLogger())
	w.runTask(ctx, task)

	got, err := q.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusCompleted, got.Status)
	assert.Len(t, exec.Specs, 1)
	assert.Equal(t, llmCommand[0], exec.Specs[0].Name)
}

func TestRunTaskFailsOnNonzeroExit(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.AddTask(ctx, queue.Task{Prompt: "will blow up", WorkingDir: t.TempDir(), MaxRetries: 0})
	require.NoError(t, err)
	task, err := q.ClaimTask(ctx, "w1")
	require.NoError(t, err)

	exec := &execx.MockCommandExecutor{
		RunFunc: func(ctx context.Context, spec execx.Spec) (execx.Result, error) {
			return execx.Result{Stderr: "boom", ExitCode: 1}, nil
		},
	}
	w := New("w1", q, exec, testLogger())
	w.runTask(ctx, task)

	got, err := q.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "exited with code 1")
}

func TestRunTaskFailsOnTimeout(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.AddTask(ctx, queue.Task{Prompt: "slow", WorkingDir: t.TempDir(), MaxRetries: 0})
	require.NoError(t, err)
	task, err := q.ClaimTask(ctx, "w1")
	require.NoError(t, err)

	exec := &execx.MockCommandExecutor{
		RunFunc: func(ctx context.Context, spec execx.Spec) (execx.Result, error) {
			return execx.Result{TimedOut: true}, nil
		},
	}
	w := New("w1", q, exec, testLogger())
	w.TaskTimeout = time.Second
	w.runTask(ctx, task)

	got, err := q.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, got.Status)
}

func TestRunTaskFailsOnMissingExpectedOutput(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	dir := t.TempDir()

	id, err := q.AddTask(ctx, queue.Task{
		Prompt:          "write out.go",
		WorkingDir:      dir,
		ExpectedOutputs: []string{"out.go"},
		MaxRetries:      0,
	})
	require.NoError(t, err)
	task, err := q.ClaimTask(ctx, "w1")
	require.NoError(t, err)

	exec := &execx.MockCommandExecutor{
		RunFunc: func(ctx context.Context, spec execx.Spec) (execx.Result, error) {
			return execx.Result{ExitCode: 0}, nil
		},
	}
	w := New("w1", q, exec, testLogger())
	w.runTask(ctx, task)

	got, err := q.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "out.go")
}

func TestHealthCheckReportsPendingCount(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.AddTask(ctx, queue.Task{Prompt: "one"})
	require.NoError(t, err)
	_, err = q.AddTask(ctx, queue.Task{Prompt: "two"})
	require.NoError(t, err)

	w := New("w1", q, &execx.MockCommandExecutor{}, testLogger())
	pending, cwd, err := w.HealthCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
	assert.NotEmpty(t, cwd)
}
