package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WMahoney09/klauss/internal/taskstore"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	path := filepath.Join(t.TempDir(), "klauss.db")
	store, err := taskstore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store)
}

func TestAddTaskRejectsEmptyPrompt(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.AddTask(context.Background(), Task{})
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestAddTaskAndGetTaskRoundTrip(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.AddTask(ctx, Task{
		Prompt:          "write the thing",
		WorkingDir:      "/tmp/proj",
		ContextFiles:    []string{"a.go", "b.go"},
		ExpectedOutputs: []string{"out.go"},
		Priority:        5,
		MaxRetries:      2,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := q.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "write the thing", got.Prompt)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, []string{"a.go", "b.go"}, got.ContextFiles)
	assert.Equal(t, 2, got.MaxRetries)
}

func TestGetTaskNotFound(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.GetTask(context.Background(), 9999)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestClaimTaskIsAtMostOnce(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.AddTask(ctx, Task{Prompt: "do work"})
	require.NoError(t, err)

	const workers = 8
	claims := make(chan *Task, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			t, err := q.ClaimTask(ctx, workerName(n))
			claims <- t
			errs <- err
		}(i)
	}

	var claimed int
	for i := 0; i < workers; i++ {
		require.NoError(t, <-errs)
		if c := <-claims; c != nil {
			claimed++
			assert.Equal(t, id, c.ID)
		}
	}
	assert.Equal(t, 1, claimed, "exactly one worker should have claimed the task")

	again, err := q.ClaimTask(ctx, "late-worker")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func workerName(n int) string {
	return "worker-" + string(rune('a'+n))
}

func TestClaimTaskRespectsPriorityAndDependencies(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	blocked, err := q.AddTask(ctx, Task{Prompt: "blocked", Priority: 10})
	require.NoError(t, err)
	gate, err := q.AddTask(ctx, Task{Prompt: "gate", Priority: 1})
	require.NoError(t, err)
	require.NoError(t, q.AddTaskDependency(ctx, blocked, gate))

	first, err := q.ClaimTask(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, gate, first.ID, "gate has no dependency so it should be claimed first despite lower priority")

	none, err := q.ClaimTask(ctx, "w2")
	require.NoError(t, err)
	assert.Nil(t, none, "blocked task cannot be claimed until its dependency completes")

	require.NoError(t, q.CompleteTask(ctx, gate, "w1", NewValue(map[string]any{"ok": true})))

	second, err := q.ClaimTask(ctx, "w2")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, blocked, second.ID)
}

func TestAddTaskDependencyRejectsCycle(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	a, err := q.AddTask(ctx, Task{Prompt: "a"})
	require.NoError(t, err)
	b, err := q.AddTask(ctx, Task{Prompt: "b"})
	require.NoError(t, err)
	c, err := q.AddTask(ctx, Task{Prompt: "c"})
	require.NoError(t, err)

	require.NoError(t, q.AddTaskDependency(ctx, b, a))
	require.NoError(t, q.AddTaskDependency(ctx, c, b))

	err = q.AddTaskDependency(ctx, a, c)
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
}

func TestFailTaskAutoRetriesThenTerminates(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.AddTask(ctx, Task{Prompt: "flaky", MaxRetries: 1})
	require.NoError(t, err)

	claimed, err := q.ClaimTask(ctx, "w1")
	require.NoError(t, err)
	require.NoError(t, q.StartTask(ctx, claimed.ID, "w1"))
	require.NoError(t, q.FailTask(ctx, claimed.ID, "w1", "boom"))

	afterRetry, err := q.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, afterRetry.Status, "one retry remaining so task should be re-queued")
	assert.Equal(t, 1, afterRetry.RetryCount)
	assert.Nil(t, afterRetry.CompletedAt)

	claimed2, err := q.ClaimTask(ctx, "w2")
	require.NoError(t, err)
	require.NotNil(t, claimed2)
	require.NoError(t, q.StartTask(ctx, claimed2.ID, "w2"))
	require.NoError(t, q.FailTask(ctx, claimed2.ID, "w2", "boom again"))

	final, err := q.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, final.Status, "retries exhausted so task should be terminally failed")
	assert.NotNil(t, final.CompletedAt)
}

func TestRetryTaskClearsCompletedAt(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.AddTask(ctx, Task{Prompt: "will fail"})
	require.NoError(t, err)
	claimed, err := q.ClaimTask(ctx, "w1")
	require.NoError(t, err)
	require.NoError(t, q.StartTask(ctx, claimed.ID, "w1"))
	require.NoError(t, q.FailTask(ctx, claimed.ID, "w1", "nope"))

	failed, err := q.GetTask(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, failed.Status)
	require.NotNil(t, failed.CompletedAt)

	require.NoError(t, q.RetryTask(ctx, id))

	retried, err := q.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, retried.Status)
	assert.Nil(t, retried.CompletedAt)
}

func TestCleanupStaleTasksRecoversDeadWorkerClaims(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.AddTask(ctx, Task{Prompt: "orphaned"})
	require.NoError(t, err)

	require.NoError(t, q.RegisterWorker(ctx, "dead-worker"))
	claimed, err := q.ClaimTask(ctx, "dead-worker")
	require.NoError(t, err)
	require.Equal(t, id, claimed.ID)

	frozen := time.Now().UTC().Add(-time.Hour)
	q.WithClock(func() time.Time { return frozen })
	require.NoError(t, q.UpdateWorkerHeartbeat(ctx, "dead-worker", WorkerActive, &id))

	q.WithClock(func() time.Time { return frozen.Add(time.Hour) })
	recovered, err := q.CleanupStaleTasks(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, recovered)

	after, err := q.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, after.Status)
	assert.Nil(t, after.WorkerID)
}

func TestSharedContextOverlay(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.SetSharedContext(ctx, "", "style-guide", "global value"))
	v, ok, err := q.GetSharedContext(ctx, "job-1", "style-guide")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "global value", v)

	require.NoError(t, q.SetSharedContext(ctx, "job-1", "style-guide", "job value"))
	v, ok, err = q.GetSharedContext(ctx, "job-1", "style-guide")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "job value", v, "job-scoped entry should shadow the global one")

	other, ok, err := q.GetSharedContext(ctx, "job-2", "style-guide")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "global value", other, "unrelated job should still see the global entry")

	require.NoError(t, q.DeleteSharedContext(ctx, "job-1", "style-guide"))
	v, ok, err = q.GetSharedContext(ctx, "job-1", "style-guide")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "global value", v)
}

func TestCheckpointSaveGetDelete(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.AddTask(ctx, Task{Prompt: "long running"})
	require.NoError(t, err)

	err = q.SaveCheckpoint(ctx, Checkpoint{
		TaskID:               id,
		CheckpointData:       NewValue(map[string]any{"step": 3}),
		FilesCreated:         []string{"a.go"},
		LastStep:             "wrote a.go",
		CompletionPercentage: 40,
	})
	require.NoError(t, err)

	cp, err := q.GetCheckpoint(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "wrote a.go", cp.LastStep)
	assert.Equal(t, 40, cp.CompletionPercentage)
	assert.Equal(t, []string{"a.go"}, cp.FilesCreated)

	require.NoError(t, q.DeleteCheckpoint(ctx, id))
	_, err = q.GetCheckpoint(ctx, id)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}
