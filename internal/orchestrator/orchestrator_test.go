package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WMahoney09/klauss/internal/config"
	"github.com/WMahoney09/klauss/internal/queue"
	"github.com/WMahoney09/klauss/internal/taskstore"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	path := filepath.Join(t.TempDir(), "klauss.db")
	store, err := taskstore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	q := queue.New(store)

	cfg := &config.Config{
		ProjectRoot: t.TempDir(),
		Safety:      config.Safety{EnforceProjectBoundary: true},
		Defaults:    config.Defaults{Priority: 1, PollInterval: 10 * time.Millisecond},
	}
	return New(q, cfg)
}

func TestCreateJobAndAddSubtask(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	jobID, err := o.CreateJob(ctx, "demo job", queue.Null())
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	taskID, err := o.AddSubtask(ctx, jobID, SubtaskSpec{Prompt: "do a thing"})
	require.NoError(t, err)
	assert.Positive(t, taskID)

	task, err := o.Queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	require.NotNil(t, task.JobID)
	assert.Equal(t, jobID, *task.JobID)
	assert.Equal(t, 1, task.Priority, "should fall back to config default priority")
}

func TestAddSubtaskRejectsOutsideProjectBoundary(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	jobID, err := o.CreateJob(ctx, "demo job", queue.Null())
	require.NoError(t, err)

	_, err = o.AddSubtask(ctx, jobID, SubtaskSpec{Prompt: "escape", WorkingDir: "/definitely/outside"})
	require.Error(t, err)
	var pbe *ProjectBoundaryError
	require.ErrorAs(t, err, &pbe)
}

func TestAddSubtaskAllowsExternalWhenPermitted(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	jobID, err := o.CreateJob(ctx, "demo job", queue.Null())
	require.NoError(t, err)

	_, err = o.AddSubtask(ctx, jobID, SubtaskSpec{Prompt: "escape", WorkingDir: "/definitely/outside", AllowExternal: true})
	require.NoError(t, err)
}

func TestSubmitBatchSharesParentTaskID(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	jobID, err := o.CreateJob(ctx, "demo job", queue.Null())
	require.NoError(t, err)
	parent, err := o.AddSubtask(ctx, jobID, SubtaskSpec{Prompt: "parent"})
	require.NoError(t, err)

	ids, err := o.SubmitBatch(ctx, jobID, &parent, []SubtaskSpec{
		{Prompt: "child 1"}, {Prompt: "child 2"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	for _, id := range ids {
		task, err := o.Queue.GetTask(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, task.ParentTaskID)
		assert.Equal(t, parent, *task.ParentTaskID)
	}
}

func TestGetJobStatusTallies(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	jobID, err := o.CreateJob(ctx, "demo job", queue.Null())
	require.NoError(t, err)
	id1, err := o.AddSubtask(ctx, jobID, SubtaskSpec{Prompt: "one"})
	require.NoError(t, err)
	_, err = o.AddSubtask(ctx, jobID, SubtaskSpec{Prompt: "two"})
	require.NoError(t, err)

	claimed, err := o.Queue.ClaimTask(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, id1, claimed.ID)

	status, err := o.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalTasks)
	assert.Equal(t, 1, status.Pending)
	assert.Equal(t, 1, status.InProgress)
}

func TestWaitAndCollectCompletesJobAndReturnsResults(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	jobID, err := o.CreateJob(ctx, "demo job", queue.Null())
	require.NoError(t, err)
	id, err := o.AddSubtask(ctx, jobID, SubtaskSpec{Prompt: "one"})
	require.NoError(t, err)

	claimed, err := o.Queue.ClaimTask(ctx, "w1")
	require.NoError(t, err)
	require.NoError(t, o.Queue.StartTask(ctx, claimed.ID, "w1"))
	require.NoError(t, o.Queue.CompleteTask(ctx, claimed.ID, "w1", queue.NewValue(map[string]any{"exit_code": float64(0)})))

	results, err := o.WaitAndCollect(ctx, jobID, WaitAndCollectOptions{PollInterval: 5 * time.Millisecond, Timeout: time.Second})
	require.NoError(t, err)
	require.Contains(t, results, id)
	assert.Equal(t, queue.StatusCompleted, results[id].Status)

	job, err := o.Queue.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobCompleted, job.Status)
}

func TestRetryFailedTasksResubmitsFailedOnly(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	jobID, err := o.CreateJob(ctx, "demo job", queue.Null())
	require.NoError(t, err)
	_, err = o.AddSubtask(ctx, jobID, SubtaskSpec{Prompt: "will fail"})
	require.NoError(t, err)

	claimed, err := o.Queue.ClaimTask(ctx, "w1")
	require.NoError(t, err)
	require.NoError(t, o.Queue.StartTask(ctx, claimed.ID, "w1"))
	require.NoError(t, o.Queue.FailTask(ctx, claimed.ID, "w1", "boom"))

	ids, err := o.RetryFailedTasks(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	retried, err := o.Queue.GetTask(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, retried.Status)
}

func TestSynthesizeResultsOrdersByTaskID(t *testing.T) {
	results := map[int64]TaskResult{
		2: {TaskID: 2, Prompt: "second", Status: queue.StatusFailed, Error: strPtr("boom")},
		1: {TaskID: 1, Prompt: "first", Status: queue.StatusCompleted, Result: queue.NewValue(map[string]any{"exit_code": float64(0), "stdout": "ok"})},
	}
	out := SynthesizeResults(results, "")
	firstIdx := indexOf(out, "Task 1: first")
	secondIdx := indexOf(out, "Task 2: second")
	require.True(t, firstIdx >= 0 && secondIdx >= 0)
	assert.Less(t, firstIdx, secondIdx)
	assert.Contains(t, out, "Summary: 1 completed, 1 failed")
}

func strPtr(s string) *string { return &s }

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
