package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WMahoney09/klauss/internal/queue"
)

func TestBuildEffectivePromptOrdersSections(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.SetSharedContext(ctx, "", "style", "tabs not spaces"))

	jobID := "job-1"
	require.NoError(t, q.CreateJob(ctx, jobID, "demo job", "orch-1", queue.Null()))

	id, err := q.AddTask(ctx, queue.Task{
		Prompt:          "implement the thing",
		ContextFiles:    []string{"a.go"},
		ExpectedOutputs: []string{"a_test.go"},
		JobID:           &jobID,
	})
	require.NoError(t, err)
	task, err := q.GetTask(ctx, id)
	require.NoError(t, err)

	prompt, err := buildEffectivePrompt(ctx, q, task)
	require.NoError(t, err)

	conventionsIdx := indexOf(prompt, "Project Conventions")
	filesIdx := indexOf(prompt, "Context files to review")
	outputsIdx := indexOf(prompt, "Expected outputs")
	taskIdx := indexOf(prompt, "Task:")

	require.True(t, conventionsIdx >= 0 && filesIdx >= 0 && outputsIdx >= 0 && taskIdx >= 0)
	assert.Less(t, conventionsIdx, taskIdx)
	assert.Less(t, taskIdx, filesIdx)
	assert.Less(t, filesIdx, outputsIdx)
	assert.Contains(t, prompt, "tabs not spaces")
	assert.Contains(t, prompt, "implement the thing")
}

func TestBuildEffectivePromptSkipsEmptySections(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	id, err := q.AddTask(ctx, queue.Task{Prompt: "bare task"})
	require.NoError(t, err)
	task, err := q.GetTask(ctx, id)
	require.NoError(t, err)

	prompt, err := buildEffectivePrompt(ctx, q, task)
	require.NoError(t, err)
	assert.NotContains(t, prompt, "Project Conventions")
	assert.NotContains(t, prompt, "Context files to review")
	assert.NotContains(t, prompt, "Expected outputs")
	assert.Contains(t, prompt, "Task:\nbare task\n")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
