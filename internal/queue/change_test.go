package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollbackTaskReversesChangesInOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	dir := t.TempDir()

	id, err := q.AddTask(ctx, Task{Prompt: "refactor"})
	require.NoError(t, err)

	created := filepath.Join(dir, "new.go")
	require.NoError(t, os.WriteFile(created, []byte("package main\n"), 0o644))
	require.NoError(t, q.TrackFileChange(ctx, id, OpCreate, created, nil, strPtr("package main\n")))

	modified := filepath.Join(dir, "existing.go")
	before := "package main\n\nfunc Old() {}\n"
	require.NoError(t, os.WriteFile(modified, []byte(before), 0o644))
	require.NoError(t, q.TrackFileChange(ctx, id, OpModify, modified, strPtr(before), nil))
	after := "package main\n\nfunc New() {}\n"
	require.NoError(t, os.WriteFile(modified, []byte(after), 0o644))

	report, err := q.RollbackTask(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Contains(t, report.Deleted, created)
	assert.Contains(t, report.Restored, modified)

	_, err = os.Stat(created)
	assert.True(t, os.IsNotExist(err))

	gotBefore, err := os.ReadFile(modified)
	require.NoError(t, err)
	assert.Equal(t, before, string(gotBefore))
}

func strPtr(s string) *string { return &s }
