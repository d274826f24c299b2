package queue

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveCheckpoint upserts resumable mid-task state, per spec.md §4.2
// "save_checkpoint". Callers (typically the worker, on SIGTERM or a
// self-imposed step boundary) call this before PauseTask.
func (q *Queue) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	filesCreated, err := marshalStrings(cp.FilesCreated)
	if err != nil {
		return err
	}
	filesModified, err := marshalStrings(cp.FilesModified)
	if err != nil {
		return err
	}
	data, err := valueToColumn(cp.CheckpointData)
	if err != nil {
		return err
	}
	now := q.now()
	_, err = q.store.DB().ExecContext(ctx, `
		INSERT INTO checkpoints (
			task_id, checkpoint_data, files_created, files_modified,
			last_step, completion_percentage, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			checkpoint_data = excluded.checkpoint_data,
			files_created = excluded.files_created,
			files_modified = excluded.files_modified,
			last_step = excluded.last_step,
			completion_percentage = excluded.completion_percentage,
			updated_at = excluded.updated_at
	`, cp.TaskID, data, filesCreated, filesModified, cp.LastStep, cp.CompletionPercentage, now, now)
	if err != nil {
		return fmt.Errorf("save checkpoint for task %d: %w", cp.TaskID, err)
	}
	return nil
}

// GetCheckpoint returns the checkpoint for a task, or a *NotFoundError if
// none has been saved.
func (q *Queue) GetCheckpoint(ctx context.Context, taskID int64) (*Checkpoint, error) {
	row := q.store.DB().QueryRowContext(ctx, `
		SELECT task_id, checkpoint_data, files_created, files_modified,
			last_step, completion_percentage, created_at, updated_at
		FROM checkpoints WHERE task_id = ?
	`, taskID)

	var (
		cp                             Checkpoint
		data                           sql.NullString
		filesCreated, filesModified    string
	)
	err := row.Scan(&cp.TaskID, &data, &filesCreated, &filesModified,
		&cp.LastStep, &cp.CompletionPercentage, &cp.CreatedAt, &cp.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "checkpoint", Key: taskID}
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint for task %d: %w", taskID, err)
	}

	v, err := ScanValue(nullStringToAny(data))
	if err != nil {
		return nil, err
	}
	cp.CheckpointData = v
	if cp.FilesCreated, err = unmarshalStrings(filesCreated); err != nil {
		return nil, err
	}
	if cp.FilesModified, err = unmarshalStrings(filesModified); err != nil {
		return nil, err
	}
	return &cp, nil
}

// DeleteCheckpoint removes a task's checkpoint, per spec.md §4.2
// "delete_checkpoint" (called once a task completes, since a finished task
// has nothing left to resume).
func (q *Queue) DeleteCheckpoint(ctx context.Context, taskID int64) error {
	_, err := q.store.DB().ExecContext(ctx, `DELETE FROM checkpoints WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("delete checkpoint for task %d: %w", taskID, err)
	}
	return nil
}
