package queue

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// TrackFileChange journals one filesystem side effect of a task, per
// spec.md §4.2 "track_file_change". beforeContent is nil for a create,
// afterContent is nil for a delete; RollbackTask replays these in reverse.
func (q *Queue) TrackFileChange(ctx context.Context, taskID int64, op ChangeOp, filePath string, beforeContent, afterContent *string) error {
	_, err := q.store.DB().ExecContext(ctx, `
		INSERT INTO task_changes (task_id, operation, file_path, before_content, after_content)
		VALUES (?, ?, ?, ?, ?)
	`, taskID, string(op), filePath, nullString(beforeContent), nullString(afterContent))
	if err != nil {
		return fmt.Errorf("track file change for task %d: %w", taskID, err)
	}
	return nil
}

// ListTaskChanges returns a task's journaled changes, oldest first.
func (q *Queue) ListTaskChanges(ctx context.Context, taskID int64) ([]*TaskChange, error) {
	rows, err := q.store.DB().QueryContext(ctx, `
		SELECT change_id, task_id, operation, file_path, before_content, after_content, timestamp
		FROM task_changes WHERE task_id = ? ORDER BY timestamp ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task changes for task %d: %w", taskID, err)
	}
	defer rows.Close()

	var out []*TaskChange
	for rows.Next() {
		var (
			c            TaskChange
			op           string
			before, after sql.NullString
		)
		if err := rows.Scan(&c.ChangeID, &c.TaskID, &op, &c.FilePath, &before, &after, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scan task change: %w", err)
		}
		c.Operation = ChangeOp(op)
		c.BeforeContent = scanNullString(before)
		c.AfterContent = scanNullString(after)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// RollbackTask reverses a task's journaled filesystem changes in reverse
// chronological order, per spec.md §4.2 "rollback_task": a create is
// undone by deleting the file, a modify by restoring before_content, and a
// delete by rewriting the file with before_content (the content it had
// before being deleted). Best-effort: one failing change is recorded in the
// report and does not stop the rest from being attempted.
func (q *Queue) RollbackTask(ctx context.Context, taskID int64) (*RollbackReport, error) {
	changes, err := q.ListTaskChanges(ctx, taskID)
	if err != nil {
		return nil, err
	}

	report := &RollbackReport{}
	for i := len(changes) - 1; i >= 0; i-- {
		c := changes[i]
		switch c.Operation {
		case OpCreate:
			if err := os.Remove(c.FilePath); err != nil && !os.IsNotExist(err) {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: remove: %v", c.FilePath, err))
				continue
			}
			report.Deleted = append(report.Deleted, c.FilePath)

		case OpModify:
			if c.BeforeContent == nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: no prior content recorded", c.FilePath))
				continue
			}
			if err := os.WriteFile(c.FilePath, []byte(*c.BeforeContent), 0o644); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: restore: %v", c.FilePath, err))
				continue
			}
			report.Restored = append(report.Restored, c.FilePath)

		case OpDelete:
			if c.BeforeContent == nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: no prior content recorded", c.FilePath))
				continue
			}
			if err := os.WriteFile(c.FilePath, []byte(*c.BeforeContent), 0o644); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: recreate: %v", c.FilePath, err))
				continue
			}
			report.Restored = append(report.Restored, c.FilePath)
		}
	}
	return report, nil
}
