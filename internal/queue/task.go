package queue

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/WMahoney09/klauss/internal/taskstore"
)

// AddTask inserts a new pending task, per spec.md §4.2 "add_task". prompt is
// required; everything else may be zero-valued.
func (q *Queue) AddTask(ctx context.Context, t Task) (int64, error) {
	if t.Prompt == "" {
		return 0, newValidationError("prompt must not be empty")
	}
	if t.MaxRetries < 0 {
		return 0, newValidationError("max_retries must not be negative")
	}

	contextFiles, err := marshalStrings(t.ContextFiles)
	if err != nil {
		return 0, err
	}
	expectedOutputs, err := marshalStrings(t.ExpectedOutputs)
	if err != nil {
		return 0, err
	}
	metadata, err := valueToColumn(t.Metadata)
	if err != nil {
		return 0, err
	}
	retryPolicy, err := valueToColumn(t.RetryPolicy)
	if err != nil {
		return 0, err
	}

	status := t.Status
	if status == "" {
		status = StatusPending
	}

	var id int64
	err = q.store.WithTx(ctx, taskstore.TxDeferred, func(tx taskstore.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (
				prompt, working_dir, context_files, expected_outputs, metadata,
				priority, status, job_id, parent_task_id, max_retries, retry_policy
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			t.Prompt, t.WorkingDir, contextFiles, expectedOutputs, metadata,
			t.Priority, string(status), nullString(t.JobID), nullInt64(t.ParentTaskID),
			t.MaxRetries, retryPolicy,
		)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

const taskColumns = `
	id, prompt, working_dir, context_files, expected_outputs, metadata,
	priority, status, worker_id, job_id, parent_task_id, created_at,
	claimed_at, started_at, completed_at, result, error, last_error,
	retry_count, max_retries, retry_policy
`

func scanTask(row interface {
	Scan(dest ...any) error
}) (*Task, error) {
	var (
		t                              Task
		contextFiles, expectedOutputs  string
		metadata, result, retryPolicy  sql.NullString
		workerID, jobID, taskErr, last sql.NullString
		parentTaskID                   sql.NullInt64
		claimedAt, startedAt, compAt   sql.NullTime
		status                         string
	)
	if err := row.Scan(
		&t.ID, &t.Prompt, &t.WorkingDir, &contextFiles, &expectedOutputs, &metadata,
		&t.Priority, &status, &workerID, &jobID, &parentTaskID, &t.CreatedAt,
		&claimedAt, &startedAt, &compAt, &result, &taskErr, &last,
		&t.RetryCount, &t.MaxRetries, &retryPolicy,
	); err != nil {
		return nil, err
	}

	t.Status = TaskStatus(status)
	t.WorkerID = scanNullString(workerID)
	t.JobID = scanNullString(jobID)
	t.ParentTaskID = scanNullInt64(parentTaskID)
	t.ClaimedAt = scanNullTime(claimedAt)
	t.StartedAt = scanNullTime(startedAt)
	t.CompletedAt = scanNullTime(compAt)
	t.Error = scanNullString(taskErr)
	t.LastError = scanNullString(last)

	var err error
	if t.ContextFiles, err = unmarshalStrings(contextFiles); err != nil {
		return nil, err
	}
	if t.ExpectedOutputs, err = unmarshalStrings(expectedOutputs); err != nil {
		return nil, err
	}
	if t.Metadata, err = ScanValue(nullStringToAny(metadata)); err != nil {
		return nil, err
	}
	if t.Result, err = ScanValue(nullStringToAny(result)); err != nil {
		return nil, err
	}
	if t.RetryPolicy, err = ScanValue(nullStringToAny(retryPolicy)); err != nil {
		return nil, err
	}
	return &t, nil
}

func nullStringToAny(ns sql.NullString) any {
	if !ns.Valid {
		return nil
	}
	return ns.String
}

// GetTask returns a task by ID, or a *NotFoundError if it does not exist.
func (q *Queue) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := q.store.DB().QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "task", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// ListTasksOptions filters ListTasks; zero values mean "no filter".
type ListTasksOptions struct {
	JobID  string
	Status TaskStatus
	Limit  int
}

// ListTasks returns tasks matching opts, newest first.
func (q *Queue) ListTasks(ctx context.Context, opts ListTasksOptions) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if opts.JobID != "" {
		query += ` AND job_id = ?`
		args = append(args, opts.JobID)
	}
	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := q.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
