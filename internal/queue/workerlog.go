package queue

import (
	"context"
	"database/sql"
	"fmt"
)

// LogWorkerProgress appends a worker progress line, per spec.md §4.2
// "log_worker_progress". taskID may be nil for worker-lifecycle messages
// not tied to a specific task.
func (q *Queue) LogWorkerProgress(ctx context.Context, workerID string, taskID *int64, level LogLevel, message string) error {
	_, err := q.store.DB().ExecContext(ctx, `
		INSERT INTO worker_logs (worker_id, task_id, timestamp, message, level)
		VALUES (?, ?, ?, ?, ?)
	`, workerID, nullInt64(taskID), q.now(), message, string(level))
	if err != nil {
		return fmt.Errorf("log worker progress: %w", err)
	}
	return nil
}

func scanWorkerLog(rows *sql.Rows) (*WorkerLogEntry, error) {
	var (
		e      WorkerLogEntry
		taskID sql.NullInt64
		level  string
	)
	if err := rows.Scan(&e.LogID, &e.WorkerID, &taskID, &e.Timestamp, &e.Message, &level); err != nil {
		return nil, err
	}
	e.TaskID = scanNullInt64(taskID)
	e.Level = LogLevel(level)
	return &e, nil
}

// GetWorkerLogs returns a task's progress log, oldest first, per spec.md
// §4.2 "get_worker_logs".
func (q *Queue) GetWorkerLogs(ctx context.Context, taskID int64) ([]*WorkerLogEntry, error) {
	rows, err := q.store.DB().QueryContext(ctx, `
		SELECT log_id, worker_id, task_id, timestamp, message, level
		FROM worker_logs WHERE task_id = ? ORDER BY timestamp ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("get worker logs for task %d: %w", taskID, err)
	}
	defer rows.Close()

	var out []*WorkerLogEntry
	for rows.Next() {
		e, err := scanWorkerLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetActiveProgress returns the most recent log lines across all workers
// whose status is active, per spec.md §4.2 "get_active_progress".
func (q *Queue) GetActiveProgress(ctx context.Context, limit int) ([]*WorkerLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.store.DB().QueryContext(ctx, `
		SELECT l.log_id, l.worker_id, l.task_id, l.timestamp, l.message, l.level
		FROM worker_logs l
		JOIN workers w ON w.worker_id = l.worker_id
		WHERE w.status = ?
		ORDER BY l.timestamp DESC
		LIMIT ?
	`, string(WorkerActive), limit)
	if err != nil {
		return nil, fmt.Errorf("get active progress: %w", err)
	}
	defer rows.Close()

	var out []*WorkerLogEntry
	for rows.Next() {
		e, err := scanWorkerLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetJobProgress returns the most recent log lines for any task in jobID,
// per spec.md §4.2 "get_job_progress".
func (q *Queue) GetJobProgress(ctx context.Context, jobID string, limit int) ([]*WorkerLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.store.DB().QueryContext(ctx, `
		SELECT l.log_id, l.worker_id, l.task_id, l.timestamp, l.message, l.level
		FROM worker_logs l
		JOIN tasks t ON t.id = l.task_id
		WHERE t.job_id = ?
		ORDER BY l.timestamp DESC
		LIMIT ?
	`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("get job progress for %s: %w", jobID, err)
	}
	defer rows.Close()

	var out []*WorkerLogEntry
	for rows.Next() {
		e, err := scanWorkerLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
