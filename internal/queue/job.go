package queue

import (
	"context"
	"database/sql"
	"fmt"
)

const jobColumns = `job_id, description, orchestrator_id, status, created_at, completed_at, metadata`

func scanJob(row interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		j          Job
		status     string
		completed  sql.NullTime
		metadata   sql.NullString
	)
	if err := row.Scan(&j.JobID, &j.Description, &j.OrchestratorID, &status, &j.CreatedAt, &completed, &metadata); err != nil {
		return nil, err
	}
	j.Status = JobStatus(status)
	j.CompletedAt = scanNullTime(completed)
	v, err := ScanValue(nullStringToAny(metadata))
	if err != nil {
		return nil, err
	}
	j.Metadata = v
	return &j, nil
}

// CreateJob registers a new job grouping, per spec.md §4.5 "create_job".
// jobID is caller-supplied (typically a ULID/UUID minted by the
// orchestrator) so task rows can reference it before the job row exists.
func (q *Queue) CreateJob(ctx context.Context, jobID, description, orchestratorID string, metadata Value) error {
	if jobID == "" {
		return newValidationError("job_id must not be empty")
	}
	metaCol, err := valueToColumn(metadata)
	if err != nil {
		return err
	}
	_, err = q.store.DB().ExecContext(ctx, `
		INSERT INTO jobs (job_id, description, orchestrator_id, status, metadata)
		VALUES (?, ?, ?, ?, ?)
	`, jobID, description, orchestratorID, string(JobActive), metaCol)
	if err != nil {
		return fmt.Errorf("create job %s: %w", jobID, err)
	}
	return nil
}

// GetJob returns a job by ID.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	row := q.store.DB().QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "job", Key: jobID}
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return j, nil
}

// CompleteJob marks an active job completed, per spec.md §4.5
// "get_job_status"'s completion side effect. It does not check the state of
// the job's tasks; callers decide when the job is done.
func (q *Queue) CompleteJob(ctx context.Context, jobID string) error {
	res, err := q.store.DB().ExecContext(ctx, `
		UPDATE jobs SET status = ?, completed_at = ? WHERE job_id = ? AND status = ?
	`, string(JobCompleted), q.now(), jobID, string(JobActive))
	if err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.GetJob(ctx, jobID); err != nil {
			return err
		}
	}
	return nil
}

// JobTaskCounts summarizes task status distribution for a job, per spec.md
// §4.5 "get_job_status".
type JobTaskCounts struct {
	Total      int
	Pending    int
	Claimed    int
	InProgress int
	Paused     int
	Completed  int
	Failed     int
	Cancelled  int
}

// JobTaskCounts tallies task statuses within a job.
func (q *Queue) JobTaskCounts(ctx context.Context, jobID string) (JobTaskCounts, error) {
	rows, err := q.store.DB().QueryContext(ctx, `
		SELECT status, COUNT(*) FROM tasks WHERE job_id = ? GROUP BY status
	`, jobID)
	if err != nil {
		return JobTaskCounts{}, fmt.Errorf("job task counts %s: %w", jobID, err)
	}
	defer rows.Close()

	var c JobTaskCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return JobTaskCounts{}, fmt.Errorf("scan job task count: %w", err)
		}
		c.Total += n
		switch TaskStatus(status) {
		case StatusPending:
			c.Pending = n
		case StatusClaimed, StatusResuming:
			c.Claimed += n
		case StatusInProgress:
			c.InProgress = n
		case StatusPaused:
			c.Paused = n
		case StatusCompleted:
			c.Completed = n
		case StatusFailed:
			c.Failed = n
		case StatusCancelled:
			c.Cancelled = n
		}
	}
	return c, rows.Err()
}

// CancelJob marks a job's non-terminal tasks cancelled and the job itself
// completed, per the cancellation path supplementing spec.md §4.5 (not
// named as an explicit operation by the distilled spec, but "cancelled" is
// already a reserved terminal TaskStatus and CancelJob is present in
// original_source/orchestrator.py revisions).
func (q *Queue) CancelJob(ctx context.Context, jobID string) (int64, error) {
	res, err := q.store.DB().ExecContext(ctx, `
		UPDATE tasks SET status = ?, completed_at = ? WHERE job_id = ? AND status NOT IN (?, ?, ?)
	`, string(StatusCancelled), q.now(), jobID, string(StatusCompleted), string(StatusCancelled), string(StatusFailed))
	if err != nil {
		return 0, fmt.Errorf("cancel job tasks %s: %w", jobID, err)
	}
	n, _ := res.RowsAffected()

	_, err = q.store.DB().ExecContext(ctx, `
		UPDATE jobs SET status = ?, completed_at = ? WHERE job_id = ?
	`, string(JobCompleted), q.now(), jobID)
	if err != nil {
		return n, fmt.Errorf("complete cancelled job %s: %w", jobID, err)
	}
	return n, nil
}
