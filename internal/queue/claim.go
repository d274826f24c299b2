package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/WMahoney09/klauss/internal/taskstore"
)

// candidateScanLimit bounds how many pending rows ClaimTask inspects before
// giving up, so a long tail of dependency-blocked tasks cannot turn a claim
// into an unbounded table scan under the exclusive lock.
const candidateScanLimit = 50

// ClaimTask atomically selects the highest-priority, oldest, dependency-free
// pending task and marks it claimed by workerID, per spec.md §4.2
// "claim_task". Returns (nil, nil) if nothing is claimable right now. The
// whole select-then-update sequence runs under BEGIN IMMEDIATE so two
// workers in two separate OS processes can never claim the same row
// (spec.md §5, at-most-one-claim).
func (q *Queue) ClaimTask(ctx context.Context, workerID string) (*Task, error) {
	if workerID == "" {
		return nil, newValidationError("worker_id must not be empty")
	}

	var claimed *Task
	err := q.store.WithTx(ctx, taskstore.TxExclusive, func(tx taskstore.Tx) error {
		// Pending tasks take priority over paused ones needing resumption;
		// within each, highest priority then oldest first.
		for _, src := range []struct {
			from TaskStatus
			to   TaskStatus
		}{
			{StatusPending, StatusClaimed},
			{StatusPaused, StatusResuming},
		} {
			t, err := q.claimOneCandidate(ctx, tx, src.from, src.to, workerID)
			if err != nil {
				return err
			}
			if t != nil {
				claimed = t
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// claimOneCandidate scans tasks in status from (dependency-free, priority
// order) and atomically moves the first eligible one to status to under
// workerID. Returns (nil, nil) if nothing eligible is found.
func (q *Queue) claimOneCandidate(ctx context.Context, tx taskstore.Tx, from, to TaskStatus, workerID string) (*Task, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status = ?
		ORDER BY priority DESC, created_at ASC
		LIMIT ?
	`, string(from), candidateScanLimit)
	if err != nil {
		return nil, fmt.Errorf("scan %s candidates: %w", from, err)
	}
	var candidates []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, t := range candidates {
		unmet, err := unmetDependencies(ctx, tx, t.ID)
		if err != nil {
			return nil, err
		}
		if len(unmet) > 0 {
			continue
		}

		now := q.now()
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, worker_id = ?, claimed_at = ?
			WHERE id = ? AND status = ?
		`, string(to), workerID, now, t.ID, string(from))
		if err != nil {
			return nil, fmt.Errorf("claim task %d: %w", t.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}

		t.Status = to
		t.WorkerID = &workerID
		t.ClaimedAt = &now
		return t, nil
	}
	return nil, nil
}

// StartTask transitions a claimed (or resuming) task to in_progress, per
// spec.md §4.2 "start_task". Rejects the call with a *StateError if
// workerID does not hold the task or it is not in a startable status.
func (q *Queue) StartTask(ctx context.Context, taskID int64, workerID string) error {
	return q.store.WithTx(ctx, taskstore.TxDeferred, func(tx taskstore.Tx) error {
		t, err := q.lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if !t.HeldBy(workerID) {
			return &StateError{TaskID: taskID, From: t.Status, To: string(StatusInProgress), Reason: "not held by this worker"}
		}
		if t.Status != StatusClaimed && t.Status != StatusResuming {
			return &StateError{TaskID: taskID, From: t.Status, To: string(StatusInProgress), Reason: "not claimed or resuming"}
		}

		now := q.now()
		_, err = tx.ExecContext(ctx, `UPDATE tasks SET status = ?, started_at = ? WHERE id = ?`,
			string(StatusInProgress), now, taskID)
		if err != nil {
			return fmt.Errorf("start task %d: %w", taskID, err)
		}
		return nil
	})
}

// CompleteTask marks a task completed with its result payload, per spec.md
// §4.2 "complete_task".
func (q *Queue) CompleteTask(ctx context.Context, taskID int64, workerID string, result Value) error {
	return q.store.WithTx(ctx, taskstore.TxDeferred, func(tx taskstore.Tx) error {
		t, err := q.lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if !t.HeldBy(workerID) {
			return &StateError{TaskID: taskID, From: t.Status, To: string(StatusCompleted), Reason: "not held by this worker"}
		}
		if t.Status.IsTerminal() {
			return &StateError{TaskID: taskID, From: t.Status, To: string(StatusCompleted), Reason: "already terminal"}
		}

		resultCol, err := valueToColumn(result)
		if err != nil {
			return err
		}
		now := q.now()
		_, err = tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, completed_at = ?, result = ?, error = NULL
			WHERE id = ?
		`, string(StatusCompleted), now, resultCol, taskID)
		if err != nil {
			return fmt.Errorf("complete task %d: %w", taskID, err)
		}
		return nil
	})
}

// FailTask marks a task failed, per spec.md §4.2 "fail_task". If the task
// has remaining retries (retry_count < max_retries), it is automatically
// re-queued as pending instead of left failed — spec.md §9's resolved Open
// Question: RetryTask's prompt-prepend and completed_at-clearing behavior
// also applies to this inline auto-retry path, since both re-arm the same
// row for another ClaimTask pass.
func (q *Queue) FailTask(ctx context.Context, taskID int64, workerID string, errMsg string) error {
	return q.store.WithTx(ctx, taskstore.TxDeferred, func(tx taskstore.Tx) error {
		t, err := q.lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if !t.HeldBy(workerID) {
			return &StateError{TaskID: taskID, From: t.Status, To: string(StatusFailed), Reason: "not held by this worker"}
		}
		if t.Status.IsTerminal() {
			return &StateError{TaskID: taskID, From: t.Status, To: string(StatusFailed), Reason: "already terminal"}
		}

		now := q.now()
		if t.RetryCount < t.MaxRetries {
			prompt := t.Prompt
			policy := decodeRetryPolicy(t.RetryPolicy)
			if policy.IncludeErrorContext {
				prompt = fmt.Sprintf("[Previous attempt failed with: %s]\n\n%s", errMsg, t.Prompt)
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE tasks SET
					status = ?, prompt = ?, worker_id = NULL, claimed_at = NULL,
					started_at = NULL, completed_at = NULL, last_error = ?, retry_count = retry_count + 1
				WHERE id = ?
			`, string(StatusPending), prompt, errMsg, taskID)
			if err != nil {
				return fmt.Errorf("auto-retry task %d: %w", taskID, err)
			}
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, completed_at = ?, error = ?, last_error = ?
			WHERE id = ?
		`, string(StatusFailed), now, errMsg, errMsg, taskID)
		if err != nil {
			return fmt.Errorf("fail task %d: %w", taskID, err)
		}
		return nil
	})
}

// RetryTask resets a failed (or cancelled) task back to pending for another
// claim, per spec.md §4.2 "retry_task", overriding its own max_retries
// bookkeeping (a manual retry is explicit operator intent, not an automatic
// one). completed_at is cleared so the task no longer reads as done.
func (q *Queue) RetryTask(ctx context.Context, taskID int64) error {
	return q.store.WithTx(ctx, taskstore.TxDeferred, func(tx taskstore.Tx) error {
		t, err := q.lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t.Status != StatusFailed && t.Status != StatusCancelled {
			return &StateError{TaskID: taskID, From: t.Status, To: string(StatusPending), Reason: "only failed or cancelled tasks can be retried"}
		}

		prompt := t.Prompt
		policy := decodeRetryPolicy(t.RetryPolicy)
		if policy.IncludeErrorContext && t.LastError != nil {
			prompt = fmt.Sprintf("[Previous attempt failed with: %s]\n\n%s", *t.LastError, t.Prompt)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE tasks SET
				status = ?, prompt = ?, worker_id = NULL, claimed_at = NULL,
				started_at = NULL, completed_at = NULL, error = NULL
			WHERE id = ?
		`, string(StatusPending), prompt, taskID)
		if err != nil {
			return fmt.Errorf("retry task %d: %w", taskID, err)
		}
		return nil
	})
}

// PauseTask marks an in-progress task paused with its checkpoint already
// saved by the caller (via SaveCheckpoint), per spec.md §4.2 "pause_task".
func (q *Queue) PauseTask(ctx context.Context, taskID int64, workerID string) error {
	return q.store.WithTx(ctx, taskstore.TxDeferred, func(tx taskstore.Tx) error {
		t, err := q.lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if !t.HeldBy(workerID) {
			return &StateError{TaskID: taskID, From: t.Status, To: string(StatusPaused), Reason: "not held by this worker"}
		}
		if t.Status != StatusInProgress {
			return &StateError{TaskID: taskID, From: t.Status, To: string(StatusPaused), Reason: "not in progress"}
		}
		_, err = tx.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, string(StatusPaused), taskID)
		if err != nil {
			return fmt.Errorf("pause task %d: %w", taskID, err)
		}
		return nil
	})
}

// ResumeTask transitions a paused task back to resuming, so StartTask's
// worker-held-and-resuming path can pick it back up, per spec.md §9's
// checkpoint-resume addition grounded on original_source/claude_worker.py.
func (q *Queue) ResumeTask(ctx context.Context, taskID int64, workerID string) error {
	return q.store.WithTx(ctx, taskstore.TxExclusive, func(tx taskstore.Tx) error {
		t, err := q.lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t.Status != StatusPaused {
			return &StateError{TaskID: taskID, From: t.Status, To: string(StatusResuming), Reason: "not paused"}
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, worker_id = ?, claimed_at = ? WHERE id = ? AND status = ?
		`, string(StatusResuming), workerID, q.now(), taskID, string(StatusPaused))
		if err != nil {
			return fmt.Errorf("resume task %d: %w", taskID, err)
		}
		return nil
	})
}

// CleanupStaleTasks re-queues claimed/in_progress/resuming tasks whose
// holder's heartbeat is older than staleAfter, per spec.md §4.2
// "cleanup_stale_tasks". It compares against q.now() at second granularity,
// never the source's day-fraction float (spec.md §9, resolved).
func (q *Queue) CleanupStaleTasks(ctx context.Context, staleAfter time.Duration) ([]int64, error) {
	var recovered []int64
	err := q.store.WithTx(ctx, taskstore.TxExclusive, func(tx taskstore.Tx) error {
		cutoff := q.now().Add(-staleAfter)
		rows, err := tx.QueryContext(ctx, `
			SELECT t.id FROM tasks t
			JOIN workers w ON w.worker_id = t.worker_id
			WHERE t.status IN (?, ?, ?) AND w.last_heartbeat < ?
		`, string(StatusClaimed), string(StatusInProgress), string(StatusResuming), cutoff)
		if err != nil {
			return fmt.Errorf("scan stale tasks: %w", err)
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan stale task id: %w", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, id := range ids {
			_, err := tx.ExecContext(ctx, `
				UPDATE tasks SET status = ?, worker_id = NULL, claimed_at = NULL, started_at = NULL
				WHERE id = ?
			`, string(StatusPending), id)
			if err != nil {
				return fmt.Errorf("recover stale task %d: %w", id, err)
			}
			recovered = append(recovered, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recovered, nil
}

// lockTask reads a task row inside an open transaction, for callers that
// need to validate state before an UPDATE in the same transaction.
func (q *Queue) lockTask(ctx context.Context, tx taskstore.Tx, taskID int64) (*Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "task", Key: taskID}
	}
	if err != nil {
		return nil, fmt.Errorf("lock task %d: %w", taskID, err)
	}
	return t, nil
}

func decodeRetryPolicy(v Value) RetryPolicy {
	var p RetryPolicy
	if v.IsNull() {
		return p
	}
	if m, ok := v.Raw().(map[string]any); ok {
		if inc, ok := m["include_error_context"].(bool); ok {
			p.IncludeErrorContext = inc
		}
	}
	return p
}
