package queue

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// SetSharedContext upserts a key/value coordination hint, per spec.md §4.2
// "set_shared_context". An empty jobID scopes the entry globally, visible
// to GetSharedContext calls from any job (overlay semantics: a job-scoped
// entry with the same key shadows the global one).
func (q *Queue) SetSharedContext(ctx context.Context, jobID, key, value string) error {
	if key == "" {
		return newValidationError("key must not be empty")
	}
	now := q.now()
	if jobID == "" {
		_, err := q.store.DB().ExecContext(ctx, `
			INSERT INTO shared_context (job_id, key, value, created_at, updated_at)
			VALUES (NULL, ?, ?, ?, ?)
			ON CONFLICT(key) WHERE job_id IS NULL DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value, now, now)
		if err != nil {
			return fmt.Errorf("set global shared context %q: %w", key, err)
		}
		return nil
	}

	_, err := q.store.DB().ExecContext(ctx, `
		INSERT INTO shared_context (job_id, key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job_id, key) WHERE job_id IS NOT NULL DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, jobID, key, value, now, now)
	if err != nil {
		return fmt.Errorf("set shared context %q for job %s: %w", key, jobID, err)
	}
	return nil
}

// GetSharedContext resolves key for jobID, preferring a job-scoped entry and
// falling back to a global one, per spec.md §4.2 "get_shared_context".
func (q *Queue) GetSharedContext(ctx context.Context, jobID, key string) (string, bool, error) {
	if jobID != "" {
		row := q.store.DB().QueryRowContext(ctx, `
			SELECT value FROM shared_context WHERE job_id = ? AND key = ?
		`, jobID, key)
		var v string
		switch err := row.Scan(&v); err {
		case nil:
			return v, true, nil
		case sql.ErrNoRows:
			// fall through to global lookup
		default:
			return "", false, fmt.Errorf("get shared context %q for job %s: %w", key, jobID, err)
		}
	}

	row := q.store.DB().QueryRowContext(ctx, `
		SELECT value FROM shared_context WHERE job_id IS NULL AND key = ?
	`, key)
	var v string
	err := row.Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get global shared context %q: %w", key, err)
	}
	return v, true, nil
}

// ListSharedContext returns the merged view of shared context for jobID:
// every global entry, overlaid with any job-scoped entry sharing a key, per
// the same overlay semantics as GetSharedContext. Used to build the
// worker's "Project Conventions" prompt section.
func (q *Queue) ListSharedContext(ctx context.Context, jobID string) ([]SharedContextEntry, error) {
	byKey := make(map[string]SharedContextEntry)

	globalRows, err := q.store.DB().QueryContext(ctx, `
		SELECT key, value, created_at, updated_at FROM shared_context WHERE job_id IS NULL ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("list global shared context: %w", err)
	}
	if err := scanSharedContextRows(globalRows, byKey); err != nil {
		return nil, err
	}

	if jobID != "" {
		jobRows, err := q.store.DB().QueryContext(ctx, `
			SELECT key, value, created_at, updated_at FROM shared_context WHERE job_id = ? ORDER BY key
		`, jobID)
		if err != nil {
			return nil, fmt.Errorf("list shared context for job %s: %w", jobID, err)
		}
		if err := scanSharedContextRows(jobRows, byKey); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]SharedContextEntry, 0, len(byKey))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out, nil
}

func scanSharedContextRows(rows *sql.Rows, byKey map[string]SharedContextEntry) error {
	defer rows.Close()
	for rows.Next() {
		var e SharedContextEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return fmt.Errorf("scan shared context row: %w", err)
		}
		byKey[e.Key] = e
	}
	return rows.Err()
}

// DeleteSharedContext removes a job-scoped (or, with jobID == "", global)
// entry, per spec.md §4.2 "delete_shared_context".
func (q *Queue) DeleteSharedContext(ctx context.Context, jobID, key string) error {
	var err error
	if jobID == "" {
		_, err = q.store.DB().ExecContext(ctx, `DELETE FROM shared_context WHERE job_id IS NULL AND key = ?`, key)
	} else {
		_, err = q.store.DB().ExecContext(ctx, `DELETE FROM shared_context WHERE job_id = ? AND key = ?`, jobID, key)
	}
	if err != nil {
		return fmt.Errorf("delete shared context %q: %w", key, err)
	}
	return nil
}
