// Package queue implements the Queue of spec.md §4.2: the single entry
// point every Worker, Coordinator, and Orchestrator uses to mutate and
// observe task state. All durability lives in taskstore; this package holds
// the state machine and invariants.
package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/WMahoney09/klauss/internal/taskstore"
)

// Clock abstracts "now" so stale-sweep and retry logic can be driven
// deterministically in tests, per spec.md §9's resolved Open Question on
// using a monotonic clock rather than the source's day-fraction float.
type Clock func() time.Time

// Queue wraps a Store with the task/worker/job lifecycle operations.
type Queue struct {
	store *taskstore.Store
	now   Clock
}

// New returns a Queue backed by store, using the real wall clock.
func New(store *taskstore.Store) *Queue {
	return &Queue{store: store, now: taskstore.Now}
}

// WithClock overrides the clock, for deterministic stale-sweep tests.
func (q *Queue) WithClock(now Clock) *Queue {
	q.now = now
	return q
}

func marshalStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "", fmt.Errorf("marshal string list: %w", err)
	}
	return string(b), nil
}

func unmarshalStrings(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(s), &ss); err != nil {
		return nil, fmt.Errorf("unmarshal string list: %w", err)
	}
	return ss, nil
}

// nullString converts a *string to a driver-friendly any.
func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// nullInt64 converts a *int64 to a driver-friendly any.
func nullInt64(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}

func scanNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func scanNullInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func scanNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}
