package queue

import "fmt"

// ValidationError reports a bad argument caught before anything reaches the
// Store — spec.md §7 taxonomy item 1. Never written to the Store.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func newValidationError(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// CycleError reports that adding a dependency edge would close a cycle in
// the dependency graph — spec.md §4.2 "add_task_dependency".
type CycleError struct {
	Task        int64
	DependsOn   int64
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle: task %d already (transitively) depends on task %d", e.DependsOn, e.Task)
}

// StateError reports an attempted transition the state machine rejects —
// spec.md §7 taxonomy item 2. Callers should treat this as a programming bug.
type StateError struct {
	TaskID int64
	From   TaskStatus
	To     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("task %d: cannot transition from %s to %s: %s", e.TaskID, e.From, e.To, e.Reason)
}

// NotFoundError reports that a row a query expected to exist was absent.
type NotFoundError struct {
	Kind string
	Key  any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Kind, e.Key)
}
