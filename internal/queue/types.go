package queue

import "time"

// TaskStatus is the task lifecycle state, per the state machine in spec.md §4.2.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusClaimed    TaskStatus = "claimed"
	StatusInProgress TaskStatus = "in_progress"
	StatusPaused     TaskStatus = "paused"
	StatusResuming   TaskStatus = "resuming"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether a task is completed or cancelled. Workers cannot
// move such a task; RetryTask can still return a cancelled task to pending.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsHeld reports whether this status requires a non-null WorkerID.
func (s TaskStatus) IsHeld() bool {
	switch s {
	case StatusClaimed, StatusInProgress, StatusPaused, StatusResuming:
		return true
	default:
		return false
	}
}

// WorkerStatus is the worker row's idle/active flag.
type WorkerStatus string

const (
	WorkerIdle   WorkerStatus = "idle"
	WorkerActive WorkerStatus = "active"
)

// JobStatus is the job's active/completed flag.
type JobStatus string

const (
	JobActive    JobStatus = "active"
	JobCompleted JobStatus = "completed"
)

// ChangeOp is the kind of filesystem side effect a TaskChange journals.
type ChangeOp string

const (
	OpCreate ChangeOp = "create"
	OpModify ChangeOp = "modify"
	OpDelete ChangeOp = "delete"
)

// LogLevel is the severity of a WorkerLog entry.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// Task is a unit of work, per spec.md §3 "Task".
type Task struct {
	ID              int64
	Prompt          string
	WorkingDir      string
	ContextFiles    []string
	ExpectedOutputs []string
	Metadata        Value
	Priority        int
	Status          TaskStatus
	WorkerID        *string
	JobID           *string
	ParentTaskID    *int64
	CreatedAt       time.Time
	ClaimedAt       *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Result          Value
	Error           *string
	LastError       *string
	RetryCount      int
	MaxRetries      int
	RetryPolicy     Value
}

// HeldBy reports whether worker holds this task.
func (t *Task) HeldBy(workerID string) bool {
	return t.WorkerID != nil && *t.WorkerID == workerID
}

// Worker is a long-lived execution agent, per spec.md §3 "Worker".
type Worker struct {
	WorkerID        string
	Status          WorkerStatus
	CurrentTaskID   *int64
	StartedAt       time.Time
	LastHeartbeat   time.Time
	Stats           Value
}

// Job is a named group of tasks, per spec.md §3 "Job".
type Job struct {
	JobID           string
	Description     string
	OrchestratorID  string
	Status          JobStatus
	CreatedAt       time.Time
	CompletedAt     *time.Time
	Metadata        Value
}

// Checkpoint is resumable mid-task state, per spec.md §3 "Checkpoint".
type Checkpoint struct {
	TaskID               int64
	CheckpointData       Value
	FilesCreated         []string
	FilesModified        []string
	LastStep             string
	CompletionPercentage int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TaskChange is one journaled filesystem side effect, per spec.md §3 "TaskChange".
type TaskChange struct {
	ChangeID      int64
	TaskID        int64
	Operation     ChangeOp
	FilePath      string
	BeforeContent *string
	AfterContent  *string
	Timestamp     time.Time
}

// SharedContextEntry is a key/value coordination hint, per spec.md §3 "SharedContext".
type SharedContextEntry struct {
	JobID     *string
	Key       string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkerLogEntry is an append-only progress log row, per spec.md §3 "WorkerLog".
type WorkerLogEntry struct {
	LogID     int64
	WorkerID  string
	TaskID    *int64
	Timestamp time.Time
	Message   string
	Level     LogLevel
}

// RetryPolicy controls RetryTask behavior beyond the bare MaxRetries count.
type RetryPolicy struct {
	IncludeErrorContext bool `json:"include_error_context"`
}

// Result is the structured outcome a Worker reports to CompleteTask, per
// spec.md §9 "Result payload".
type Result struct {
	Stdout               string            `json:"stdout"`
	Stderr               string            `json:"stderr"`
	ExitCode             int               `json:"exit_code"`
	WorkingDir           string            `json:"working_dir"`
	ExpectedFilesPresent map[string]bool   `json:"expected_files_present,omitempty"`
	VerificationResults  []HookResult      `json:"verification_results,omitempty"`
}

// HookResult mirrors internal/verify.HookResult but lives in the result JSON
// contract so the queue package does not import the verify package.
type HookResult struct {
	Description string `json:"description"`
	Command     string `json:"command"`
	Passed      bool   `json:"passed"`
	ExitCode    int    `json:"exit_code"`
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	FailOnError bool   `json:"fail_on_error"`
	TimedOut    bool   `json:"timed_out"`
}

// RollbackReport is the outcome of RollbackTask, per spec.md §4.2 "rollback_task".
type RollbackReport struct {
	Restored []string
	Deleted  []string
	Errors   []string
}
