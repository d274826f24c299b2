// Package orchestrator implements the Orchestrator of spec.md §4.5: it
// creates jobs, fans work out to the Queue as subtasks, waits for them to
// finish, and formats the results for downstream synthesis.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WMahoney09/klauss/internal/config"
	"github.com/WMahoney09/klauss/internal/queue"
)

// ProjectBoundaryError reports a working_dir outside the project root with
// allow_external not set, per spec.md §7 "project boundary violation".
type ProjectBoundaryError struct {
	WorkingDir  string
	ProjectRoot string
}

func (e *ProjectBoundaryError) Error() string {
	return fmt.Sprintf(
		"working directory %q is outside project root %q; pass AllowExternal or set safety.allow_external_dirs",
		e.WorkingDir, e.ProjectRoot,
	)
}

// Orchestrator is a thin Queue client: every method here is a composition
// of Queue operations, never a second source of truth.
type Orchestrator struct {
	Queue          *queue.Queue
	Config         *config.Config
	OrchestratorID string
}

// New constructs an Orchestrator bound to cfg's project boundary rules.
func New(q *queue.Queue, cfg *config.Config) *Orchestrator {
	return &Orchestrator{Queue: q, Config: cfg, OrchestratorID: "orchestrator_" + uuid.NewString()[:12]}
}

// CreateJob registers a new job, per spec.md §4.5 "create_job".
func (o *Orchestrator) CreateJob(ctx context.Context, description string, metadata queue.Value) (string, error) {
	jobID := "job_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if err := o.Queue.CreateJob(ctx, jobID, description, o.OrchestratorID, metadata); err != nil {
		return "", err
	}
	return jobID, nil
}

// SubtaskSpec is one task to add via AddSubtask/SubmitBatch.
type SubtaskSpec struct {
	Prompt          string
	WorkingDir      string
	ContextFiles    []string
	ExpectedOutputs []string
	Priority        int
	ParentTaskID    *int64
	Metadata        queue.Value
	AllowExternal   bool
}

// AddSubtask adds one task to jobID, validating working_dir against the
// project boundary unless AllowExternal (or config) permits it, per
// spec.md §4.5 "add_subtask" and §7.
func (o *Orchestrator) AddSubtask(ctx context.Context, jobID string, spec SubtaskSpec) (int64, error) {
	if err := o.validateWorkingDir(spec.WorkingDir, spec.AllowExternal); err != nil {
		return 0, err
	}
	priority := spec.Priority
	if priority == 0 {
		priority = o.Config.Defaults.Priority
	}
	return o.Queue.AddTask(ctx, queue.Task{
		Prompt:          spec.Prompt,
		WorkingDir:      spec.WorkingDir,
		ContextFiles:    spec.ContextFiles,
		ExpectedOutputs: spec.ExpectedOutputs,
		Priority:        priority,
		JobID:           &jobID,
		ParentTaskID:    spec.ParentTaskID,
		Metadata:        spec.Metadata,
	})
}

// SubmitBatch adds every spec in specs to jobID sharing parentTaskID (may be
// nil), returning their task IDs in order. Supplements spec.md §4.5 from
// original_source's common "fan out N subtasks in one call" shape
// (example_orchestrator_workflow.py / orchestrator.py's create_hierarchical_tasks).
func (o *Orchestrator) SubmitBatch(ctx context.Context, jobID string, parentTaskID *int64, specs []SubtaskSpec) ([]int64, error) {
	ids := make([]int64, 0, len(specs))
	for _, spec := range specs {
		spec.ParentTaskID = parentTaskID
		id, err := o.AddSubtask(ctx, jobID, spec)
		if err != nil {
			return ids, fmt.Errorf("submit batch: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (o *Orchestrator) validateWorkingDir(workingDir string, allowExternal bool) error {
	if workingDir == "" {
		return nil
	}
	if !o.Config.Safety.EnforceProjectBoundary {
		return nil
	}
	if allowExternal || o.Config.Safety.AllowExternalDirs {
		return nil
	}
	root := o.Config.ProjectRoot
	if root == "" {
		return nil
	}
	abs, err := filepath.Abs(workingDir)
	if err != nil {
		return fmt.Errorf("resolve working dir %q: %w", workingDir, err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return &ProjectBoundaryError{WorkingDir: workingDir, ProjectRoot: root}
	}
	return nil
}

// JobStatus is GetJobStatus's return shape, per spec.md §4.5 "get_job_status".
type JobStatus struct {
	JobID       string
	TotalTasks  int
	Completed   int
	Failed      int
	InProgress  int
	Pending     int
	ProgressPct float64
}

// GetJobStatus summarizes a job's task distribution, per spec.md §4.5.
func (o *Orchestrator) GetJobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	counts, err := o.Queue.JobTaskCounts(ctx, jobID)
	if err != nil {
		return JobStatus{}, err
	}
	s := JobStatus{
		JobID:      jobID,
		TotalTasks: counts.Total,
		Completed:  counts.Completed,
		Failed:     counts.Failed,
		InProgress: counts.InProgress + counts.Claimed,
		Pending:    counts.Pending,
	}
	if s.TotalTasks > 0 {
		s.ProgressPct = float64(s.Completed) / float64(s.TotalTasks) * 100
	}
	return s, nil
}

// TaskResult is one entry of WaitAndCollect's returned map, per spec.md
// §4.5's collected-results shape.
type TaskResult struct {
	TaskID          int64
	Prompt          string
	Status          queue.TaskStatus
	Result          queue.Value
	Error           *string
	WorkingDir      string
	ExpectedOutputs []string
}

// WaitAndCollectOptions configures WaitAndCollect's polling behavior.
type WaitAndCollectOptions struct {
	PollInterval time.Duration
	Timeout      time.Duration // zero means no timeout
	OnProgress   func(JobStatus)
}

// WaitAndCollect polls jobID until no task is pending, claimed, resuming or
// in progress (or Timeout elapses); paused tasks do not keep it waiting. It
// then returns every task's outcome and marks the job complete,
// per spec.md §4.5 "wait_and_collect".
func (o *Orchestrator) WaitAndCollect(ctx context.Context, jobID string, opts WaitAndCollectOptions) (map[int64]TaskResult, error) {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = o.Config.Defaults.PollInterval
	}
	start := time.Now()

	for {
		status, err := o.GetJobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if opts.OnProgress != nil {
			opts.OnProgress(status)
		}
		if status.InProgress+status.Pending == 0 {
			break
		}
		if opts.Timeout > 0 && time.Since(start) > opts.Timeout {
			break
		}

		t := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	tasks, err := o.Queue.ListTasks(ctx, queue.ListTasksOptions{JobID: jobID})
	if err != nil {
		return nil, err
	}
	results := make(map[int64]TaskResult, len(tasks))
	for _, t := range tasks {
		results[t.ID] = TaskResult{
			TaskID:          t.ID,
			Prompt:          t.Prompt,
			Status:          t.Status,
			Result:          t.Result,
			Error:           t.Error,
			WorkingDir:      t.WorkingDir,
			ExpectedOutputs: t.ExpectedOutputs,
		}
	}

	if err := o.Queue.CompleteJob(ctx, jobID); err != nil {
		return results, err
	}
	return results, nil
}

// RetryFailedTasks re-submits every failed task in jobID as a fresh pending
// task, per spec.md §4.5 "retry_failed_tasks". It uses AddTask directly
// (not RetryTask) so the original failed row stays in the audit trail.
func (o *Orchestrator) RetryFailedTasks(ctx context.Context, jobID string) ([]int64, error) {
	failed, err := o.Queue.ListTasks(ctx, queue.ListTasksOptions{JobID: jobID, Status: queue.StatusFailed})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(failed))
	for _, t := range failed {
		id, err := o.AddSubtask(ctx, jobID, SubtaskSpec{
			Prompt:          t.Prompt,
			WorkingDir:      t.WorkingDir,
			ContextFiles:    t.ContextFiles,
			ExpectedOutputs: t.ExpectedOutputs,
			Priority:        t.Priority,
			Metadata:        t.Metadata,
			AllowExternal:   true, // the original working_dir already passed validation once
		})
		if err != nil {
			return ids, fmt.Errorf("retry failed task %d: %w", t.ID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CancelJob cancels every non-terminal task in jobID, per the cancellation
// path supplementing spec.md §4.5 (queue.CancelJob does the actual work;
// this wraps it at the orchestrator's level of abstraction).
func (o *Orchestrator) CancelJob(ctx context.Context, jobID string) (int64, error) {
	return o.Queue.CancelJob(ctx, jobID)
}
