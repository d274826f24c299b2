package worker

import (
	"context"
	"fmt"

	"github.com/WMahoney09/klauss/internal/execx"
	"github.com/WMahoney09/klauss/internal/queue"
	"github.com/WMahoney09/klauss/internal/verify"
)

// taskMetadata is the subset of Task.Metadata the worker inspects, per
// spec.md §4.3 step 8 ("the task's metadata enables auto-verification")
// and §4.6 (an explicit hooks list overrides auto-detection).
type taskMetadata struct {
	AutoVerify bool         `json:"auto_verify"`
	Hooks      []verify.Hook `json:"hooks"`
}

func decodeTaskMetadata(v queue.Value) taskMetadata {
	var m taskMetadata
	raw, ok := v.Raw().(map[string]any)
	if !ok {
		return m
	}
	if av, ok := raw["auto_verify"].(bool); ok {
		m.AutoVerify = av
	}
	if hooksRaw, ok := raw["hooks"].([]any); ok {
		for _, hr := range hooksRaw {
			hm, ok := hr.(map[string]any)
			if !ok {
				continue
			}
			h := verify.Hook{FailOnError: true}
			if cmd, ok := hm["command"].(string); ok {
				h.Command = cmd
			}
			if desc, ok := hm["description"].(string); ok {
				h.Description = desc
			}
			if foe, ok := hm["fail_on_error"].(bool); ok {
				h.FailOnError = foe
			}
			m.Hooks = append(m.Hooks, h)
		}
	}
	return m
}

// runTask executes steps 2-11 of spec.md §4.3's main loop for one claimed
// task, ending in either CompleteTask or FailTask.
func (w *Worker) runTask(ctx context.Context, task *queue.Task) {
	log := w.Log.WithField("task_id", task.ID)

	if err := w.Queue.StartTask(ctx, task.ID, w.ID); err != nil {
		log.WithError(err).Error("start task failed")
		return
	}
	_ = w.Queue.LogWorkerProgress(ctx, w.ID, &task.ID, queue.LogInfo, "task started")

	prompt, err := buildEffectivePrompt(ctx, w.Queue, task)
	if err != nil {
		w.fail(ctx, task, fmt.Sprintf("build effective prompt: %v", err))
		return
	}

	workDir := task.WorkingDir
	timeout := w.TaskTimeout
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}

	res, err := w.Exec.Run(ctx, execx.Spec{
		Name:    llmCommand[0],
		Args:    llmCommand[1:],
		Dir:     workDir,
		Stdin:   prompt,
		Timeout: timeout,
	})
	if err != nil {
		w.fail(ctx, task, fmt.Sprintf("spawn LLM subprocess: %v", err))
		return
	}
	if res.TimedOut {
		w.fail(ctx, task, fmt.Sprintf("task execution timeout (%s)", timeout))
		return
	}
	if res.ExitCode != 0 {
		msg := fmt.Sprintf("LLM CLI exited with code %d", res.ExitCode)
		if res.Stderr != "" {
			msg += fmt.Sprintf(": %s", truncate(res.Stderr, stderrTruncateLen))
		}
		w.fail(ctx, task, msg)
		return
	}

	result := queue.Result{
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		ExitCode:   res.ExitCode,
		WorkingDir: workDir,
	}

	var missingFiles []string
	if len(task.ExpectedOutputs) > 0 {
		allExist, present := verify.CheckExpectedOutputs(workDir, task.ExpectedOutputs)
		result.ExpectedFilesPresent = present
		if !allExist {
			for f, ok := range present {
				if !ok {
					missingFiles = append(missingFiles, f)
				}
			}
		}
	}
	if len(missingFiles) > 0 {
		msg := verify.FormatFailure(missingFiles, nil)
		result.VerificationResults = nil
		w.failWithResult(ctx, task, msg, result)
		return
	}

	meta := decodeTaskMetadata(task.Metadata)
	hooks := meta.Hooks
	if meta.AutoVerify && len(hooks) == 0 {
		types := verify.DetectProjectTypes(workDir)
		if len(types) > 0 {
			hooks = verify.DefaultHooks(workDir, types)
			log.WithField("project_types", types).Info("auto-detected verification hooks")
		}
	}

	if len(hooks) > 0 {
		allPassed, results := verify.VerifyTask(ctx, w.Exec, workDir, hooks)
		result.VerificationResults = toQueueHookResults(results)
		if !allPassed {
			msg := verify.FormatFailure(nil, results)
			w.failWithResult(ctx, task, msg, result)
			return
		}
	}

	if err := w.Queue.CompleteTask(ctx, task.ID, w.ID, queue.NewValue(resultToMap(result))); err != nil {
		log.WithError(err).Error("complete task failed")
		return
	}
	_ = w.Queue.DeleteCheckpoint(ctx, task.ID)
	_ = w.Queue.LogWorkerProgress(ctx, w.ID, &task.ID, queue.LogInfo, "task completed")
}

func (w *Worker) fail(ctx context.Context, task *queue.Task, msg string) {
	w.Log.WithField("task_id", task.ID).WithField("error", msg).Warn("task failed")
	_ = w.Queue.LogWorkerProgress(ctx, w.ID, &task.ID, queue.LogError, msg)
	if err := w.Queue.FailTask(ctx, task.ID, w.ID, msg); err != nil {
		w.Log.WithError(err).Error("fail task failed")
	}
}

// failWithResult logs msg as a worker progress line and fails the task with
// msg. The partial Result is neither stored nor logged, since FailTask's
// error column is a plain string.
func (w *Worker) failWithResult(ctx context.Context, task *queue.Task, msg string, result queue.Result) {
	_ = w.Queue.LogWorkerProgress(ctx, w.ID, &task.ID, queue.LogError, fmt.Sprintf("verification failed: %s", msg))
	if err := w.Queue.FailTask(ctx, task.ID, w.ID, msg); err != nil {
		w.Log.WithError(err).Error("fail task failed")
	}
}

func toQueueHookResults(results []verify.HookResult) []queue.HookResult {
	out := make([]queue.HookResult, 0, len(results))
	for _, r := range results {
		out = append(out, queue.HookResult{
			Description: r.Description,
			Command:     r.Command,
			Passed:      r.Passed,
			ExitCode:    r.ExitCode,
			Stdout:      r.Stdout,
			Stderr:      r.Stderr,
			FailOnError: r.FailOnError,
			TimedOut:    r.TimedOut,
		})
	}
	return out
}

// resultToMap converts a queue.Result to a plain map so it can be wrapped
// in a queue.Value without a second JSON round-trip through its own
// MarshalJSON — Value.Raw() expects map[string]any, []any, or scalars, not
// arbitrary structs.
func resultToMap(r queue.Result) map[string]any {
	m := map[string]any{
		"stdout":      r.Stdout,
		"stderr":      r.Stderr,
		"exit_code":   float64(r.ExitCode),
		"working_dir": r.WorkingDir,
	}
	if r.ExpectedFilesPresent != nil {
		present := make(map[string]any, len(r.ExpectedFilesPresent))
		for k, v := range r.ExpectedFilesPresent {
			present[k] = v
		}
		m["expected_files_present"] = present
	}
	if r.VerificationResults != nil {
		hooks := make([]any, 0, len(r.VerificationResults))
		for _, h := range r.VerificationResults {
			hooks = append(hooks, map[string]any{
				"description":   h.Description,
				"command":       h.Command,
				"passed":        h.Passed,
				"exit_code":     float64(h.ExitCode),
				"stdout":        h.Stdout,
				"stderr":        h.Stderr,
				"fail_on_error": h.FailOnError,
				"timed_out":     h.TimedOut,
			})
		}
		m["verification_results"] = hooks
	}
	return m
}
