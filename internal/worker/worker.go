// Package worker implements the Worker of spec.md §4.3: a long-lived
// process claiming tasks from the Queue, invoking the external LLM
// subprocess, verifying its output, and reporting the outcome.
package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/WMahoney09/klauss/internal/execx"
	"github.com/WMahoney09/klauss/internal/queue"
)

// llmCommand and its fixed flags are the worker-to-LLM subprocess contract
// of spec.md §6: non-interactive mode, permission-bypass mode.
var llmCommand = []string{"claude", "-p", "--permission-mode", "bypassPermissions"}

const (
	heartbeatInterval = 5 * time.Second
	pollInterval      = 2 * time.Second
	defaultTaskTimeout = 1800 * time.Second
	stderrTruncateLen  = 2000
)

// Worker runs the main loop for a single worker_id.
type Worker struct {
	ID         string
	Queue      *queue.Queue
	Exec       execx.CommandExecutor
	Log        *logrus.Entry
	TaskTimeout time.Duration

	cancelHeartbeat context.CancelFunc
	wg              sync.WaitGroup

	mu            sync.RWMutex
	currentTaskID *int64
}

// New constructs a Worker. exec may be nil to use execx.RealCommandExecutor.
func New(id string, q *queue.Queue, exec execx.CommandExecutor, log *logrus.Entry) *Worker {
	if exec == nil {
		exec = execx.RealCommandExecutor{}
	}
	return &Worker{ID: id, Queue: q, Exec: exec, Log: log, TaskTimeout: defaultTaskTimeout}
}

// HealthCheck reports pending task count and current working directory,
// per spec.md §4.3 startup step 2. It does not fail the caller if the
// Store is reachable but empty — only an unopenable Store is an error.
func (w *Worker) HealthCheck(ctx context.Context) (pending int, cwd string, err error) {
	tasks, err := w.Queue.ListTasks(ctx, queue.ListTasksOptions{Status: queue.StatusPending})
	if err != nil {
		return 0, "", fmt.Errorf("health check: %w", err)
	}
	cwd, err = os.Getwd()
	if err != nil {
		return 0, "", fmt.Errorf("health check: get working directory: %w", err)
	}
	return len(tasks), cwd, nil
}

// Start runs the worker's startup sequence and main loop until ctx is
// cancelled, per spec.md §4.3. It returns when the loop exits cleanly.
func (w *Worker) Start(ctx context.Context) error {
	pending, cwd, err := w.HealthCheck(ctx)
	if err != nil {
		return err
	}
	w.Log.WithFields(logrus.Fields{"pending": pending, "cwd": cwd}).Info("startup health check passed")

	if err := w.Queue.RegisterWorker(ctx, w.ID); err != nil {
		return fmt.Errorf("register worker: %w", err)
	}

	hbCtx, cancel := context.WithCancel(context.Background())
	w.cancelHeartbeat = cancel
	w.wg.Add(1)
	go w.heartbeatLoop(hbCtx)

	defer func() {
		w.cancelHeartbeat()
		w.wg.Wait()
	}()

	return w.mainLoop(ctx)
}

// heartbeatLoop owns its own context independent of the main loop's ctx, so
// a heartbeat in flight is never torn down mid-write by the caller
// cancelling the outer context — it is stopped explicitly by Start's
// deferred cancel, after the main loop has already exited.
func (w *Worker) heartbeatLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush on shutdown, on a fresh context since ctx is done.
			if err := w.Queue.UpdateWorkerHeartbeat(context.Background(), w.ID, queue.WorkerIdle, nil); err != nil {
				w.Log.WithError(err).Warn("final heartbeat update failed")
			}
			return
		case <-ticker.C:
			status := queue.WorkerIdle
			var current *int64
			w.mu.RLock()
			if w.currentTaskID != nil {
				status = queue.WorkerActive
				id := *w.currentTaskID
				current = &id
			}
			w.mu.RUnlock()

			if err := w.Queue.UpdateWorkerHeartbeat(ctx, w.ID, status, current); err != nil {
				w.Log.WithError(err).Warn("heartbeat update failed")
			}
		}
	}
}

// mainLoop is spec.md §4.3's numbered main loop.
func (w *Worker) mainLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		task, err := w.Queue.ClaimTask(ctx, w.ID)
		if err != nil {
			w.Log.WithError(err).Error("claim task failed")
			if !sleep(ctx, pollInterval) {
				return nil
			}
			continue
		}
		if task == nil {
			if !sleep(ctx, pollInterval) {
				return nil
			}
			continue
		}

		w.setCurrentTask(&task.ID)
		w.runTask(ctx, task)
		w.setCurrentTask(nil)
	}
}

func (w *Worker) setCurrentTask(id *int64) {
	w.mu.Lock()
	w.currentTaskID = id
	w.mu.Unlock()
}

// sleep waits for d or ctx cancellation, returning false if ctx ended
// the wait. Using context.Context rather than a bare time.Sleep is what
// makes the poll loop's waits cancellable, per spec.md §5 "no unbounded
// waits" generalized to every wait point, not only subprocess timeouts.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
