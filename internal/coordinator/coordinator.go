// Package coordinator implements the Coordinator of spec.md §4.4: it
// supervises a pool of worker child processes, sweeps stale task claims on
// startup, and shuts the pool down on idle or on signal.
package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/WMahoney09/klauss/internal/metrics"
	"github.com/WMahoney09/klauss/internal/queue"
)

const (
	supervisorTick   = 5 * time.Second
	staleAfter       = 2 * time.Minute
	gracefulWait     = 10 * time.Second
	defaultIdleAfter = 0 // 0 disables idle shutdown
)

// Config controls how many workers to run and when to stop.
type Config struct {
	WorkerCount int
	DBPath      string
	LogDir      string
	// IdleTimeout shuts the pool down once the queue has had no pending,
	// claimed, resuming, or in_progress tasks for this long. Zero disables it.
	IdleTimeout time.Duration
	// Self is the path to re-exec for each worker child, defaulting to
	// os.Executable() — re-executing the coordinator's own binary with the
	// "worker" subcommand, per spec.md §4.4.
	Self string
	// MetricsAddr, when non-empty, serves Prometheus gauges at /metrics.
	MetricsAddr string
}

// Coordinator supervises a pool of worker_<id> child processes.
type Coordinator struct {
	cfg   Config
	queue *queue.Queue
	log   *logrus.Entry

	mu       sync.Mutex
	children map[string]*exec.Cmd
}

// New constructs a Coordinator. cfg.WorkerCount must be positive.
func New(cfg Config, q *queue.Queue, log *logrus.Entry) (*Coordinator, error) {
	if cfg.WorkerCount <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", cfg.WorkerCount)
	}
	if cfg.Self == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve self executable: %w", err)
		}
		cfg.Self = self
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	return &Coordinator{cfg: cfg, queue: q, log: log, children: make(map[string]*exec.Cmd)}, nil
}

// Run sweeps stale claims, spawns the configured worker pool, and blocks
// supervising it until ctx is cancelled (by signal or idle-timeout), then
// shuts every child down gracefully, per spec.md §4.4.
func (c *Coordinator) Run(ctx context.Context) error {
	recovered, err := c.queue.CleanupStaleTasks(ctx, staleAfter)
	if err != nil {
		return fmt.Errorf("startup stale sweep: %w", err)
	}
	if len(recovered) > 0 {
		c.log.WithField("count", len(recovered)).Info("recovered stale task claims at startup")
	}

	if err := os.MkdirAll(c.cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	if c.cfg.MetricsAddr != "" {
		c.startMetricsServer()
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		workerID := fmt.Sprintf("worker_%d", i+1)
		if err := c.spawn(workerID); err != nil {
			return fmt.Errorf("spawn %s: %w", workerID, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var idleSince time.Time
	ticker := time.NewTicker(supervisorTick)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			return c.shutdownAll()
		case <-ticker.C:
			c.respawnExited()
			c.updateMetrics(runCtx)

			if c.cfg.IdleTimeout <= 0 {
				continue
			}
			busy, err := c.queueBusy(runCtx)
			if err != nil {
				c.log.WithError(err).Warn("idle check failed")
				continue
			}
			if busy {
				idleSince = time.Time{}
				continue
			}
			if idleSince.IsZero() {
				idleSince = time.Now()
				continue
			}
			if time.Since(idleSince) >= c.cfg.IdleTimeout {
				c.log.Info("idle timeout reached, shutting down worker pool")
				return c.shutdownAll()
			}
		}
	}
}

// startMetricsServer serves the Prometheus handler in the background. A
// listen failure is logged, not fatal — metrics are diagnostic, not
// load-bearing for the worker pool.
func (c *Coordinator) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(c.cfg.MetricsAddr, mux); err != nil {
			c.log.WithError(err).Warn("metrics server stopped")
		}
	}()
	c.log.WithField("addr", c.cfg.MetricsAddr).Info("metrics server listening")
}

// updateMetrics refreshes the worker-count and queue-depth gauges from
// current Queue/child-process state.
func (c *Coordinator) updateMetrics(ctx context.Context) {
	c.mu.Lock()
	total := len(c.children)
	c.mu.Unlock()

	idle, err := c.queue.ListWorkers(ctx)
	if err == nil {
		active := 0
		for _, w := range idle {
			if w.Status == queue.WorkerActive {
				active++
			}
		}
		metrics.WorkersTotal.WithLabelValues("active").Set(float64(active))
		metrics.WorkersTotal.WithLabelValues("idle").Set(float64(total - active))
	}

	for _, status := range []queue.TaskStatus{
		queue.StatusPending, queue.StatusClaimed, queue.StatusInProgress,
		queue.StatusResuming, queue.StatusCompleted, queue.StatusFailed,
		queue.StatusPaused, queue.StatusCancelled,
	} {
		tasks, err := c.queue.ListTasks(ctx, queue.ListTasksOptions{Status: status, Limit: 10000})
		if err != nil {
			continue
		}
		metrics.TasksTotal.WithLabelValues(string(status)).Set(float64(len(tasks)))
	}
}

func (c *Coordinator) queueBusy(ctx context.Context) (bool, error) {
	for _, status := range []queue.TaskStatus{queue.StatusPending, queue.StatusClaimed, queue.StatusInProgress, queue.StatusResuming} {
		tasks, err := c.queue.ListTasks(ctx, queue.ListTasksOptions{Status: status, Limit: 1})
		if err != nil {
			return false, err
		}
		if len(tasks) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (c *Coordinator) spawn(workerID string) error {
	logPath := filepath.Join(c.cfg.LogDir, workerID+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", logPath, err)
	}

	cmd := exec.Command(c.cfg.Self, "worker", "--worker-id", workerID, "--db-path", c.cfg.DBPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("start %s: %w", workerID, err)
	}

	c.mu.Lock()
	c.children[workerID] = cmd
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"worker_id": workerID, "pid": cmd.Process.Pid, "log": logPath}).Info("spawned worker")
	return nil
}

// respawnExited replaces any child that has exited since the last tick.
func (c *Coordinator) respawnExited() {
	c.mu.Lock()
	dead := make([]string, 0)
	for id, cmd := range c.children {
		if cmd.ProcessState != nil {
			dead = append(dead, id)
		}
	}
	c.mu.Unlock()

	for _, id := range dead {
		c.log.WithField("worker_id", id).Warn("worker exited, respawning")
		if err := c.spawn(id); err != nil {
			c.log.WithError(err).WithField("worker_id", id).Error("respawn failed")
		}
	}
}

// shutdownAll signals every child to stop, waits up to gracefulWait each,
// then kills stragglers. Uses errgroup to wait for every child in parallel
// rather than serially, so one slow shutdown does not delay the others.
func (c *Coordinator) shutdownAll() error {
	c.mu.Lock()
	cmds := make(map[string]*exec.Cmd, len(c.children))
	for id, cmd := range c.children {
		cmds[id] = cmd
	}
	c.mu.Unlock()

	var g errgroup.Group
	for id, cmd := range cmds {
		id, cmd := id, cmd
		g.Go(func() error {
			return c.shutdownOne(id, cmd)
		})
	}
	return g.Wait()
}

func (c *Coordinator) shutdownOne(id string, cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		c.log.WithError(err).WithField("worker_id", id).Warn("interrupt failed, killing")
		return cmd.Process.Kill()
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			c.log.WithError(err).WithField("worker_id", id).Debug("worker exited")
		}
		return nil
	case <-time.After(gracefulWait):
		c.log.WithField("worker_id", id).Warn("graceful shutdown timed out, killing")
		return cmd.Process.Kill()
	}
}
