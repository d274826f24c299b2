package coordinator

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WMahoney09/klauss/internal/queue"
	"github.com/WMahoney09/klauss/internal/taskstore"
)

func newTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	path := filepath.Join(t.TempDir(), "klauss.db")
	store, err := taskstore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return queue.New(store)
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func TestNewRejectsNonPositiveWorkerCount(t *testing.T) {
	q := newTestQueue(t)
	_, err := New(Config{WorkerCount: 0}, q, testLogger())
	require.Error(t, err)
}

func TestQueueBusyReflectsPendingTasks(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	c := &Coordinator{queue: q, log: testLogger(), children: make(map[string]*exec.Cmd)}

	busy, err := c.queueBusy(ctx)
	require.NoError(t, err)
	assert.False(t, busy)

	_, err = q.AddTask(ctx, queue.Task{Prompt: "do work"})
	require.NoError(t, err)

	busy, err = c.queueBusy(ctx)
	require.NoError(t, err)
	assert.True(t, busy)
}

func TestShutdownOneStopsProcessOnInterrupt(t *testing.T) {
	c := &Coordinator{log: testLogger(), children: make(map[string]*exec.Cmd)}

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())

	start := time.Now()
	err := c.shutdownOne("worker_1", cmd)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), gracefulWait, "SIGINT should stop a plain sleep well before the graceful-wait timeout")
}
