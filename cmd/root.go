// Package cmd wires klauss's cobra command tree, per spec.md §6's CLI
// surface table, adapted from the teacher's flat root-command style (the
// teacher's own main.go depends on an unfetchable private CLI wrapper, so
// this builds the root command directly on spf13/cobra, matching the
// pack's other cobra user, cuemby-warren).
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/WMahoney09/klauss/internal/config"
	"github.com/WMahoney09/klauss/internal/logging"
	"github.com/WMahoney09/klauss/internal/queue"
	"github.com/WMahoney09/klauss/internal/taskstore"
)

// RootCmd is klauss's top-level command.
var RootCmd = &cobra.Command{
	Use:   "klauss",
	Short: "A durable, multi-process task dispatcher for LLM-CLI workloads",
	Long: `klauss queues prompts as tasks, dispatches them across a pool of
worker processes that each shell out to an LLM CLI, and tracks every task's
lifecycle in a single SQLite file so the whole pipeline survives a crash of
any one process.`,
}

func init() {
	RootCmd.AddCommand(newCoordinatorCmd())
	RootCmd.AddCommand(newWorkerCmd())
	RootCmd.AddCommand(newSubmitCmd())
	RootCmd.AddCommand(newSubmitFileCmd())
	RootCmd.AddCommand(newListCmd())
	RootCmd.AddCommand(newStatsCmd())
	RootCmd.AddCommand(newShowCmd())
	RootCmd.AddCommand(newRollbackCmd())
	RootCmd.AddCommand(newWatchCmd())
}

// Execute runs the root command, exiting non-zero on any error per
// spec.md §7 "User-visible behavior".
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveDBPath applies the §6 precedence (flag > positional > env > config
// default) shared by every subcommand that opens a Store.
func resolveDBPath(flagVal, positional string) (string, error) {
	if flagVal != "" {
		return flagVal, nil
	}
	if positional != "" {
		return positional, nil
	}
	if env := os.Getenv("DB_PATH"); env != "" {
		return env, nil
	}
	cfg, err := config.Load("")
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.Database.Path, nil
}

// openQueue opens the Store at dbPath and wraps it in a Queue. The caller
// owns closing the returned Store.
func openQueue(dbPath string) (*queue.Queue, *taskstore.Store, error) {
	store, err := taskstore.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store %s: %w", dbPath, err)
	}
	return queue.New(store), store, nil
}

// selfPath resolves the running binary's path, for the Coordinator to
// re-exec as each worker child.
func selfPath() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve self executable: %w", err)
	}
	return self, nil
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

var pretty = logging.NewPrettyLogger()

// ctxForCLI is the background context every one-shot command runs under;
// long-running commands (coordinator, worker, watch) build their own
// signal-cancellable context instead.
func ctxForCLI() context.Context { return context.Background() }
