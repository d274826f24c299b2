package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/WMahoney09/klauss/internal/coordinator"
	"github.com/WMahoney09/klauss/internal/logging"
)

func newCoordinatorCmd() *cobra.Command {
	var (
		workersFlag int
		dbFlag      string
		logDir      string
		idleTimeout time.Duration
		metricsPort int
	)

	cmd := &cobra.Command{
		Use:   "coordinator [workers] [db_path]",
		Short: "Supervise a pool of worker processes against one task database",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var workersPositional, dbPositional string
			if len(args) > 0 {
				workersPositional = args[0]
			}
			if len(args) > 1 {
				dbPositional = args[1]
			}

			workers := workersFlag
			if workers == 0 && workersPositional != "" {
				n, err := parseInt(workersPositional)
				if err != nil {
					return fmt.Errorf("invalid workers argument %q: %w", workersPositional, err)
				}
				workers = n
			}
			if workers == 0 {
				if n, ok := envInt("WORKERS"); ok {
					workers = n
				}
			}
			if workers == 0 {
				workers = 4
			}

			dbPath, err := resolveDBPath(dbFlag, dbPositional)
			if err != nil {
				return err
			}

			q, store, err := openQueue(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			self, err := selfPath()
			if err != nil {
				return err
			}

			c, err := coordinator.New(coordinator.Config{
				WorkerCount: workers,
				DBPath:      dbPath,
				LogDir:      logDir,
				IdleTimeout: idleTimeout,
				Self:        self,
				MetricsAddr: metricsAddr(metricsPort),
			}, q, logging.NewLogger("coordinator"))
			if err != nil {
				return err
			}

			pretty.InfoPretty(fmt.Sprintf("starting %d workers against %s", workers, dbPath))

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return c.Run(ctx)
		},
	}

	cmd.Flags().IntVarP(&workersFlag, "workers", "w", 0, "Number of workers to spawn")
	cmd.Flags().StringVar(&dbFlag, "db", "", "Path to task database")
	cmd.Flags().StringVar(&logDir, "log-dir", "logs", "Directory for per-worker log files")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 0, "Shut down after this long with no pending/active work (0 disables)")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port (0 disables)")
	return cmd
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func metricsAddr(port int) string {
	if port <= 0 {
		return ""
	}
	return fmt.Sprintf("127.0.0.1:%d", port)
}
