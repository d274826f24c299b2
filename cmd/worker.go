package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/WMahoney09/klauss/internal/logging"
	"github.com/WMahoney09/klauss/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	var (
		workerIDFlag string
		dbFlag       string
	)

	cmd := &cobra.Command{
		Use:   "worker worker_id [db_path]",
		Short: "Run a single worker loop claiming tasks from the queue",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workerID := workerIDFlag
			var dbPositional string
			if workerID == "" && len(args) > 0 {
				workerID = args[0]
			}
			if len(args) > 1 {
				dbPositional = args[1]
			}
			if workerID == "" {
				return fmt.Errorf("worker_id is required")
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

			log := logging.NewLogger("worker").WithField("worker_id", workerID)
			w := worker.New(workerID, q, nil, log)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return w.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&workerIDFlag, "worker-id", "", "Unique worker ID (alternative to positional argument)")
	cmd.Flags().StringVar(&dbFlag, "db-path", "", "Path to task database")
	return cmd
}
