package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WMahoney09/klauss/internal/queue"
)

func newStatsCmd() *cobra.Command {
	var dbFlag string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := resolveDBPath(dbFlag, "")
			if err != nil {
				return err
			}
			q, store, err := openQueue(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := ctxForCLI()
			counts := make(map[queue.TaskStatus]int)
			for _, status := range []queue.TaskStatus{
				queue.StatusPending, queue.StatusClaimed, queue.StatusInProgress,
				queue.StatusPaused, queue.StatusResuming, queue.StatusCompleted,
				queue.StatusFailed, queue.StatusCancelled,
			} {
				tasks, err := q.ListTasks(ctx, queue.ListTasksOptions{Status: status})
				if err != nil {
					return err
				}
				counts[status] = len(tasks)
			}

			workers, err := q.ListWorkers(ctx)
			if err != nil {
				return err
			}
			active := 0
			for _, w := range workers {
				if w.Status == queue.WorkerActive {
					active++
				}
			}

			total := counts[queue.StatusPending] + counts[queue.StatusClaimed] + counts[queue.StatusInProgress] +
				counts[queue.StatusPaused] + counts[queue.StatusResuming] + counts[queue.StatusCompleted] +
				counts[queue.StatusFailed] + counts[queue.StatusCancelled]

			fmt.Println("\nQueue Statistics")
			fmt.Println(dashes(40))
			fmt.Printf("Pending:      %d\n", counts[queue.StatusPending])
			fmt.Printf("Claimed:      %d\n", counts[queue.StatusClaimed])
			fmt.Printf("In Progress:  %d\n", counts[queue.StatusInProgress])
			fmt.Printf("Paused:       %d\n", counts[queue.StatusPaused])
			fmt.Printf("Resuming:     %d\n", counts[queue.StatusResuming])
			fmt.Printf("Completed:    %d\n", counts[queue.StatusCompleted])
			fmt.Printf("Failed:       %d\n", counts[queue.StatusFailed])
			fmt.Printf("Cancelled:    %d\n", counts[queue.StatusCancelled])
			fmt.Println(dashes(40))
			fmt.Printf("Total:        %d\n", total)
			fmt.Println()
			fmt.Printf("Active Workers: %d\n", active)
			fmt.Printf("Total Workers:  %d\n", len(workers))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbFlag, "db", "", "Path to task database")
	return cmd
}
