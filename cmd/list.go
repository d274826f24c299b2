package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WMahoney09/klauss/internal/queue"
)

func newListCmd() *cobra.Command {
	var (
		dbFlag     string
		statusFlag string
		jobFlag    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
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

			tasks, err := q.ListTasks(ctxForCLI(), queue.ListTasksOptions{
				Status: queue.TaskStatus(statusFlag),
				JobID:  jobFlag,
			})
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Println("No tasks found")
				return nil
			}

			fmt.Printf("\n%-6s %-12s %-8s %-50s %-10s\n", "ID", "Status", "Priority", "Prompt", "Worker")
			fmt.Println(dashes(100))
			for _, t := range tasks {
				worker := "-"
				if t.WorkerID != nil {
					worker = *t.WorkerID
				}
				fmt.Printf("%-6d %-12s %-8d %-50s %-10s\n", t.ID, t.Status, t.Priority, truncateField(t.Prompt, 47), worker)
			}
			fmt.Printf("\nTotal: %d tasks\n", len(tasks))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbFlag, "db", "", "Path to task database")
	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status")
	cmd.Flags().StringVar(&jobFlag, "job", "", "Filter by job ID")
	return cmd
}

func dashes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '-'
	}
	return string(b)
}

func truncateField(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
