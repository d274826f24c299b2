package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	var dbFlag string

	cmd := &cobra.Command{
		Use:   "show <task_id>",
		Short: "Show detailed task information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task_id %q: %w", args[0], err)
			}

			dbPath, err := resolveDBPath(dbFlag, "")
			if err != nil {
				return err
			}
			q, store, err := openQueue(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			task, err := q.GetTask(ctxForCLI(), id)
			if err != nil {
				return err
			}

			fmt.Printf("\nTask %d\n", task.ID)
			fmt.Println(dashes(60))
			fmt.Printf("Status:        %s\n", task.Status)
			fmt.Printf("Priority:      %d\n", task.Priority)
			fmt.Printf("Worker:        %s\n", orDash(task.WorkerID))
			fmt.Printf("Created:       %s\n", task.CreatedAt)
			fmt.Printf("Claimed:       %s\n", orDashTime(task.ClaimedAt))
			fmt.Printf("Started:       %s\n", orDashTime(task.StartedAt))
			fmt.Printf("Completed:     %s\n", orDashTime(task.CompletedAt))
			fmt.Printf("Working Dir:   %s\n", dashIfEmpty(task.WorkingDir))
			fmt.Println()
			fmt.Println("Prompt:")
			fmt.Println(dashes(60))
			fmt.Println(task.Prompt)
			fmt.Println()

			if len(task.ContextFiles) > 0 {
				fmt.Println("Context Files:")
				for _, f := range task.ContextFiles {
					fmt.Printf("  - %s\n", f)
				}
				fmt.Println()
			}
			if len(task.ExpectedOutputs) > 0 {
				fmt.Println("Expected Outputs:")
				for _, f := range task.ExpectedOutputs {
					fmt.Printf("  - %s\n", f)
				}
				fmt.Println()
			}
			if !task.Result.IsNull() {
				fmt.Println("Result:")
				fmt.Println(dashes(60))
				b, _ := json.MarshalIndent(task.Result.Raw(), "", "  ")
				fmt.Println(string(b))
				fmt.Println()
			}
			if task.Error != nil {
				fmt.Println("Error:")
				fmt.Println(dashes(60))
				fmt.Println(*task.Error)
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbFlag, "db", "", "Path to task database")
	return cmd
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func orDashTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
