package cmd

import (
	"fmt"
	"strconv"

	survey "github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

func newRollbackCmd() *cobra.Command {
	var (
		dbFlag     string
		dryRunFlag bool
	)

	cmd := &cobra.Command{
		Use:   "rollback <task_id>",
		Short: "Reverse a task's journaled filesystem changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := strconv.ParseInt(args[0], 10, 64)
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

			ctx := ctxForCLI()
			task, err := q.GetTask(ctx, taskID)
			if err != nil {
				return err
			}
			changes, err := q.ListTaskChanges(ctx, taskID)
			if err != nil {
				return err
			}

			fmt.Printf("Task %d: %s\n", taskID, truncatePrompt(task.Prompt))
			fmt.Printf("Status: %s\n", task.Status)
			fmt.Printf("Tracked changes: %d\n\n", len(changes))

			if dryRunFlag {
				for _, c := range changes {
					fmt.Printf("  would %s %s\n", c.Operation, c.FilePath)
				}
				return nil
			}

			if len(changes) == 0 {
				pretty.InfoPretty("nothing to roll back")
				return nil
			}

			confirmed := false
			prompt := &survey.Confirm{
				Message: fmt.Sprintf("Roll back %d changes for task %d?", len(changes), taskID),
				Default: false,
			}
			if err := survey.AskOne(prompt, &confirmed); err != nil {
				return fmt.Errorf("rollback confirmation: %w", err)
			}
			if !confirmed {
				pretty.WarnPretty("rollback cancelled")
				return nil
			}

			report, err := q.RollbackTask(ctx, taskID)
			if err != nil {
				return err
			}

			fmt.Printf("\nRestored: %d\n", len(report.Restored))
			for _, f := range report.Restored {
				fmt.Printf("  - %s\n", f)
			}
			fmt.Printf("Deleted: %d\n", len(report.Deleted))
			for _, f := range report.Deleted {
				fmt.Printf("  - %s\n", f)
			}
			fmt.Printf("Errors: %d\n", len(report.Errors))
			for _, e := range report.Errors {
				fmt.Printf("  - %s\n", e)
			}

			if len(report.Errors) > 0 {
				return fmt.Errorf("rollback completed with %d errors", len(report.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbFlag, "db", "", "Path to task database")
	cmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Show what would be rolled back without doing it")
	return cmd
}
