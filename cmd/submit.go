package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/WMahoney09/klauss/internal/localstate"
	"github.com/WMahoney09/klauss/internal/queue"
)

func newSubmitCmd() *cobra.Command {
	var (
		dbFlag       string
		dirFlag      string
		contextFlag  []string
		outputsFlag  []string
		priorityFlag int
		metadataFlag string
		jobFlag      string
	)

	cmd := &cobra.Command{
		Use:   "submit <prompt>",
		Short: "Submit a single task to the queue",
		Args:  cobra.ExactArgs(1),
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

			metadata, err := parseMetadataFlag(metadataFlag)
			if err != nil {
				return err
			}

			jobID := jobFlag
			if jobID == "" {
				jobID, _ = localstate.GetActiveJob()
			}

			task := queue.Task{
				Prompt:          args[0],
				WorkingDir:      dirFlag,
				ContextFiles:    contextFlag,
				ExpectedOutputs: outputsFlag,
				Priority:        priorityFlag,
				Metadata:        metadata,
			}
			if jobID != "" {
				task.JobID = &jobID
			}

			id, err := q.AddTask(ctxForCLI(), task)
			if err != nil {
				return err
			}
			pretty.InfoPretty(fmt.Sprintf("Task %d submitted successfully", id))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbFlag, "db", "", "Path to task database")
	cmd.Flags().StringVar(&dirFlag, "dir", "", "Working directory")
	cmd.Flags().StringSliceVar(&contextFlag, "context", nil, "Context files")
	cmd.Flags().StringSliceVar(&outputsFlag, "outputs", nil, "Expected output files")
	cmd.Flags().IntVar(&priorityFlag, "priority", 0, "Task priority")
	cmd.Flags().StringVar(&metadataFlag, "metadata", "", "JSON metadata")
	cmd.Flags().StringVar(&jobFlag, "job", "", "Job ID to attach this task to (defaults to the active job)")
	return cmd
}

// fileTask mirrors one entry of a submit-file JSON document, the same
// shape original_source's submit_from_file reads (a bare object or a list
// of objects).
type fileTask struct {
	Prompt          string          `json:"prompt"`
	WorkingDir      string          `json:"working_dir"`
	ContextFiles    []string        `json:"context_files"`
	ExpectedOutputs []string        `json:"expected_outputs"`
	Priority        int             `json:"priority"`
	Metadata        json.RawMessage `json:"metadata"`
}

func newSubmitFileCmd() *cobra.Command {
	var dbFlag string

	cmd := &cobra.Command{
		Use:   "submit-file <file>",
		Short: "Submit tasks from a JSON file (one task object, or an array of them)",
		Args:  cobra.ExactArgs(1),
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

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			tasks, err := parseTaskFile(data)
			if err != nil {
				return err
			}

			ids := make([]int64, 0, len(tasks))
			for _, ft := range tasks {
				metadata := queue.Null()
				if len(ft.Metadata) > 0 {
					var raw any
					if err := json.Unmarshal(ft.Metadata, &raw); err != nil {
						return fmt.Errorf("parse task metadata: %w", err)
					}
					metadata = queue.NewValue(raw)
				}
				id, err := q.AddTask(ctxForCLI(), queue.Task{
					Prompt:          ft.Prompt,
					WorkingDir:      ft.WorkingDir,
					ContextFiles:    ft.ContextFiles,
					ExpectedOutputs: ft.ExpectedOutputs,
					Priority:        ft.Priority,
					Metadata:        metadata,
				})
				if err != nil {
					return fmt.Errorf("submit %q: %w", truncatePrompt(ft.Prompt), err)
				}
				ids = append(ids, id)
				pretty.InfoPretty(fmt.Sprintf("Task %d submitted: %s...", id, truncatePrompt(ft.Prompt)))
			}
			pretty.InfoPretty(fmt.Sprintf("%d tasks submitted successfully", len(ids)))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbFlag, "db", "", "Path to task database")
	return cmd
}

func parseTaskFile(data []byte) ([]fileTask, error) {
	var asArray []fileTask
	if err := json.Unmarshal(data, &asArray); err == nil {
		return asArray, nil
	}
	var asObject fileTask
	if err := json.Unmarshal(data, &asObject); err != nil {
		return nil, fmt.Errorf("invalid task file format: %w", err)
	}
	return []fileTask{asObject}, nil
}

func parseMetadataFlag(s string) (queue.Value, error) {
	if s == "" {
		return queue.Null(), nil
	}
	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return queue.Value{}, fmt.Errorf("parse --metadata: %w", err)
	}
	return queue.NewValue(raw), nil
}

func truncatePrompt(s string) string {
	if len(s) <= 50 {
		return s
	}
	return s[:50]
}
