package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/WMahoney09/klauss/internal/queue"
)

const synthesisStdoutLimit = 500

var synthesisRule = strings.Repeat("=", 60)
var synthesisSubRule = strings.Repeat("-", 60)

// SynthesizeResults formats a WaitAndCollect result map into a deterministic
// digest suitable for handing to an LLM as a synthesis prompt, per spec.md
// §4.5 "synthesize_results". Task ordering is by task ID, for reproducible
// output across runs against the same result set.
func SynthesizeResults(results map[int64]TaskResult, synthesisPrompt string) string {
	ids := make([]int64, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var completed, failed []TaskResult
	for _, id := range ids {
		r := results[id]
		switch r.Status {
		case queue.StatusCompleted:
			completed = append(completed, r)
		case queue.StatusFailed:
			failed = append(failed, r)
		}
	}

	var b strings.Builder
	fmt.Fprintln(&b, synthesisRule)
	fmt.Fprintln(&b, "TASK EXECUTION RESULTS")
	fmt.Fprintln(&b, synthesisRule)
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Summary: %d completed, %d failed\n\n", len(completed), len(failed))

	if len(completed) > 0 {
		fmt.Fprintln(&b, "COMPLETED TASKS")
		fmt.Fprintln(&b, synthesisSubRule)
		for _, r := range completed {
			workingDir := r.WorkingDir
			if workingDir == "" {
				workingDir = "N/A"
			}
			fmt.Fprintf(&b, "\nTask %d: %s\n", r.TaskID, r.Prompt)
			fmt.Fprintf(&b, "Working Dir: %s\n", workingDir)

			if raw, ok := r.Result.Raw().(map[string]any); ok {
				if code, ok := raw["exit_code"]; ok {
					fmt.Fprintf(&b, "Exit Code: %v\n", code)
				}
				if stdout, ok := raw["stdout"].(string); ok && stdout != "" {
					if len(stdout) > synthesisStdoutLimit {
						stdout = stdout[:synthesisStdoutLimit]
					}
					fmt.Fprintf(&b, "\nOutput:\n%s\n", stdout)
				}
				if present, ok := raw["expected_files_present"]; ok {
					fmt.Fprintf(&b, "\nExpected Files: %v\n", present)
				}
			}
			fmt.Fprintln(&b)
		}
	}

	if len(failed) > 0 {
		fmt.Fprintln(&b, "\nFAILED TASKS")
		fmt.Fprintln(&b, synthesisSubRule)
		for _, r := range failed {
			errMsg := ""
			if r.Error != nil {
				errMsg = *r.Error
			}
			fmt.Fprintf(&b, "\nTask %d: %s\n", r.TaskID, r.Prompt)
			fmt.Fprintf(&b, "Error: %s\n", errMsg)
			fmt.Fprintln(&b)
		}
	}

	if synthesisPrompt != "" {
		fmt.Fprintln(&b, synthesisRule)
		fmt.Fprintln(&b, "SYNTHESIS REQUEST")
		fmt.Fprintln(&b, synthesisRule)
		fmt.Fprintln(&b, synthesisPrompt)
	}

	return strings.TrimRight(b.String(), "\n")
}
