package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/WMahoney09/klauss/internal/queue"
)

// buildEffectivePrompt assembles the prompt the LLM subprocess receives,
// per spec.md §4.3 step 3: base prompt, preceded by shared_context entries
// for the task's job formatted as "- key: value", followed by an
// enumeration of context files and expected outputs.
func buildEffectivePrompt(ctx context.Context, q *queue.Queue, t *queue.Task) (string, error) {
	var b strings.Builder

	jobID := ""
	if t.JobID != nil {
		jobID = *t.JobID
	}
	entries, err := q.ListSharedContext(ctx, jobID)
	if err != nil {
		return "", err
	}
	if len(entries) > 0 {
		b.WriteString("Project Conventions (follow these):\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "- %s: %s\n", e.Key, e.Value)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Task:\n%s\n", t.Prompt)

	if len(t.ContextFiles) > 0 {
		b.WriteString("\nContext files to review:\n")
		for _, f := range t.ContextFiles {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if len(t.ExpectedOutputs) > 0 {
		b.WriteString("\nExpected outputs:\n")
		for _, f := range t.ExpectedOutputs {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	return b.String(), nil
}
