package verify

import (
	"fmt"
	"sort"
	"strings"
)

// maxStderrLines is the number of non-empty stderr lines quoted per failing
// hook, per spec.md §4.7.
const maxStderrLines = 5

// FormatFailure composes the exact multi-line error string of spec.md §4.7:
// a missing-files line first (if any), then "Verification checks failed:"
// with one bullet per failing hook, each followed by up to 5 non-empty
// indented stderr lines. This layout is part of the contract, so callers
// must not alter it without updating the tests that assert on it literally.
func FormatFailure(missingFiles []string, results []HookResult) string {
	var b strings.Builder

	if len(missingFiles) > 0 {
		sorted := append([]string(nil), missingFiles...)
		sort.Strings(sorted)
		fmt.Fprintf(&b, "Missing expected output files: %s\n", strings.Join(sorted, ", "))
	}

	var failing []HookResult
	for _, r := range results {
		if !r.Passed && r.FailOnError {
			failing = append(failing, r)
		}
	}
	if len(failing) == 0 {
		return strings.TrimRight(b.String(), "\n")
	}

	b.WriteString("Verification checks failed:\n")
	for _, r := range failing {
		fmt.Fprintf(&b, "- %s: %s\n", r.Description, hookErrorSummary(r))
		for _, line := range nonEmptyStderrLines(r.Stderr, maxStderrLines) {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func hookErrorSummary(r HookResult) string {
	if r.TimedOut {
		return "timed out"
	}
	return fmt.Sprintf("exit code %d", r.ExitCode)
}

func nonEmptyStderrLines(stderr string, limit int) []string {
	var out []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}
