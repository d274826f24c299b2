package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFailureLayout(t *testing.T) {
	tests := []struct {
		name         string
		missingFiles []string
		results      []HookResult
		want         string
	}{
		{
			name:         "missing files only",
			missingFiles: []string{"out.go"},
			results:      nil,
			want:         "Missing expected output files: out.go",
		},
		{
			name:         "single failing hook with stderr",
			missingFiles: nil,
			results: []HookResult{
				{Description: "Test suite", ExitCode: 1, FailOnError: true, Stderr: "FAIL foo_test.go\n\nassertion failed\n"},
			},
			want: "Verification checks failed:\n" +
				"- Test suite: exit code 1\n" +
				"    FAIL foo_test.go\n" +
				"    assertion failed",
		},
		{
			name:         "stderr truncated to 5 lines",
			missingFiles: nil,
			results: []HookResult{
				{Description: "Build", ExitCode: 2, FailOnError: true, Stderr: "l1\nl2\nl3\nl4\nl5\nl6\nl7\n"},
			},
			want: "Verification checks failed:\n" +
				"- Build: exit code 2\n" +
				"    l1\n" +
				"    l2\n" +
				"    l3\n" +
				"    l4\n" +
				"    l5",
		},
		{
			name:         "timed out hook",
			missingFiles: nil,
			results: []HookResult{
				{Description: "Test suite", FailOnError: true, TimedOut: true},
			},
			want: "Verification checks failed:\n" +
				"- Test suite: timed out",
		},
		{
			name:         "non-fail-on-error hook failure is ignored",
			missingFiles: nil,
			results: []HookResult{
				{Description: "Lint check", ExitCode: 1, FailOnError: false, Stderr: "warn\n"},
			},
			want: "",
		},
		{
			name:         "missing files then failing hook",
			missingFiles: []string{"b.go", "a.go"},
			results: []HookResult{
				{Description: "Build all", ExitCode: 1, FailOnError: true, Stderr: "undefined: Foo\n"},
			},
			want: "Missing expected output files: a.go, b.go\n" +
				"Verification checks failed:\n" +
				"- Build all: exit code 1\n" +
				"    undefined: Foo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatFailure(tt.missingFiles, tt.results)
			assert.Equal(t, tt.want, got)
		})
	}
}
