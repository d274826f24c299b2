package verify

import (
	"context"
	"os"
	"path/filepath"

	"github.com/WMahoney09/klauss/internal/execx"
)

// RunHook executes hook.Command as a shell subprocess in workDir, per
// spec.md §4.6 "run_hook": passed := exit_code == 0 on a normal exit; a
// timeout is reported as passed=false, exit code -1.
func RunHook(ctx context.Context, exec execx.CommandExecutor, workDir string, hook Hook) HookResult {
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	res, err := exec.Run(ctx, execx.Spec{
		Name:    "sh",
		Args:    []string{"-c", hook.Command},
		Dir:     workDir,
		Timeout: timeout,
	})

	hr := HookResult{
		Description: hook.Description,
		Command:     hook.Command,
		FailOnError: hook.FailOnError,
	}
	if err != nil {
		hr.Passed = false
		hr.ExitCode = -1
		hr.Stderr = err.Error()
		return hr
	}
	if res.TimedOut {
		hr.Passed = false
		hr.ExitCode = -1
		hr.TimedOut = true
		hr.Stdout = res.Stdout
		hr.Stderr = res.Stderr
		return hr
	}

	hr.ExitCode = res.ExitCode
	hr.Passed = res.ExitCode == 0
	hr.Stdout = res.Stdout
	hr.Stderr = res.Stderr
	return hr
}

// VerifyTask runs hooks in order against workDir, per spec.md §4.6
// "verify_task": every hook runs regardless of earlier failures, but
// allPassed only reflects hooks with FailOnError set.
func VerifyTask(ctx context.Context, exec execx.CommandExecutor, workDir string, hooks []Hook) (bool, []HookResult) {
	allPassed := true
	results := make([]HookResult, 0, len(hooks))
	for _, h := range hooks {
		r := RunHook(ctx, exec, workDir, h)
		results = append(results, r)
		if !r.Passed && r.FailOnError {
			allPassed = false
		}
	}
	return allPassed, results
}

// CheckExpectedOutputs checks, relative to workDir, whether each path
// exists, per spec.md §4.6 "check_expected_outputs".
func CheckExpectedOutputs(workDir string, paths []string) (bool, map[string]bool) {
	present := make(map[string]bool, len(paths))
	allExist := true
	for _, p := range paths {
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(workDir, p)
		}
		_, err := os.Stat(full)
		exists := err == nil
		present[p] = exists
		if !exists {
			allExist = false
		}
	}
	return allExist, present
}
