// Package execx runs external commands on behalf of workers (the LLM-CLI
// subprocess) and verification hooks, behind a mockable interface so both
// can be exercised in tests without actually shelling out.
package execx

import (
	"context"
	"time"
)

// Spec describes one command invocation.
type Spec struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Stdin   string
	Timeout time.Duration
}

// Result is what came back from running a Spec.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// CommandExecutor abstracts process execution so the worker's subprocess
// calls and the verify package's hook runs can be tested without touching
// the real filesystem or shell.
type CommandExecutor interface {
	// LookPath reports whether an executable is on PATH, for project-type
	// auto-detection and hook availability checks.
	LookPath(file string) (string, error)

	// Run executes spec, waiting for it to complete or for spec.Timeout
	// (if nonzero) or ctx to expire, and returns its captured output.
	// A nonzero exit code is reported in Result, not as an error; Run's
	// error return is reserved for failures to start the process at all.
	Run(ctx context.Context, spec Spec) (Result, error)
}
