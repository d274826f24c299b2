package execx

import (
	"context"
	"strings"
)

// MockCommandExecutor records every Spec it was asked to run instead of
// actually running anything, for worker and verify hook tests.
type MockCommandExecutor struct {
	Commands []string
	Specs    []Spec

	LookPathFunc func(file string) (string, error)
	RunFunc      func(ctx context.Context, spec Spec) (Result, error)
}

// LookPath implements CommandExecutor.
func (m *MockCommandExecutor) LookPath(file string) (string, error) {
	if m.LookPathFunc != nil {
		return m.LookPathFunc(file)
	}
	return "/usr/bin/" + file, nil
}

// Run implements CommandExecutor, recording spec and delegating to RunFunc
// if set, else returning a zero-value success Result.
func (m *MockCommandExecutor) Run(ctx context.Context, spec Spec) (Result, error) {
	cmdStr := spec.Name
	if len(spec.Args) > 0 {
		cmdStr = spec.Name + " " + strings.Join(spec.Args, " ")
	}
	m.Commands = append(m.Commands, cmdStr)
	m.Specs = append(m.Specs, spec)

	if m.RunFunc != nil {
		return m.RunFunc(ctx, spec)
	}
	return Result{}, nil
}

var _ CommandExecutor = (*MockCommandExecutor)(nil)
