// Package localstate tracks the CLI's ephemeral "active job" convenience
// pointer, adapted from the teacher's pkg/state package to klauss's domain:
// same .git-ancestor discovery walk and load/save shape, new field set.
package localstate

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/WMahoney09/klauss/internal/config"
)

// State is the local ephemeral CLI convenience state, distinct from
// anything persisted in the Store — losing this file costs nothing beyond
// having to pass --job again.
type State struct {
	ActiveJob string `yaml:"active_job,omitempty"`
	LastDB    string `yaml:"last_db,omitempty"`
}

func statePath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current directory: %w", err)
	}
	root := config.FindProjectRoot(cwd)
	return filepath.Join(root, ".klauss", "state.yml"), nil
}

// Load reads the state file, returning an empty State if it does not exist.
func Load() (*State, error) {
	path, err := statePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return &s, nil
}

// Save writes the state file, creating its directory if needed.
func Save(s *State) error {
	path, err := statePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// SetActiveJob persists jobID as the CLI's current default job.
func SetActiveJob(jobID string) error {
	s, err := Load()
	if err != nil {
		return err
	}
	s.ActiveJob = jobID
	return Save(s)
}

// GetActiveJob returns the CLI's current default job, or "" if none is set.
func GetActiveJob() (string, error) {
	s, err := Load()
	if err != nil {
		return "", err
	}
	return s.ActiveJob, nil
}

// ClearActiveJob removes the stored default job.
func ClearActiveJob() error {
	s, err := Load()
	if err != nil {
		return err
	}
	s.ActiveJob = ""
	return Save(s)
}
