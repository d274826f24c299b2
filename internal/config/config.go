// Package config loads and resolves klauss's configuration, per spec.md
// §6's configuration record and loader precedence: programmatic overrides >
// project file > built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the project-level TOML config file name.
const ConfigFileName = "klauss.toml"

// Project mirrors spec.md §6 "project" section.
type Project struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

// Database mirrors spec.md §6 "database" section.
type Database struct {
	Path            string `toml:"path"`
	AutoCleanupDays int    `toml:"auto_cleanup_days"`
}

// Safety mirrors spec.md §6 "safety" section.
type Safety struct {
	EnforceProjectBoundary bool `toml:"enforce_project_boundary"`
	AllowExternalDirs      bool `toml:"allow_external_dirs"`
	ConfirmDestructive     bool `toml:"confirm_destructive"`
}

// Workers mirrors spec.md §6 "workers" section.
type Workers struct {
	DefaultCount     int           `toml:"default_count"`
	LogDirectory     string        `toml:"log_directory"`
	RestartOnFailure bool          `toml:"restart_on_failure"`
	HeartbeatInterval time.Duration `toml:"heartbeat_interval"`
	StaleTimeout     time.Duration `toml:"stale_timeout"`
}

// Defaults mirrors spec.md §6 "defaults" section.
type Defaults struct {
	Priority     int           `toml:"priority"`
	Timeout      time.Duration `toml:"timeout"`
	PollInterval time.Duration `toml:"poll_interval"`
}

// Monitoring mirrors spec.md §6 "monitoring" section.
type Monitoring struct {
	DashboardEnabled bool `toml:"dashboard_enabled"`
	ProgressUpdates  bool `toml:"progress_updates"`
	DetailedLogging  bool `toml:"detailed_logging"`
}

// Coordination mirrors spec.md §6 "coordination" section.
type Coordination struct {
	SharedDB string `toml:"shared_db"`
	Enabled  bool   `toml:"enabled"`
}

// Config is the fully resolved configuration record.
type Config struct {
	ProjectRoot  string       `toml:"-"`
	Project      Project      `toml:"project"`
	Database     Database     `toml:"database"`
	Safety       Safety       `toml:"safety"`
	Workers      Workers      `toml:"workers"`
	Defaults     Defaults     `toml:"defaults"`
	Monitoring   Monitoring   `toml:"monitoring"`
	Coordination Coordination `toml:"coordination"`
}

// defaultConfig returns the built-in defaults, per spec.md §6's table.
func defaultConfig(projectRoot string) Config {
	name := filepath.Base(projectRoot)
	return Config{
		ProjectRoot: projectRoot,
		Project:     Project{Name: name},
		Database:    Database{Path: fmt.Sprintf("%s_claude_tasks.db", name), AutoCleanupDays: 30},
		Safety: Safety{
			EnforceProjectBoundary: true,
			AllowExternalDirs:      false,
			ConfirmDestructive:     true,
		},
		Workers: Workers{
			DefaultCount:       4,
			LogDirectory:       "logs",
			RestartOnFailure:   true,
			HeartbeatInterval:  30 * time.Second,
			StaleTimeout:       3600 * time.Second,
		},
		Defaults: Defaults{
			Priority:     0,
			Timeout:      1800 * time.Second,
			PollInterval: 2 * time.Second,
		},
		Monitoring: Monitoring{
			DashboardEnabled: true,
			ProgressUpdates:  true,
			DetailedLogging:  false,
		},
		Coordination: Coordination{Enabled: false},
	}
}

// Option mutates a Config after the project file has been applied, for
// programmatic overrides — the highest-precedence layer per spec.md §6.
type Option func(*Config)

// WithDatabasePath overrides the resolved Store path.
func WithDatabasePath(path string) Option {
	return func(c *Config) { c.Database.Path = path }
}

// WithWorkerCount overrides the default worker count.
func WithWorkerCount(n int) Option {
	return func(c *Config) { c.Workers.DefaultCount = n }
}

// Load resolves configuration starting from startDir (os.Getwd() if empty),
// applying the project TOML file if present, then opts, per spec.md §6's
// stated precedence (highest first): opts > project file > defaults.
func Load(startDir string, opts ...Option) (*Config, error) {
	if startDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		startDir = cwd
	}

	root := FindProjectRoot(startDir)
	cfg := defaultConfig(root)

	configPath := filepath.Join(root, ConfigFileName)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
		cfg.ProjectRoot = root
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", configPath, err)
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = fmt.Sprintf("%s_claude_tasks.db", cfg.Project.Name)
	}
	return &cfg, nil
}

// FindProjectRoot walks ancestors of dir looking for a version-control
// marker directory (.git), per spec.md §6: "Project root is located by
// walking ancestors for a version-control marker directory; if none, the
// current directory is used." Grounded on the teacher's pkg/state
// stateFilePath walk, generalized to return the root itself rather than a
// fixed state file path.
func FindProjectRoot(dir string) string {
	cur := dir
	for {
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return cur
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return dir
		}
		cur = parent
	}
}
