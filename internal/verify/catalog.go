package verify

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// ProjectType is a detected project kind, per spec.md §4.3 step 8's marker
// list.
type ProjectType string

const (
	TypeTypeScript ProjectType = "typescript"
	TypeNode       ProjectType = "node"
	TypeReact      ProjectType = "react"
	TypePython     ProjectType = "python"
	TypePythonTest ProjectType = "python-test"
	TypeGo         ProjectType = "go"
	TypeRust       ProjectType = "rust"
)

// exists reports whether name exists directly under dir.
func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

// nodePackageJSON is the subset of package.json DetectProjectTypes reads.
type nodePackageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Scripts         map[string]string `json:"scripts"`
}

// DetectProjectTypes inspects workDir's marker files and returns every
// project type that applies, per spec.md §4.3 step 8: a TypeScript config
// marker, a Node manifest (with an optional react dependency), Python
// package/test markers, a Go module file, a Rust manifest.
func DetectProjectTypes(workDir string) []ProjectType {
	var types []ProjectType

	if exists(workDir, "tsconfig.json") {
		types = append(types, TypeTypeScript)
	}

	if exists(workDir, "package.json") {
		types = append(types, TypeNode)
		if pkg, err := readPackageJSON(workDir); err == nil {
			if _, ok := pkg.Dependencies["react"]; ok {
				types = append(types, TypeReact)
			} else if _, ok := pkg.DevDependencies["react"]; ok {
				types = append(types, TypeReact)
			}
		}
	}

	if exists(workDir, "pyproject.toml") || exists(workDir, "setup.py") || exists(workDir, "requirements.txt") {
		types = append(types, TypePython)
	}
	if exists(workDir, "pytest.ini") || exists(workDir, "tox.ini") || hasPytestDir(workDir) {
		types = append(types, TypePythonTest)
	}

	if exists(workDir, "go.mod") {
		types = append(types, TypeGo)
	}
	if exists(workDir, "Cargo.toml") {
		types = append(types, TypeRust)
	}

	return types
}

func hasPytestDir(workDir string) bool {
	matches, _ := filepath.Glob(filepath.Join(workDir, "test_*.py"))
	if len(matches) > 0 {
		return true
	}
	matches, _ = filepath.Glob(filepath.Join(workDir, "tests"))
	return len(matches) > 0
}

func readPackageJSON(workDir string) (*nodePackageJSON, error) {
	data, err := os.ReadFile(filepath.Join(workDir, "package.json"))
	if err != nil {
		return nil, err
	}
	var pkg nodePackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// DefaultHooks synthesizes the hook catalog of spec.md §4.6's table for the
// given detected types, skipping a hook whose precondition does not hold
// (a lint config for node, a test script for node, a mypy/format config for
// python) since those rows are conditional in the source table.
func DefaultHooks(workDir string, types []ProjectType) []Hook {
	has := make(map[ProjectType]bool, len(types))
	for _, t := range types {
		has[t] = true
	}

	var hooks []Hook

	if has[TypeTypeScript] {
		hooks = append(hooks, Hook{
			Description: "TypeScript check",
			Command:     "npx tsc --noEmit",
			FailOnError: true,
		})
	}

	if has[TypeNode] {
		if hasNodeLintConfig(workDir) {
			hooks = append(hooks, Hook{
				Description: "Lint check",
				Command:     "npm run lint",
				FailOnError: false,
			})
		}
		if hasNodeTestScript(workDir) {
			hooks = append(hooks, Hook{
				Description: "Test suite",
				Command:     "npm test",
				Timeout:     600 * time.Second,
				FailOnError: true,
			})
		}
	}

	if has[TypePython] {
		if exists(workDir, "mypy.ini") || exists(workDir, "setup.cfg") {
			hooks = append(hooks, Hook{
				Description: "Type check",
				Command:     "mypy .",
				FailOnError: false,
			})
		}
		if exists(workDir, "pyproject.toml") || exists(workDir, ".flake8") {
			hooks = append(hooks, Hook{
				Description: "Formatter check",
				Command:     "black --check .",
				FailOnError: false,
			})
		}
	}

	if has[TypePythonTest] {
		hooks = append(hooks, Hook{
			Description: "Test runner",
			Command:     "pytest",
			Timeout:     600 * time.Second,
			FailOnError: true,
		})
	}

	if has[TypeGo] {
		hooks = append(hooks, Hook{
			Description: "Build all",
			Command:     "go build ./...",
			Timeout:     600 * time.Second,
			FailOnError: true,
		})
		hooks = append(hooks, Hook{
			Description: "Test all",
			Command:     "go test ./...",
			Timeout:     600 * time.Second,
			FailOnError: true,
		})
	}

	if has[TypeRust] {
		hooks = append(hooks, Hook{
			Description: "Check",
			Command:     "cargo check",
			Timeout:     600 * time.Second,
			FailOnError: true,
		})
		hooks = append(hooks, Hook{
			Description: "Test",
			Command:     "cargo test",
			Timeout:     600 * time.Second,
			FailOnError: true,
		})
	}

	return hooks
}

func hasNodeLintConfig(workDir string) bool {
	for _, name := range []string{".eslintrc.json", ".eslintrc.js", ".eslintrc", ".eslintrc.yml"} {
		if exists(workDir, name) {
			return true
		}
	}
	return false
}

func hasNodeTestScript(workDir string) bool {
	pkg, err := readPackageJSON(workDir)
	if err != nil {
		return false
	}
	_, ok := pkg.Scripts["test"]
	return ok
}
