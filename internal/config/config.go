// Package config loads and validates the orchestrator's configuration
// file, merging user-supplied values over built-in defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

// ConfigDirName is the directory (relative to the repo root) holding
// orchestrator state and configuration.
const ConfigDirName = ".pait"

// ConfigFileName is the name of the orchestrator configuration file.
const ConfigFileName = "orchestrator.json"

// VerifyStep names one command in the verification pipeline.
type VerifyStep struct {
	Name string `json:"name"`
	Cmd  string `json:"cmd"`
}

// E2EConfig configures the end-to-end snapshot-retry step.
type E2EConfig struct {
	Run          string `json:"run"`
	Update       string `json:"update"`
	SnapshotGlob string `json:"snapshotGlob"`
}

// Models names the model used for each agent role.
type Models struct {
	Implement string `json:"implement"`
	Assess    string `json:"assess"`
}

// Retries bounds the retry-with-repair loops.
type Retries struct {
	Implement int `json:"implement"`
	Verify    int `json:"verify"`
}

// Config is the merged orchestrator configuration.
type Config struct {
	BranchPrefix   string       `json:"branchPrefix"`
	BaseBranch     string       `json:"baseBranch"`
	WorktreeDir    string       `json:"worktreeDir"`
	Models         Models       `json:"models"`
	Retries        Retries      `json:"retries"`
	AllowedTools   string       `json:"allowedTools"`
	Verify         []VerifyStep `json:"verify"`
	E2E            *E2EConfig   `json:"e2e,omitempty"`
	AllowedAuthors []string     `json:"allowedAuthors,omitempty"`

	// RepoRoot is not persisted; it is the absolute path of the
	// repository this configuration was loaded for.
	RepoRoot string `json:"-"`
}

// Defaults returns the built-in configuration defaults.
func Defaults() Config {
	return Config{
		BranchPrefix: "feat/",
		BaseBranch:   "master",
		WorktreeDir:  filepath.Join(ConfigDirName, "worktrees"),
		Models: Models{
			Implement: "sonnet",
			Assess:    "haiku",
		},
		Retries: Retries{
			Implement: 1,
			Verify:    1,
		},
		AllowedTools: "Bash Edit Write Read Glob Grep",
	}
}

// Path returns the path to the configuration file under repoRoot.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, ConfigDirName, ConfigFileName)
}

// Load reads the configuration file at <repoRoot>/.pait/orchestrator.json,
// merging it over Defaults(). A missing file yields the defaults
// unchanged; a malformed file is an error.
func Load(repoRoot string) (*Config, error) {
	cfg := Defaults()
	cfg.RepoRoot = repoRoot

	data, err := os.ReadFile(Path(repoRoot))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}

		return nil, fmt.Errorf("read config: %w", err)
	}

	var override Config
	if err := json.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", Path(repoRoot), err)
	}

	mergeOverride(&cfg, &override)
	cfg.RepoRoot = repoRoot

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// mergeOverride applies non-zero fields of override onto base.
func mergeOverride(base, override *Config) {
	if override.BranchPrefix != "" {
		base.BranchPrefix = override.BranchPrefix
	}
	if override.BaseBranch != "" {
		base.BaseBranch = override.BaseBranch
	}
	if override.WorktreeDir != "" {
		base.WorktreeDir = override.WorktreeDir
	}
	if override.Models.Implement != "" {
		base.Models.Implement = override.Models.Implement
	}
	if override.Models.Assess != "" {
		base.Models.Assess = override.Models.Assess
	}
	if override.Retries.Implement != 0 {
		base.Retries.Implement = override.Retries.Implement
	}
	if override.Retries.Verify != 0 {
		base.Retries.Verify = override.Retries.Verify
	}
	if override.AllowedTools != "" {
		base.AllowedTools = override.AllowedTools
	}
	if len(override.Verify) > 0 {
		base.Verify = override.Verify
	}
	if override.E2E != nil {
		base.E2E = override.E2E
	}
	if len(override.AllowedAuthors) > 0 {
		base.AllowedAuthors = override.AllowedAuthors
	}
}

// validate checks invariants that must hold regardless of source,
// collecting every violation rather than stopping at the first so a
// malformed config file reports all its problems in one pass.
func (c *Config) validate() error {
	var result *multierror.Error

	if c.WorktreeDir == "" {
		result = multierror.Append(result, errors.New("worktreeDir cannot be empty"))
	}
	if c.BranchPrefix == "" {
		result = multierror.Append(result, errors.New("branchPrefix cannot be empty"))
	}
	if c.Retries.Implement < 0 || c.Retries.Verify < 0 {
		result = multierror.Append(result, errors.New("retries cannot be negative"))
	}
	for _, step := range c.Verify {
		if step.Name == "" || step.Cmd == "" {
			result = multierror.Append(result, fmt.Errorf("verify step %q requires both name and cmd", step.Name))
		}
	}
	if c.E2E != nil && (c.E2E.Run == "" || c.E2E.Update == "") {
		result = multierror.Append(result, errors.New("e2e requires both run and update commands"))
	}

	return result.ErrorOrNil()
}

// WorktreePath returns the absolute path for a branch's worktree.
func (c *Config) WorktreePath(kebabBranch string) string {
	if filepath.IsAbs(c.WorktreeDir) {
		return filepath.Join(c.WorktreeDir, kebabBranch)
	}

	return filepath.Join(c.RepoRoot, c.WorktreeDir, kebabBranch)
}

// StateDir returns the absolute path of the directory holding state files.
func (c *Config) StateDir() string {
	return filepath.Join(c.RepoRoot, ConfigDirName, "state")
}
