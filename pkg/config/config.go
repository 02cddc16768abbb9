// Package config loads and validates dbxdeploy configuration. A config
// file is optional; every field has a working default and CLI flags
// override file values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full dbxdeploy configuration.
type Config struct {
	// AppName is the control-plane application name.
	AppName string `yaml:"app_name" validate:"required"`

	// AppFolder overrides the auto-derived workspace folder. Empty means
	// /Workspace/Users/<email>/<app_name> derived from the current user.
	AppFolder string `yaml:"app_folder"`

	// AppDescription is passed to apps create.
	AppDescription string `yaml:"app_description" validate:"required"`

	// DatabricksBin and NPMBin override the external tool binaries.
	DatabricksBin string `yaml:"databricks_bin" validate:"required"`
	NPMBin        string `yaml:"npm_bin" validate:"required"`

	// FrontendDir and BackendDir locate the source trees.
	FrontendDir string `yaml:"frontend_dir" validate:"required"`
	BackendDir  string `yaml:"backend_dir" validate:"required"`

	// PollIntervalSeconds and DeletionTimeoutSeconds tune the
	// hard-redeploy deletion poll loop.
	PollIntervalSeconds    int `yaml:"poll_interval_seconds" validate:"min=1"`
	DeletionTimeoutSeconds int `yaml:"deletion_timeout_seconds" validate:"min=1"`

	// ExcludePatterns overrides the packaging exclusion list. Empty means
	// the built-in defaults.
	ExcludePatterns []string `yaml:"exclude_patterns"`

	// PolicyPaths are extra .rego policy files or directories.
	PolicyPaths []string `yaml:"policy_paths"`

	// HistoryPath is the deployment history database. Empty disables
	// history recording.
	HistoryPath string `yaml:"history_path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		AppName:                "capacity-management",
		AppDescription:         "Capacity Management application",
		DatabricksBin:          "databricks",
		NPMBin:                 "npm",
		FrontendDir:            "frontend",
		BackendDir:             "backend",
		PollIntervalSeconds:    5,
		DeletionTimeoutSeconds: 300,
		HistoryPath:            ".dbxdeploy/history.db",
	}
}

// Load reads a YAML config file over the defaults and validates the
// result. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration against its constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// DeletionTimeout returns the deletion timeout as a duration.
func (c *Config) DeletionTimeout() time.Duration {
	return time.Duration(c.DeletionTimeoutSeconds) * time.Second
}
