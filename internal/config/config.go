// Package config loads orchestrator configuration from solqa.yaml,
// environment variables, and defaults, in that order of precedence
// (CLI flags are applied on top by cmd/solqa).
//
// Server-side subsystems (scoring store, browser probes) carry their
// own Config types; this package only configures the orchestration
// loop and the agent CLI it drives.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/solutionqa/solqa/internal/qarun"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Agent settings
	AgentCommand string        `mapstructure:"agent_command"`
	AgentModel   string        `mapstructure:"agent_model"`
	AgentTimeout time.Duration `mapstructure:"agent_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`

	// Paths. Relative values are resolved against ProjectRoot.
	ProjectRoot string `mapstructure:"project_root"`
	PlanPath    string `mapstructure:"plan_path"`
	ScoresDir   string `mapstructure:"scores_dir"`
	LogsDir     string `mapstructure:"logs_dir"`

	// Target overrides. Normally the plan declares these; a value here
	// wins when both are set.
	BaseURL      string `mapstructure:"base_url"`
	DatabasePath string `mapstructure:"database_path"`

	// Execution settings
	Verbose bool `mapstructure:"verbose"`
	DryRun  bool `mapstructure:"dry_run"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	cwd, _ := os.Getwd()
	return &Config{
		AgentCommand: "claude",
		AgentTimeout: 10 * time.Minute,
		MaxRetries:   3,
		ProjectRoot:  cwd,
		PlanPath:     qarun.PlanFile,
		ScoresDir:    filepath.Join("qa", "scores"),
		LogsDir:      filepath.Join("qa", "logs"),
	}
}

// Load reads configuration from solqa.yaml and the environment.
// A missing config file is not an error; defaults apply.
func Load() (*Config, error) {
	return LoadFrom("", "")
}

// LoadFrom is Load with explicit locations: file names a config file to
// read instead of searching, root overrides the project root. Either may
// be empty.
func LoadFrom(file, root string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("solqa")
		if root != "" {
			v.AddConfigPath(root)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	// Environment variables: SOLQA_AGENT_COMMAND, SOLQA_DRY_RUN, ...
	v.SetEnvPrefix("SOLQA")
	v.AutomaticEnv()

	// Every field needs a default so AutomaticEnv can find its key.
	v.SetDefault("agent_command", cfg.AgentCommand)
	v.SetDefault("agent_model", cfg.AgentModel)
	v.SetDefault("agent_timeout", cfg.AgentTimeout)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("project_root", cfg.ProjectRoot)
	v.SetDefault("plan_path", cfg.PlanPath)
	v.SetDefault("scores_dir", cfg.ScoresDir)
	v.SetDefault("logs_dir", cfg.LogsDir)
	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("dry_run", cfg.DryRun)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// An explicit root beats whatever the file says.
	if root != "" {
		cfg.ProjectRoot = root
	}
	cfg.resolvePaths()

	return cfg, nil
}

// resolvePaths converts relative paths to absolute paths under
// ProjectRoot. The run store derives its own layout from ProjectRoot,
// so it needs no path of its own here.
func (c *Config) resolvePaths() {
	if c.ProjectRoot == "" {
		c.ProjectRoot, _ = os.Getwd()
	}

	if !filepath.IsAbs(c.PlanPath) {
		c.PlanPath = filepath.Join(c.ProjectRoot, c.PlanPath)
	}
	if !filepath.IsAbs(c.ScoresDir) {
		c.ScoresDir = filepath.Join(c.ProjectRoot, c.ScoresDir)
	}
	if !filepath.IsAbs(c.LogsDir) {
		c.LogsDir = filepath.Join(c.ProjectRoot, c.LogsDir)
	}
	if c.DatabasePath != "" && !filepath.IsAbs(c.DatabasePath) {
		c.DatabasePath = filepath.Join(c.ProjectRoot, c.DatabasePath)
	}
}

// Validate checks the configuration for values the orchestrator
// cannot work with.
func (c *Config) Validate() error {
	if c.AgentCommand == "" {
		return fmt.Errorf("agent_command is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.AgentTimeout < time.Second {
		return fmt.Errorf("agent_timeout must be at least one second")
	}
	return nil
}
