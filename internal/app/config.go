package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/vk/snapforge/internal/layout"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ProjectDir holds the manifest; relative part sources resolve against it.
	ProjectDir string `mapstructure:"project_dir" toml:"project_dir"`
	// WorkDir holds parts, stage and prime. Defaults to <ProjectDir>/.snapforge.
	WorkDir string `mapstructure:"work_dir" toml:"work_dir"`
	// Workers bounds how many independent operations run at once.
	Workers int `mapstructure:"workers" toml:"workers"`
	// Parallel is the job count handed to build tools.
	Parallel int `mapstructure:"parallel" toml:"parallel"`

	LogFormat string `mapstructure:"log_format" toml:"log_format"`
	LogLevel  string `mapstructure:"log_level" toml:"log_level"`
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectDir == "" {
		return nil, errors.New("ProjectDir is a required configuration field and cannot be empty")
	}
	dir, err := filepath.Abs(cfg.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}
	cfg.ProjectDir = dir

	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(dir, layout.DefaultDirName)
	} else if cfg.WorkDir, err = filepath.Abs(cfg.WorkDir); err != nil {
		return nil, fmt.Errorf("failed to resolve work directory: %w", err)
	}

	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("invalid workers %d: must be positive", cfg.Workers)
	}
	if cfg.Parallel == 0 {
		cfg.Parallel = runtime.NumCPU()
	}
	if cfg.Parallel < 0 {
		return nil, fmt.Errorf("invalid parallel %d: must be positive", cfg.Parallel)
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, errors.New("invalid log-format: must be 'text' or 'json'")
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	return &cfg, nil
}
