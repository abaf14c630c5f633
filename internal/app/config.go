package app

import (
	"errors"

	"github.com/vk/dispatchgrid/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Workflow is the name of a shipped workflow or a path to a workflow
	// file or directory.
	Workflow string
	// Job picks one workflow when Workflow is a path holding several.
	Job   string
	Event string

	SecretsFile   string
	Workdir       string
	KeepWorkspace bool
	// LockDir holds local concurrency locks. Defaults to the OS temp dir.
	LockDir string
	List    bool

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Workflow == "" && !cfg.List {
		return nil, errors.New("a workflow name or path is required")
	}
	if cfg.Event == "" {
		cfg.Event = config.EventWorkflowDispatch
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, errors.New("healthcheck port must be between 0 and 65535")
	}
	return &cfg, nil
}
