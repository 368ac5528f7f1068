package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// PipelinePath locates the .hcl pipeline definition.
	PipelinePath string

	// EventPath locates a trigger event file. Mutually exclusive with the
	// inline event fields below.
	EventPath string
	// EventKind, SHA and PRHeadSHA describe the trigger inline.
	EventKind string
	SHA       string
	PRHeadSHA string

	// DryRun resolves and prints the references that would be published
	// without invoking any external tool.
	DryRun bool

	LogFormat string
	LogLevel  string
	// Workers overrides the pipeline file's worker count when positive.
	Workers int
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.EventPath == "" && cfg.SHA == "" {
		return nil, errors.New("a trigger is required: provide an event file or a commit SHA")
	}
	if cfg.EventPath != "" && cfg.SHA != "" {
		return nil, errors.New("an event file and an inline commit SHA are mutually exclusive")
	}
	return &cfg, nil
}
