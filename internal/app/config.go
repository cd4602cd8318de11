package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	FlowPath      string // flow document (.hcl)
	ManifestsPath string // node type manifests (.hcl)

	BackendURL string
	Transport  string // "http" or "socketio"
	AuthToken  string

	LogFormat string
	LogLevel  string
	Workers   int

	// TriggerInput is the text handed to the flow's trigger node.
	TriggerInput string
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.FlowPath == "" {
		return nil, errors.New("FlowPath is a required configuration field and cannot be empty")
	}
	if cfg.BackendURL == "" {
		return nil, errors.New("BackendURL is a required configuration field and cannot be empty")
	}
	if cfg.Transport != "http" && cfg.Transport != "socketio" {
		return nil, errors.New("Transport must be 'http' or 'socketio'")
	}
	return &cfg, nil
}
