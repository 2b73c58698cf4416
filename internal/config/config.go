// Package config provides configuration loading and validation for the harvester.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Sink selector values.
const (
	SinkDocument = "document"
	SinkBlob     = "blob"
)

// DefaultAppID namespaces the document collection the dashboard listens to.
const DefaultAppID = "nsefi-policy-tracker"

// Error represents a configuration failure. It is fatal before any network
// I/O is attempted.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Config is the explicit configuration value constructed once at startup and
// passed into each pipeline stage. No ambient global state.
type Config struct {
	// Sink selects the publish destination: "document" or "blob".
	Sink string `json:"sink,omitempty" validate:"omitempty,oneof=document blob"`

	// Document-store destination.
	DatabaseURL string `json:"database_url,omitempty"`
	AppID       string `json:"app_id,omitempty"`

	// Blob-store destination.
	BlobURL   string `json:"blob_url,omitempty" validate:"omitempty,url"`
	BlobToken string `json:"blob_token,omitempty"`

	// Per-source endpoint overrides, keyed by source name.
	Endpoints map[string]string `json:"endpoints,omitempty"`

	// TimeoutSeconds bounds each blocking network call.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=300"`

	Verbose bool `json:"verbose,omitempty"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, &Error{Message: "config path is empty"}
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, &Error{Message: "failed to get current directory", Cause: err}
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to read config file %s", path), Cause: err}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &Error{Message: "failed to parse config JSON", Cause: err}
	}

	return &cfg, nil
}

// FromEnv builds a Config from environment variables. Empty variables leave
// the corresponding field unset so file and flag values survive the merge.
func FromEnv() *Config {
	cfg := &Config{
		Sink:        os.Getenv("POLICY_SINK"),
		DatabaseURL: os.Getenv("POLICY_DATABASE_URL"),
		AppID:       os.Getenv("POLICY_APP_ID"),
		BlobURL:     os.Getenv("POLICY_BLOB_URL"),
		BlobToken:   os.Getenv("POLICY_BLOB_TOKEN"),
	}
	if raw := os.Getenv("POLICY_TIMEOUT_SECONDS"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil {
			cfg.TimeoutSeconds = seconds
		}
	}
	return cfg
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Sink == "" {
		result.Sink = defaults.Sink
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.AppID == "" {
		result.AppID = defaults.AppID
	}
	if result.BlobURL == "" {
		result.BlobURL = defaults.BlobURL
	}
	if result.BlobToken == "" {
		result.BlobToken = defaults.BlobToken
	}
	if result.TimeoutSeconds == 0 {
		result.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if result.Endpoints == nil {
		result.Endpoints = defaults.Endpoints
	}
	if !result.Verbose {
		result.Verbose = defaults.Verbose
	}

	return result
}

// Validate checks that the configuration can support the selected sink.
// A failure here aborts the run before any network I/O.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &Error{Message: "invalid configuration", Cause: err}
	}

	switch c.Sink {
	case SinkDocument:
		if c.DatabaseURL == "" {
			return &Error{Message: "'database_url' is required for the document sink"}
		}
	case SinkBlob:
		if c.BlobURL == "" {
			return &Error{Message: "'blob_url' is required for the blob sink"}
		}
	case "":
		return &Error{Message: "'sink' must be set to \"document\" or \"blob\""}
	}

	return nil
}

// Collection returns the namespaced collection path the dashboard reads.
func (c *Config) Collection() string {
	appID := c.AppID
	if appID == "" {
		appID = DefaultAppID
	}
	return fmt.Sprintf("artifacts/%s/public/data/policies", appID)
}
