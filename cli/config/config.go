package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/sluice/feed"
)

// Config represents a sluice.yaml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	URL       string               `yaml:"url"`
	Feed      string               `yaml:"feed"`
	Since     string               `yaml:"since"`
	Heartbeat Duration             `yaml:"heartbeat"`
	Timeout   Duration             `yaml:"timeout"`
	Parallel  int                  `yaml:"parallel"`
	Headers   map[string]string    `yaml:"headers,omitempty"`
	Retry     RetryConfig          `yaml:"retry"`
	Views     map[string]ViewQuery `yaml:"views"`

	Storage    StorageConfig    `yaml:"storage"`
	Policy     PolicyConfig     `yaml:"policy"`
	Adapter    AdapterConfig    `yaml:"adapter"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

// RetryConfig holds reconnect settings. Unset fields keep the defaults;
// an explicit max of 0 removes the ceiling.
type RetryConfig struct {
	Enabled *bool     `yaml:"enabled,omitempty"`
	Max     *Duration `yaml:"max,omitempty"`
	Step    *Duration `yaml:"step,omitempty"`
}

// ViewQuery is one pre-fetch view. Name is the map key.
type ViewQuery struct {
	Path  string         `yaml:"path"`
	Query map[string]any `yaml:"query,omitempty"`
}

// StorageConfig holds archive defaults from the config file.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// PolicyConfig holds ingestion policy defaults from the config file.
type PolicyConfig struct {
	Name          string   `yaml:"name"`
	BufferRecords int      `yaml:"buffer_records"`
	BufferBytes   int64    `yaml:"buffer_bytes"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// AdapterConfig holds downstream adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// CheckpointConfig enables cursor persistence between runs.
type CheckpointConfig struct {
	Path  string `yaml:"path"`
	Every int    `yaml:"every"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("negative duration %q", s)
	}
	d.Duration = parsed
	return nil
}

// Validate checks enumerated values and ranges.
// Required fields such as url are checked after flags are merged.
func (c *Config) Validate() error {
	var errs []error
	switch c.Policy.Name {
	case "", "strict", "buffered", "noop":
	default:
		errs = append(errs, fmt.Errorf("unknown policy %q", c.Policy.Name))
	}
	switch c.Storage.Backend {
	case "", "fs", "s3":
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown adapter type %q", c.Adapter.Type))
	}
	if c.Parallel < 0 {
		errs = append(errs, fmt.Errorf("parallel must be >= 0, got %d", c.Parallel))
	}
	if c.Checkpoint.Every < 0 {
		errs = append(errs, fmt.Errorf("checkpoint.every must be >= 0, got %d", c.Checkpoint.Every))
	}
	for name, v := range c.Views {
		if v.Path == "" {
			errs = append(errs, fmt.Errorf("view %q has no path", name))
		}
	}
	return errors.Join(errs...)
}

// FeedRetry converts the retry section, starting from feed.DefaultRetryConfig.
func (c *Config) FeedRetry() feed.RetryConfig {
	rc := feed.DefaultRetryConfig()
	if c.Retry.Enabled != nil {
		rc.Enabled = *c.Retry.Enabled
	}
	if c.Retry.Max != nil {
		rc.Max = c.Retry.Max.Duration
	}
	if c.Retry.Step != nil {
		rc.Step = c.Retry.Step.Duration
	}
	return rc
}

// FeedViews converts the views section for feed.Config.
func (c *Config) FeedViews() map[string]feed.ViewQuery {
	if len(c.Views) == 0 {
		return nil
	}
	views := make(map[string]feed.ViewQuery, len(c.Views))
	for name, v := range c.Views {
		views[name] = feed.ViewQuery{Path: v.Path, Query: v.Query}
	}
	return views
}
