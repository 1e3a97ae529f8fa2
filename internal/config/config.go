// Package config provides HCL configuration handling for the sync
// engine.
package config

import (
	"time"

	"github.com/nancarrowm/rangesync/internal/httpclient"
	"github.com/nancarrowm/rangesync/internal/ranges"
)

// Config is the root configuration block.
type Config struct {
	SchemaVersion string `hcl:"schema_version,optional"`

	StatePath   string `hcl:"state_path,optional"`
	HistoryPath string `hcl:"history_path,optional"`

	// SourcesFile optionally points at a YAML catalog of sources
	// merged with the inline source blocks.
	SourcesFile string `hcl:"sources_file,optional"`

	Sources []SourceBlock `hcl:"source,block"`

	PolicyStore PolicyStoreConfig `hcl:"policy_store,block"`
	Rule        RuleConfig        `hcl:"rule,block"`

	Retry   *RetryConfig   `hcl:"retry,block"`
	Sync    *SyncConfig    `hcl:"sync,block"`
	Metrics *MetricsConfig `hcl:"metrics,block"`
}

// SourceBlock is one inline range source.
type SourceBlock struct {
	Name string `hcl:"name,label"`
	URL  string `hcl:"url"`
}

// PolicyStoreConfig identifies the remote policy API.
type PolicyStoreConfig struct {
	Endpoint  string `hcl:"endpoint"`
	Token     string `hcl:"token,optional"`
	TokenFile string `hcl:"token_file,optional"`
	Scope     string `hcl:"scope"`
	ScopeID   string `hcl:"scope_id,optional"`
}

// RuleConfig shapes the rules the engine manages.
type RuleConfig struct {
	Prefix        string   `hcl:"prefix"`
	Port          int      `hcl:"port"`
	Protocols     []string `hcl:"protocols,optional"`
	Action        string   `hcl:"action,optional"`
	Direction     string   `hcl:"direction,optional"`
	Description   string   `hcl:"description,optional"`
	MaxNameLength int      `hcl:"max_name_length,optional"`
	OSTypes       []string `hcl:"os_types,optional"`
}

// RetryConfig tunes the HTTP retry behavior.
type RetryConfig struct {
	MaxAttempts   int     `hcl:"max_attempts,optional"`
	InitialDelay  string  `hcl:"initial_delay,optional"`
	MaxDelay      string  `hcl:"max_delay,optional"`
	BackoffFactor float64 `hcl:"backoff_factor,optional"`
	Jitter        *bool   `hcl:"jitter,optional"`
}

// SyncConfig tunes the sync loop.
type SyncConfig struct {
	Interval        string `hcl:"interval,optional"`
	ParallelFetches int    `hcl:"parallel_fetches,optional"`
	HTTPTimeout     string `hcl:"http_timeout,optional"`
}

// MetricsConfig enables the metrics endpoint in service mode.
type MetricsConfig struct {
	Listen string `hcl:"listen,optional"`
}

// Defaults applied when the corresponding setting is absent.
const (
	DefaultInterval        = time.Hour
	DefaultParallelFetches = 4
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultAction          = "allow"
	DefaultDirection       = "outbound"
)

// ProtocolList returns the configured protocols, defaulting to TCP
// and UDP.
func (r *RuleConfig) ProtocolList() []string {
	if len(r.Protocols) == 0 {
		return []string{"TCP", "UDP"}
	}
	return r.Protocols
}

// ActionOrDefault returns the rule action, defaulting to allow.
func (r *RuleConfig) ActionOrDefault() string {
	if r.Action == "" {
		return DefaultAction
	}
	return r.Action
}

// DirectionOrDefault returns the rule direction, defaulting to outbound.
func (r *RuleConfig) DirectionOrDefault() string {
	if r.Direction == "" {
		return DefaultDirection
	}
	return r.Direction
}

// Interval returns the sync loop interval.
func (c *Config) Interval() time.Duration {
	if c.Sync == nil {
		return DefaultInterval
	}
	return parseDuration(c.Sync.Interval, DefaultInterval)
}

// ParallelFetches returns the source fetch concurrency bound.
func (c *Config) ParallelFetches() int {
	if c.Sync == nil || c.Sync.ParallelFetches < 1 {
		return DefaultParallelFetches
	}
	return c.Sync.ParallelFetches
}

// HTTPTimeout returns the per-request timeout.
func (c *Config) HTTPTimeout() time.Duration {
	if c.Sync == nil {
		return DefaultHTTPTimeout
	}
	return parseDuration(c.Sync.HTTPTimeout, DefaultHTTPTimeout)
}

// HTTPRetry translates the retry block into client retry settings.
func (c *Config) HTTPRetry() httpclient.RetryConfig {
	cfg := httpclient.DefaultRetryConfig()
	if c.Retry == nil {
		return cfg
	}
	if c.Retry.MaxAttempts > 0 {
		cfg.MaxAttempts = c.Retry.MaxAttempts
	}
	cfg.InitialDelay = parseDuration(c.Retry.InitialDelay, cfg.InitialDelay)
	cfg.MaxDelay = parseDuration(c.Retry.MaxDelay, cfg.MaxDelay)
	if c.Retry.BackoffFactor > 0 {
		cfg.BackoffFactor = c.Retry.BackoffFactor
	}
	if c.Retry.Jitter != nil {
		cfg.Jitter = *c.Retry.Jitter
	}
	return cfg
}

// SourceList returns the inline sources as aggregator sources.
func (c *Config) SourceList() []ranges.Source {
	out := make([]ranges.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, ranges.Source{Name: s.Name, URL: s.URL})
	}
	return out
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
