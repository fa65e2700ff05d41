package config

import (
	"fmt"
	"time"

	"github.com/zavora-ai/adk-go/pkg/agentcheckpoint"
	"github.com/zavora-ai/adk-go/pkg/compaction"
	"github.com/zavora-ai/adk-go/pkg/graph"
	"github.com/zavora-ai/adk-go/pkg/model"
)

// Config is the root of the runtime's YAML configuration file.
type Config struct {
	// AppName identifies the application sessions are scoped under.
	AppName string `yaml:"app_name"`

	Runner *RunnerConfig `yaml:"runner,omitempty"`
}

// RunnerConfig configures the runner.Runner-level behaviors that a turn
// exercises outside of any single agent's own reasoning loop: history
// compaction and checkpointing.
type RunnerConfig struct {
	Compaction *CompactionConfig       `yaml:"compaction,omitempty"`
	Checkpoint *agentcheckpoint.Config `yaml:"checkpoint,omitempty"`
}

// CompactionConfig selects and parameterizes a compaction.Strategy.
type CompactionConfig struct {
	// Strategy names the strategy to build: "none" (default), "token_window",
	// or "summary_buffer".
	Strategy string `yaml:"strategy,omitempty"`

	// MaxTokens bounds retained history for token_window, and the threshold
	// past which summary_buffer starts summarizing.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// KeepLast is how many of the most recent events summary_buffer always
	// keeps verbatim, never folding them into a summary.
	KeepLast int `yaml:"keep_last,omitempty"`

	// Encoding is the tiktoken encoding name used to count tokens.
	// Defaults to "cl100k_base".
	Encoding string `yaml:"encoding,omitempty"`

	// Interval is how many Runner invocations elapse between compaction
	// checks for a session (counter % Interval == 0). 0 or 1 means every
	// invocation.
	Interval int `yaml:"compaction_interval,omitempty"`

	// OverlapSize excludes this many of the most recent events (counted as
	// events, not turns) from compaction eligibility even when Interval
	// fires, preserving short-term continuity.
	OverlapSize int `yaml:"overlap_size,omitempty"`
}

// SetDefaults fills unset fields with their defaults.
func (c *CompactionConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = "none"
	}
	if c.Encoding == "" {
		c.Encoding = "cl100k_base"
	}
}

// Validate checks the configuration for internal consistency.
func (c *CompactionConfig) Validate() error {
	switch c.Strategy {
	case "", "none", "token_window":
	case "summary_buffer":
		if c.KeepLast < 0 {
			return fmt.Errorf("config: compaction keep_last must be non-negative")
		}
	default:
		return fmt.Errorf("config: invalid compaction strategy %q (valid: none, token_window, summary_buffer)", c.Strategy)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("config: compaction max_tokens must be non-negative")
	}
	if c.Interval < 0 {
		return fmt.Errorf("config: compaction_interval must be non-negative")
	}
	if c.OverlapSize < 0 {
		return fmt.Errorf("config: overlap_size must be non-negative")
	}
	return nil
}

// Trigger returns the compaction.Config a Runner gates on: the invocation
// interval and overlap window this config describes.
func (c *CompactionConfig) Trigger() compaction.Config {
	return compaction.Config{Interval: c.Interval, OverlapSize: c.OverlapSize}
}

// Build constructs the compaction.Strategy this config describes.
// summarizer is only used (and only required) by the summary_buffer
// strategy; it is the model that produces the summary text.
func (c *CompactionConfig) Build(summarizer model.LLM) (compaction.Strategy, error) {
	switch c.Strategy {
	case "", "none":
		return compaction.NilStrategy{}, nil
	case "token_window":
		return compaction.TokenWindowStrategy{MaxTokens: c.MaxTokens, Encoding: c.Encoding}, nil
	case "summary_buffer":
		if summarizer == nil {
			return nil, fmt.Errorf("config: summary_buffer compaction requires a summarizer model")
		}
		return compaction.SummaryBufferStrategy{
			Summarizer: summarizer,
			MaxTokens:  c.MaxTokens,
			KeepLast:   c.KeepLast,
			Encoding:   c.Encoding,
		}, nil
	default:
		return nil, fmt.Errorf("config: invalid compaction strategy %q", c.Strategy)
	}
}

// RetryConfig is the YAML-decodable mirror of graph.RetryConfig: node retry
// behavior belongs to the graph executor, but its durations and
// retryable-error patterns are runtime configuration, not something a graph
// definition should hardcode.
type RetryConfig struct {
	MaxRetries      int           `yaml:"max_retries,omitempty"`
	BaseDelay       time.Duration `yaml:"base_delay,omitempty"`
	MaxDelay        time.Duration `yaml:"max_delay,omitempty"`
	JitterFactor    float64       `yaml:"jitter_factor,omitempty"`
	RetryableErrors []string      `yaml:"retryable_errors,omitempty"`
}

// ToGraphRetryConfig converts c into the shape graph.WithRetry accepts.
func (c *RetryConfig) ToGraphRetryConfig() graph.RetryConfig {
	if c == nil {
		return graph.RetryConfig{}
	}
	return graph.RetryConfig{
		MaxRetries:      c.MaxRetries,
		BaseDelay:       c.BaseDelay,
		MaxDelay:        c.MaxDelay,
		JitterFactor:    c.JitterFactor,
		RetryableErrors: c.RetryableErrors,
	}
}

// SetDefaults fills in the config tree's defaults, recursing into every
// sub-config that has its own.
func (c *Config) SetDefaults() {
	if c.Runner == nil {
		c.Runner = &RunnerConfig{}
	}
	if c.Runner.Compaction == nil {
		c.Runner.Compaction = &CompactionConfig{}
	}
	c.Runner.Compaction.SetDefaults()

	if c.Runner.Checkpoint == nil {
		c.Runner.Checkpoint = &agentcheckpoint.Config{}
	}
	c.Runner.Checkpoint.SetDefaults()
}

// Validate checks the config tree for internal consistency.
func (c *Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("config: app_name is required")
	}
	if c.Runner != nil {
		if c.Runner.Compaction != nil {
			if err := c.Runner.Compaction.Validate(); err != nil {
				return err
			}
		}
		if c.Runner.Checkpoint != nil {
			if err := c.Runner.Checkpoint.Validate(); err != nil {
				return fmt.Errorf("config: checkpoint: %w", err)
			}
		}
	}
	return nil
}
