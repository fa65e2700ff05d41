package agentcheckpoint

import (
	"fmt"
	"time"
)

// Strategy determines when checkpoints are created.
type Strategy string

const (
	// StrategyEvent checkpoints only on specific events (tool approval, errors).
	StrategyEvent Strategy = "event"
	// StrategyInterval checkpoints every N iterations.
	StrategyInterval Strategy = "interval"
	// StrategyHybrid checkpoints on both events and an interval.
	StrategyHybrid Strategy = "hybrid"
)

// Config configures agent execution-state checkpointing.
//
// Example YAML:
//
//	checkpoint:
//	  enabled: true
//	  strategy: hybrid
//	  interval: 5
//	  after_tools: true
//	  before_llm: false
//	  recovery:
//	    auto_resume: true
//	    auto_resume_hitl: false
//	    timeout: 3600
type Config struct {
	Enabled *bool `yaml:"enabled,omitempty"`

	Strategy Strategy `yaml:"strategy,omitempty"`
	Interval int      `yaml:"interval,omitempty"`

	AfterTools *bool `yaml:"after_tools,omitempty"`
	BeforeLLM  *bool `yaml:"before_llm,omitempty"`

	Recovery *RecoveryConfig `yaml:"recovery,omitempty"`
}

// RecoveryConfig configures checkpoint recovery behavior.
type RecoveryConfig struct {
	AutoResume     *bool `yaml:"auto_resume,omitempty"`
	AutoResumeHITL *bool `yaml:"auto_resume_hitl,omitempty"`
	// Timeout is the max checkpoint age, in seconds, that's still recoverable.
	Timeout int `yaml:"timeout,omitempty"`
}

// SetDefaults fills unset fields with their defaults.
func (c *Config) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = boolPtr(false)
	}
	if c.Strategy == "" {
		c.Strategy = StrategyEvent
	}
	if c.AfterTools == nil {
		c.AfterTools = boolPtr(false)
	}
	if c.BeforeLLM == nil {
		c.BeforeLLM = boolPtr(false)
	}
	if c.Recovery == nil {
		c.Recovery = &RecoveryConfig{}
	}
	c.Recovery.SetDefaults()
}

// SetDefaults fills unset fields of RecoveryConfig with their defaults.
func (c *RecoveryConfig) SetDefaults() {
	if c.AutoResume == nil {
		c.AutoResume = boolPtr(false)
	}
	if c.AutoResumeHITL == nil {
		c.AutoResumeHITL = boolPtr(false)
	}
	if c.Timeout == 0 {
		c.Timeout = 3600
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.Strategy {
	case "", StrategyEvent, StrategyInterval, StrategyHybrid:
	default:
		return fmt.Errorf("agentcheckpoint: invalid strategy %q (valid: event, interval, hybrid)", c.Strategy)
	}
	if c.Interval < 0 {
		return fmt.Errorf("agentcheckpoint: interval must be non-negative")
	}
	if c.Recovery != nil {
		if err := c.Recovery.Validate(); err != nil {
			return fmt.Errorf("agentcheckpoint: recovery config: %w", err)
		}
	}
	return nil
}

// Validate checks the RecoveryConfig for internal consistency.
func (c *RecoveryConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("agentcheckpoint: recovery timeout must be non-negative")
	}
	return nil
}

func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

func (c *Config) ShouldCheckpointAfterTools() bool {
	return c.IsEnabled() && c.AfterTools != nil && *c.AfterTools
}

func (c *Config) ShouldCheckpointBeforeLLM() bool {
	return c.IsEnabled() && c.BeforeLLM != nil && *c.BeforeLLM
}

func (c *Config) ShouldCheckpointInterval() bool {
	return c.IsEnabled() &&
		(c.Strategy == StrategyInterval || c.Strategy == StrategyHybrid) &&
		c.Interval > 0
}

// ShouldCheckpointAtIteration reports whether iteration lands on the
// configured checkpoint interval.
func (c *Config) ShouldCheckpointAtIteration(iteration int) bool {
	if !c.ShouldCheckpointInterval() {
		return false
	}
	return iteration > 0 && iteration%c.Interval == 0
}

// GetRecoveryTimeout returns the configured recovery timeout, defaulting to
// one hour.
func (c *Config) GetRecoveryTimeout() time.Duration {
	if c == nil || c.Recovery == nil || c.Recovery.Timeout <= 0 {
		return time.Hour
	}
	return time.Duration(c.Recovery.Timeout) * time.Second
}

func (c *Config) ShouldAutoResume() bool {
	return c.IsEnabled() && c.Recovery != nil && c.Recovery.AutoResume != nil && *c.Recovery.AutoResume
}

func (c *Config) ShouldAutoResumeHITL() bool {
	return c.IsEnabled() && c.Recovery != nil && c.Recovery.AutoResumeHITL != nil && *c.Recovery.AutoResumeHITL
}

func boolPtr(b bool) *bool { return &b }
