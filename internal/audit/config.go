package audit

import (
	"errors"
	"fmt"
)

// Decision selection modes.
const (
	// DecisionsDenied records unauthorized, forbidden and custom outcomes.
	DecisionsDenied = "denied"
	// DecisionsAll records every decision, including proceed.
	DecisionsAll = "all"
)

// Output destinations.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

// ErrInvalidDecisions is returned for an unknown decision selection mode.
var ErrInvalidDecisions = errors.New("invalid decisions mode")

// Config configures the audit trail.
type Config struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Output is stdout, stderr or a file path. Files are appended to.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`

	// Decisions selects which authorization decisions are recorded.
	Decisions string `yaml:"decisions,omitempty" json:"decisions,omitempty"`

	// SkipFunctions lists function names whose decisions are never recorded.
	SkipFunctions []string `yaml:"skipFunctions,omitempty" json:"skipFunctions,omitempty"`
}

// DefaultConfig returns a disabled configuration writing denied decisions
// to stdout.
func DefaultConfig() *Config {
	return &Config{
		Output:    OutputStdout,
		Decisions: DecisionsDenied,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	switch c.Decisions {
	case "", DecisionsDenied, DecisionsAll:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDecisions, c.Decisions)
	}
}

// GetEffectiveOutput returns the output or stdout.
func (c *Config) GetEffectiveOutput() string {
	if c.Output == "" {
		return OutputStdout
	}
	return c.Output
}

// RecordsAll reports whether proceed decisions are recorded too.
func (c *Config) RecordsAll() bool {
	return c.Decisions == DecisionsAll
}

func (c *Config) skips(function string) bool {
	for _, name := range c.SkipFunctions {
		if name == function {
			return true
		}
	}
	return false
}
