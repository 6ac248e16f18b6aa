package plenum

import (
	"fmt"

	"github.com/plenum-ai/plenum/policy"
	"github.com/plenum-ai/plenum/server"
	"github.com/plenum-ai/plenum/service/orchestrator"
	"github.com/plenum-ai/plenum/service/rag"
	"github.com/plenum-ai/plenum/service/selector"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from JSON, YAML, environment variables, etc. The
// zero-value is useful; all nested fields inherit their package defaults.
type Config struct {
	Server       server.Config       `json:"server" yaml:"server"`
	Orchestrator orchestrator.Config `json:"orchestrator" yaml:"orchestrator"`
	Selector     selector.Weights    `json:"selector" yaml:"selector"`
	Rag          rag.Config          `json:"rag" yaml:"rag"`
	Runner       RunnerConfig        `json:"runner" yaml:"runner"`
	Policy       *policy.Policy      `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// RunnerConfig configures the background worker pool.
type RunnerConfig struct {
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultConfig returns a Config populated with the package defaults.
// Callers may modify the returned struct before passing it to New.
func DefaultConfig() *Config {
	return &Config{
		Server:       server.DefaultConfig(),
		Orchestrator: orchestrator.DefaultConfig(),
		Selector:     selector.DefaultWeights(),
		Rag:          rag.DefaultConfig(),
		Runner:       RunnerConfig{Workers: 5},
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Runner.Workers <= 0 {
		return fmt.Errorf("runner.workers must be > 0")
	}
	if c.Orchestrator.MaxRounds < 0 {
		return fmt.Errorf("orchestrator.maxRounds must be >= 0")
	}
	if c.Orchestrator.BudgetUSD < 0 {
		return fmt.Errorf("orchestrator.budgetUsd must be >= 0")
	}
	if c.Rag.TopK < 0 {
		return fmt.Errorf("rag.topK must be >= 0")
	}
	return nil
}
