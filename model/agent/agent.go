package agent

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Agent describes a single conversational participant. Agents are defined
// declaratively (YAML) and registered with a team roster; the selector scores
// them against the conversation, the orchestrator drives the selected one.
type Agent struct {
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	SystemPrompt string   `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	Keywords     []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Tools        []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	MaxTokens    int      `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
}

// HasCapability reports whether the agent declares the given capability
// (case-insensitive).
func (a *Agent) HasCapability(name string) bool {
	for _, c := range a.Capabilities {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// HasTool reports whether the agent may invoke the given tool action.
func (a *Agent) HasTool(action string) bool {
	for _, t := range a.Tools {
		if strings.EqualFold(t, action) {
			return true
		}
	}
	return false
}

// Team is an ordered agent roster. Order matters: the selector breaks score
// ties by roster position.
type Team struct {
	Name   string   `json:"name" yaml:"name"`
	Agents []*Agent `json:"agents" yaml:"agents"`
}

// Lookup returns the named agent or nil.
func (t *Team) Lookup(name string) *Agent {
	for _, a := range t.Agents {
		if strings.EqualFold(a.Name, name) {
			return a
		}
	}
	return nil
}

// Validate returns an error describing the first roster inconsistency.
func (t *Team) Validate() error {
	if t == nil || len(t.Agents) == 0 {
		return errors.New("team has no agents")
	}
	seen := map[string]bool{}
	for i, a := range t.Agents {
		if a == nil || a.Name == "" {
			return errors.Errorf("agent[%d] has no name", i)
		}
		key := strings.ToLower(a.Name)
		if seen[key] {
			return errors.Errorf("duplicate agent name %q", a.Name)
		}
		seen[key] = true
	}
	return nil
}

// DecodeTeam parses a YAML team definition.
func DecodeTeam(data []byte) (*Team, error) {
	team := &Team{}
	if err := yaml.Unmarshal(data, team); err != nil {
		return nil, errors.Wrap(err, "failed to decode team")
	}
	if err := team.Validate(); err != nil {
		return nil, err
	}
	return team, nil
}
