// Package manifest loads fleet composition from a YAML file: which
// agents exist, what they advertise, and which model tier they use.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// knownTiers are the model tiers an agent spec may name. Empty means
// the balanced default.
var knownTiers = map[string]bool{
	"":         true,
	"fast":     true,
	"balanced": true,
	"deep":     true,
}

// AgentSpec declares one agent in the fleet manifest.
type AgentSpec struct {
	// ID is the agent's unique fleet identifier.
	ID string `yaml:"id"`
	// Summary describes the agent for registry introspection.
	Summary string `yaml:"summary"`
	// Skills lists the agent's advertised skills.
	Skills []string `yaml:"skills"`
	// Tier selects the model tier: fast, balanced or deep.
	Tier string `yaml:"tier"`
	// Learning enables trajectory capture for this agent.
	Learning bool `yaml:"learning"`
}

// Manifest is the fleet composition file.
type Manifest struct {
	// Namespace overrides the default coordination store namespace.
	Namespace string `yaml:"namespace"`
	// Agents lists the fleet's agents.
	Agents []AgentSpec `yaml:"agents"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates manifest bytes.
func Parse(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest for structural problems.
func (m *Manifest) Validate() error {
	if len(m.Agents) == 0 {
		return fmt.Errorf("manifest: no agents declared")
	}

	seen := make(map[string]bool, len(m.Agents))
	for i, spec := range m.Agents {
		if spec.ID == "" {
			return fmt.Errorf("manifest: agent %d has no id", i)
		}
		if seen[spec.ID] {
			return fmt.Errorf("manifest: duplicate agent id %q", spec.ID)
		}
		seen[spec.ID] = true

		if !knownTiers[spec.Tier] {
			return fmt.Errorf("manifest: agent %q has unknown tier %q", spec.ID, spec.Tier)
		}
	}
	return nil
}
