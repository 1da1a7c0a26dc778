package qarun

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlanFile is the conventional plan filename at the project root.
const PlanFile = "qa-plan.yaml"

// DefaultGateThreshold is the weighted score a run must reach to pass
// when the plan does not set its own threshold.
const DefaultGateThreshold = 70

// Plan declares what a QA run verifies: the checks, their categories
// and dependencies, and the score gate. Loaded from qa-plan.yaml.
type Plan struct {
	Name          string  `json:"name" yaml:"name"`
	Project       string  `json:"project,omitempty" yaml:"project,omitempty"`
	BaseURL       string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Database      string  `json:"database,omitempty" yaml:"database,omitempty"`
	GateThreshold int     `json:"gate_threshold,omitempty" yaml:"gate_threshold,omitempty"`
	Checks        []Check `json:"checks" yaml:"checks"`
}

// LoadPlan reads and validates the plan at path. A zero gate threshold
// is replaced with DefaultGateThreshold before validation.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parsing plan %s: %w", path, err)
	}

	if plan.GateThreshold == 0 {
		plan.GateThreshold = DefaultGateThreshold
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}

	return &plan, nil
}

// Validate checks the plan's internal consistency: a name, at least one
// check, unique check IDs, known categories, a sane gate threshold, and
// dependencies that reference declared checks without cycles.
func (p *Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("plan has no name")
	}
	if len(p.Checks) == 0 {
		return fmt.Errorf("plan %q has no checks", p.Name)
	}
	if p.GateThreshold < 0 || p.GateThreshold > 100 {
		return fmt.Errorf("gate threshold %d out of range 0-100", p.GateThreshold)
	}

	ids := make(map[string]bool, len(p.Checks))
	for i, c := range p.Checks {
		if c.ID == "" {
			return fmt.Errorf("check %d has no id", i+1)
		}
		if ids[c.ID] {
			return fmt.Errorf("duplicate check id %q", c.ID)
		}
		ids[c.ID] = true

		if c.Name == "" {
			return fmt.Errorf("check %q has no name", c.ID)
		}
		if err := ValidateCategory(c.Category); err != nil {
			return fmt.Errorf("check %q: %w", c.ID, err)
		}
		if c.Weight < 0 {
			return fmt.Errorf("check %q has negative weight %d", c.ID, c.Weight)
		}
	}

	for _, c := range p.Checks {
		for _, dep := range c.DependsOn {
			if !ids[dep] {
				return fmt.Errorf("check %q depends on unknown check %q", c.ID, dep)
			}
		}
	}

	// Ordering also rejects dependency cycles.
	if _, err := OrderChecks(p.Checks); err != nil {
		return err
	}

	return nil
}
