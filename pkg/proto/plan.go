package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Complexity is the estimated effort tier of a plan.
type Complexity string

// Complexity tiers.
const (
	ComplexityLow      Complexity = "Low"
	ComplexityMedium   Complexity = "Medium"
	ComplexityHigh     Complexity = "High"
	ComplexityCritical Complexity = "Critical"
)

// Complexities lists the tiers in ascending order.
func Complexities() []Complexity {
	return []Complexity{ComplexityLow, ComplexityMedium, ComplexityHigh, ComplexityCritical}
}

// ParseComplexity parses a tier name case-insensitively.
func ParseComplexity(s string) (Complexity, error) {
	for _, c := range Complexities() {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown complexity: %q", s)
}

// Valid reports whether c is a known tier.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh, ComplexityCritical:
		return true
	default:
		return false
	}
}

// UnmarshalJSON normalizes case; unknown values are kept for Validate to report.
func (c *Complexity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("complexity must be a string: %w", err)
	}
	if parsed, err := ParseComplexity(s); err == nil {
		*c = parsed
		return nil
	}
	*c = Complexity(s)
	return nil
}

// PlanStep is one step of an execution plan, bound to the agent that runs it.
type PlanStep struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Agent       AgentKind `json:"agent"`
}

// ExecutionPlan is a human-approvable breakdown of a request.
type ExecutionPlan struct {
	Objective           string     `json:"objective"`
	TechnicalStack      []string   `json:"technicalStack"`
	EstimatedComplexity Complexity `json:"estimatedComplexity"`
	Steps               []PlanStep `json:"steps"`
}

// ErrEmptyPlan is returned by Validate for a plan without steps.
var ErrEmptyPlan = errors.New("plan has no steps")

// Validate checks the plan structurally. It does not judge the text.
func (p *ExecutionPlan) Validate() error {
	if p == nil {
		return errors.New("plan is nil")
	}
	var problems []string
	if strings.TrimSpace(p.Objective) == "" {
		problems = append(problems, "objective is required")
	}
	if !p.EstimatedComplexity.Valid() {
		problems = append(problems, fmt.Sprintf("estimatedComplexity %q is not one of Low, Medium, High, Critical", p.EstimatedComplexity))
	}
	seen := make(map[string]int, len(p.Steps))
	for i := range p.Steps {
		step := &p.Steps[i]
		prefix := fmt.Sprintf("steps[%d]", i)
		if strings.TrimSpace(step.ID) == "" {
			problems = append(problems, prefix+".id is required")
		} else if first, dup := seen[step.ID]; dup {
			problems = append(problems, fmt.Sprintf("%s.id %q duplicates steps[%d]", prefix, step.ID, first))
		} else {
			seen[step.ID] = i
		}
		if strings.TrimSpace(step.Title) == "" {
			problems = append(problems, prefix+".title is required")
		}
		if strings.TrimSpace(step.Description) == "" {
			problems = append(problems, prefix+".description is required")
		}
		if !step.Agent.Valid() {
			problems = append(problems, fmt.Sprintf("%s.agent %q is not a known agent", prefix, step.Agent))
		}
	}
	if len(p.Steps) == 0 {
		if len(problems) == 0 {
			return ErrEmptyPlan
		}
		return fmt.Errorf("%w; %s", ErrEmptyPlan, strings.Join(problems, "; "))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid plan: %s", strings.Join(problems, "; "))
	}
	return nil
}

// PrimaryAgent returns the first step's agent, or false for an empty plan.
func (p *ExecutionPlan) PrimaryAgent() (AgentKind, bool) {
	if p == nil || len(p.Steps) == 0 {
		return "", false
	}
	return p.Steps[0].Agent, true
}

// Clone returns a deep copy.
func (p *ExecutionPlan) Clone() *ExecutionPlan {
	if p == nil {
		return nil
	}
	out := *p
	if p.TechnicalStack != nil {
		out.TechnicalStack = append([]string(nil), p.TechnicalStack...)
	}
	if p.Steps != nil {
		out.Steps = append([]PlanStep(nil), p.Steps...)
	}
	return &out
}
