package proto

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func validPlan() *ExecutionPlan {
	return &ExecutionPlan{
		Objective:           "Pitch deck about solar startups",
		TechnicalStack:      []string{"Slides"},
		EstimatedComplexity: ComplexityMedium,
		Steps: []PlanStep{
			{ID: "1", Title: "Outline", Description: "Draft the outline", Agent: AgentSlideMaster},
			{ID: "2", Title: "Landing page", Description: "Build a page", Agent: AgentWebArchitect},
		},
	}
}

func TestExecutionPlanValidate(t *testing.T) {
	if err := validPlan().Validate(); err != nil {
		t.Fatalf("valid plan rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *ExecutionPlan)
		want   string
	}{
		{"missing objective", func(p *ExecutionPlan) { p.Objective = " " }, "objective"},
		{"bad complexity", func(p *ExecutionPlan) { p.EstimatedComplexity = "Extreme" }, "estimatedComplexity"},
		{"duplicate id", func(p *ExecutionPlan) { p.Steps[1].ID = "1" }, "duplicates"},
		{"missing title", func(p *ExecutionPlan) { p.Steps[0].Title = "" }, "title"},
		{"unknown agent", func(p *ExecutionPlan) { p.Steps[1].Agent = "WIZARD" }, "not a known agent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(p)
			err := p.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestExecutionPlanValidateEmptySteps(t *testing.T) {
	p := validPlan()
	p.Steps = nil
	if err := p.Validate(); !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("expected ErrEmptyPlan, got %v", err)
	}
	var nilPlan *ExecutionPlan
	if err := nilPlan.Validate(); err == nil {
		t.Fatal("expected error for nil plan")
	}
}

func TestPrimaryAgent(t *testing.T) {
	kind, ok := validPlan().PrimaryAgent()
	if !ok || kind != AgentSlideMaster {
		t.Fatalf("expected SLIDE_MASTER, got %s (%v)", kind, ok)
	}
	if _, ok := (&ExecutionPlan{}).PrimaryAgent(); ok {
		t.Fatal("empty plan should have no primary agent")
	}
}

func TestPlanDecodesModelOutput(t *testing.T) {
	raw := `{"objective":"o","technicalStack":["Go"],"estimatedComplexity":"high",
		"steps":[{"id":"s1","title":"t","description":"d","agent":"RoadmapStrategist"}]}`
	var p ExecutionPlan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.EstimatedComplexity != ComplexityHigh {
		t.Errorf("complexity not normalized: %q", p.EstimatedComplexity)
	}
	if p.Steps[0].Agent != AgentRoadmapStrategist {
		t.Errorf("agent not normalized: %q", p.Steps[0].Agent)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("decoded plan should validate: %v", err)
	}
}

func TestPlanCloneIsDeep(t *testing.T) {
	p := validPlan()
	c := p.Clone()
	c.Steps[0].Title = "changed"
	c.TechnicalStack[0] = "changed"
	if p.Steps[0].Title != "Outline" || p.TechnicalStack[0] != "Slides" {
		t.Fatal("clone shares backing arrays with the original")
	}
}
