// Package planner turns a free-text request into a structured execution plan.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"omniagent/pkg/agent/llm"
	"omniagent/pkg/agent/llmerrors"
	"omniagent/pkg/logx"
	"omniagent/pkg/proto"
)

// RoadmapTriggers are the request terms that route to ROADMAP_STRATEGIST.
// They are sent to the model verbatim, "carrier" included. Keyword routing is
// coarse: "path" also matches file-path questions.
var RoadmapTriggers = []string{"roadmap", "carrier", "career", "how to become", "path"}

// PlanGenerationError reports a failed GeneratePlan call, either an adapter
// failure or a plan that did not validate.
type PlanGenerationError struct {
	Prompt string
	Err    error
}

func (e *PlanGenerationError) Error() string {
	return "plan generation failed: " + e.Err.Error()
}

func (e *PlanGenerationError) Unwrap() error {
	return e.Err
}

// Planner issues planning calls against the reasoning-tier client.
type Planner struct {
	client      llm.LLMClient
	logger      *logx.Logger
	maxTokens   int
	temperature float32
}

// New creates a planner. maxTokens <= 0 keeps the llm default.
func New(client llm.LLMClient, maxTokens int, temperature float32) *Planner {
	p := &Planner{
		client:      client,
		logger:      logx.NewLogger("planner"),
		maxTokens:   llm.DefaultMaxTokens,
		temperature: temperature,
	}
	if maxTokens > 0 {
		p.maxTokens = maxTokens
	}
	return p
}

// SystemInstruction is the strategist instruction sent with every planning call.
func SystemInstruction() string {
	quoted := make([]string, len(RoadmapTriggers))
	for i, t := range RoadmapTriggers {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return "You are the OmniAgent Strategist.\n" +
		"Your goal is to analyze the user's prompt and generate a detailed Execution Plan.\n" +
		"Identify if the request involves:\n" +
		"- SLIDE_MASTER (presentations)\n" +
		"- WEB_ARCHITECT (websites/code)\n" +
		"- VISUAL_DESIGNER (images/UI design)\n" +
		"- RESEARCHER (general web research)\n" +
		"- YOUTUBE_RESEARCHER (video analysis)\n" +
		"- ROADMAP_STRATEGIST (career paths, learning roadmaps, long-term plans)\n\n" +
		"For prompts about " + strings.Join(quoted, ", ") + ", use ROADMAP_STRATEGIST.\n" +
		"Every step must name exactly one of the agents above and have a unique id.\n" +
		"Provide a structured JSON plan."
}

// PlanSchema is the output contract for planning calls.
func PlanSchema() *llm.Schema {
	agents := make([]string, 0, len(proto.AllAgentKinds()))
	for _, k := range proto.AllAgentKinds() {
		agents = append(agents, k.String())
	}
	complexities := make([]string, 0, len(proto.Complexities()))
	for _, c := range proto.Complexities() {
		complexities = append(complexities, string(c))
	}
	step := llm.Object(map[string]*llm.Schema{
		"id":          llm.String(),
		"title":       llm.String(),
		"description": llm.String(),
		"agent":       llm.Enum(agents...),
	}, "id", "title", "description", "agent")
	return llm.Object(map[string]*llm.Schema{
		"objective":           llm.String(),
		"technicalStack":      llm.ArrayOf(llm.String()),
		"estimatedComplexity": llm.Enum(complexities...),
		"steps":               llm.ArrayOf(step),
	}, "objective", "steps", "technicalStack", "estimatedComplexity")
}

// UserContent builds the planning prompt for a request and optional forced mode.
func UserContent(prompt string, forced *proto.AgentKind) string {
	if forced != nil && *forced != "" {
		return fmt.Sprintf("User Prompt: %s. Mode already selected: %s", prompt, *forced)
	}
	return fmt.Sprintf("User Prompt: %s. Analyze to find best mode.", prompt)
}

// RevisionPrompt composes an original request and a revision into one planning prompt.
func RevisionPrompt(original, revision string) string {
	return fmt.Sprintf("Original: %s. Revision: %s", original, revision)
}

// MatchesRoadmapTrigger reports whether text contains any roadmap trigger term.
func MatchesRoadmapTrigger(text string) bool {
	lower := strings.ToLower(text)
	for _, t := range RoadmapTriggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// GeneratePlan makes one reasoning-tier call and returns a validated plan.
// Failures are *PlanGenerationError.
func (p *Planner) GeneratePlan(ctx context.Context, prompt string, forced *proto.AgentKind) (*proto.ExecutionPlan, error) {
	fail := func(err error) (*proto.ExecutionPlan, error) {
		p.logger.Warn("Plan generation failed: %v", err)
		return nil, &PlanGenerationError{Prompt: prompt, Err: err}
	}
	if p.client == nil {
		return fail(llmerrors.NewError(llmerrors.ErrorTypeAuth, "no reasoning model client configured"))
	}
	if strings.TrimSpace(prompt) == "" {
		return fail(llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "prompt is empty"))
	}

	req := llm.NewRequest(UserContent(prompt, forced), SystemInstruction())
	req.Schema = PlanSchema()
	req.MaxTokens = p.maxTokens
	req.Temperature = p.temperature

	p.logger.Info("Generating plan with %s", p.client.GetModelName())
	logx.Debug(ctx, "planner", "roadmap trigger present: %t", MatchesRoadmapTrigger(prompt))

	res, err := p.client.Generate(ctx, req)
	if err != nil {
		return fail(err)
	}
	payload := res.Payload()
	if len(payload) == 0 {
		return fail(llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "model returned no plan"))
	}
	var plan proto.ExecutionPlan
	if err := json.Unmarshal(payload, &plan); err != nil {
		return fail(llmerrors.NewMalformedOutputError(err, string(payload)))
	}
	if plan.TechnicalStack == nil {
		plan.TechnicalStack = []string{}
	}
	if err := plan.Validate(); err != nil {
		return fail(err)
	}

	primary, _ := plan.PrimaryAgent()
	p.logger.Info("Plan ready: %d steps, complexity %s, primary %s", len(plan.Steps), plan.EstimatedComplexity, primary)
	return &plan, nil
}
