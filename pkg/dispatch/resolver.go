// Package dispatch resolves an agent kind to its prompt, output contract and
// model tier, runs the call, and normalizes the result into a ResponseEnvelope.
package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"omniagent/pkg/agent"
	"omniagent/pkg/agent/llm"
	"omniagent/pkg/agent/llmerrors"
	"omniagent/pkg/logx"
	"omniagent/pkg/proto"
	"omniagent/pkg/video"
)

// Default explanations attached when the model does not supply one.
const (
	ExplanationExecutionComplete = "Execution complete."
	ExplanationAnalysisComplete  = "Analysis complete."
	ExplanationDesignSynthesized = "Design synthesized."
	ExplanationSynthesisFinished = "Synthesis finished."
)

const defaultImageMIME = "image/png"

// ClientSource returns the model client for a capability tier.
// *agent.Clients satisfies it.
type ClientSource interface {
	For(tier agent.Tier) llm.LLMClient
}

// Resolver dispatches requests to agents.
type Resolver struct {
	clients     ClientSource
	videos      video.Searcher
	logger      *logx.Logger
	maxTokens   int
	temperature float32
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithGenerationDefaults sets max tokens and temperature for every call.
func WithGenerationDefaults(maxTokens int, temperature float32) Option {
	return func(r *Resolver) {
		if maxTokens > 0 {
			r.maxTokens = maxTokens
		}
		if temperature >= 0 {
			r.temperature = temperature
		}
	}
}

// NewResolver creates a resolver. A nil searcher behaves as one that finds nothing.
func NewResolver(clients ClientSource, videos video.Searcher, opts ...Option) *Resolver {
	r := &Resolver{
		clients:     clients,
		videos:      videos,
		logger:      logx.NewLogger("dispatch"),
		maxTokens:   llm.DefaultMaxTokens,
		temperature: llm.TemperatureDefault,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PrimaryExecutor picks the agent that runs an approved plan: the forced mode
// when set, otherwise the first step's agent, otherwise ORCHESTRATOR.
func PrimaryExecutor(forced *proto.AgentKind, plan *proto.ExecutionPlan) proto.AgentKind {
	if forced != nil && *forced != "" {
		return *forced
	}
	if kind, ok := plan.PrimaryAgent(); ok && kind != "" {
		return kind
	}
	return proto.AgentOrchestrator
}

// Dispatch runs prompt through the agent for kind. planContext, when set, is
// embedded in the instruction so the output follows the approved steps. The
// returned envelope has been validated. Failures are *AgentExecutionError.
func (r *Resolver) Dispatch(ctx context.Context, prompt string, kind proto.AgentKind, planContext *proto.ExecutionPlan) (*proto.ResponseEnvelope, error) {
	r.logger.Info("Dispatching %s (plan context: %t)", kind, planContext != nil)
	logx.Debug(ctx, "dispatch", "prompt for %s: %s", kind, llmerrors.SanitizePrompt(prompt, 200))

	var (
		env *proto.ResponseEnvelope
		err error
	)
	switch kind {
	case proto.AgentYouTubeResearcher:
		env, err = r.videoAnalysis(ctx, prompt)
	case proto.AgentRoadmapStrategist:
		env, err = r.roadmap(ctx, prompt, planContext)
	case proto.AgentSlideMaster:
		env, err = r.slides(ctx, prompt, planContext)
	case proto.AgentWebArchitect:
		env, err = r.web(ctx, prompt, planContext)
	case proto.AgentVisualDesigner:
		env, err = r.design(ctx, prompt, planContext)
	case proto.AgentResearcher:
		env, err = r.research(ctx, prompt, planContext)
	case proto.AgentOrchestrator, proto.AgentTaskScheduler:
		err = ErrUnsupportedAgent
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedAgent, kind)
	}
	if err == nil {
		if verr := env.Validate(); verr != nil {
			err = llmerrors.NewErrorWithCause(llmerrors.ErrorTypeMalformedOutput, verr, "agent output failed validation")
		}
	}
	if err != nil {
		r.logger.Warn("Dispatch to %s failed: %v", kind, err)
		return nil, execErr(kind, err)
	}
	r.logger.Info("Dispatch to %s complete", kind)
	return env, nil
}

func (r *Resolver) request(prompt, system string) llm.Request {
	req := llm.NewRequest(prompt, system)
	req.MaxTokens = r.maxTokens
	req.Temperature = r.temperature
	return req
}

func (r *Resolver) generate(ctx context.Context, tier agent.Tier, req llm.Request) (llm.Result, error) {
	client := r.clients.For(tier)
	if client == nil {
		return llm.Result{}, llmerrors.NewError(llmerrors.ErrorTypeAuth, fmt.Sprintf("no %s model client configured", tier))
	}
	res, err := client.Generate(ctx, req)
	if err != nil {
		return llm.Result{}, fmt.Errorf("%s model %s: %w", tier, client.GetModelName(), err)
	}
	return res, nil
}

// planReference renders the approved steps for embedding in an instruction.
func planReference(plan *proto.ExecutionPlan) string {
	if plan == nil || len(plan.Steps) == 0 {
		return ""
	}
	steps, err := json.Marshal(plan.Steps)
	if err != nil {
		return ""
	}
	return "Follow this approved plan: " + string(steps)
}

func withPlan(instruction string, plan *proto.ExecutionPlan) string {
	ref := planReference(plan)
	if ref == "" {
		return instruction
	}
	return instruction + " " + ref
}

func (r *Resolver) videoAnalysis(ctx context.Context, prompt string) (*proto.ResponseEnvelope, error) {
	videos := []proto.VideoRecord{}
	if r.videos != nil {
		if found := r.videos.SearchVideos(ctx, prompt); found != nil {
			videos = found
		}
	}
	r.logger.Debug("Video search returned %d results", len(videos))

	metadata, err := json.Marshal(videos)
	if err != nil {
		return nil, fmt.Errorf("failed to encode video metadata: %w", err)
	}
	req := r.request(fmt.Sprintf("User Query: %s. Analyze results: %s.", prompt, metadata), "Video market strategist.")
	res, err := r.generate(ctx, agent.TierText, req)
	if err != nil {
		return nil, err
	}
	analysis := strings.TrimSpace(res.Text)
	if analysis == "" {
		return nil, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "video analysis was empty")
	}
	return proto.NewEnvelope(&proto.VideoAnalysis{Videos: videos, Analysis: analysis}, ExplanationAnalysisComplete), nil
}

func (r *Resolver) roadmap(ctx context.Context, prompt string, plan *proto.ExecutionPlan) (*proto.ResponseEnvelope, error) {
	system := withPlan(fmt.Sprintf("You are the Career Architect. Generate a hierarchical tree roadmap. "+
		"Use a recursive structure where each node has: id, label, description, duration, skills, and optional children. "+
		"Nest at most %d levels and give every node a unique id.", proto.MaxRoadmapDepth), plan)
	req := r.request(prompt, system)
	req.Schema = RoadmapSchema()

	res, err := r.generate(ctx, agent.TierReasoning, req)
	if err != nil {
		return nil, err
	}
	var out struct {
		Roadmap     proto.RoadmapNode `json:"roadmap"`
		Explanation string            `json:"explanation"`
	}
	if err := decode(res, &out); err != nil {
		return nil, err
	}
	root := out.Roadmap.Normalize(proto.MaxRoadmapDepth)
	if out.Roadmap.Depth() > proto.MaxRoadmapDepth {
		r.logger.Warn("Roadmap depth %d truncated to %d", out.Roadmap.Depth(), proto.MaxRoadmapDepth)
	}
	return proto.NewEnvelope(&proto.Roadmap{Root: root, Explanation: out.Explanation},
		orDefault(out.Explanation, ExplanationExecutionComplete)), nil
}

func (r *Resolver) slides(ctx context.Context, prompt string, plan *proto.ExecutionPlan) (*proto.ResponseEnvelope, error) {
	req := r.request(prompt, withPlan("You are a Slide Master.", plan))
	req.Schema = SlideDeckSchema()

	res, err := r.generate(ctx, agent.TierText, req)
	if err != nil {
		return nil, err
	}
	var out struct {
		Slides      []proto.Slide `json:"slides"`
		Explanation string        `json:"explanation"`
	}
	if err := decode(res, &out); err != nil {
		return nil, err
	}
	for i := range out.Slides {
		if out.Slides[i].Points == nil {
			out.Slides[i].Points = []string{}
		}
	}
	return proto.NewEnvelope(&proto.SlideDeck{Slides: out.Slides},
		orDefault(out.Explanation, ExplanationExecutionComplete)), nil
}

func (r *Resolver) web(ctx context.Context, prompt string, plan *proto.ExecutionPlan) (*proto.ResponseEnvelope, error) {
	req := r.request(prompt, withPlan("You are a Web Architect.", plan))
	req.Schema = WebBuildSchema()

	res, err := r.generate(ctx, agent.TierText, req)
	if err != nil {
		return nil, err
	}
	var out struct {
		HTML        string `json:"html"`
		CSS         string `json:"css"`
		Explanation string `json:"explanation"`
	}
	if err := decode(res, &out); err != nil {
		return nil, err
	}
	return proto.NewEnvelope(&proto.WebBuild{HTML: out.HTML, CSS: out.CSS},
		orDefault(out.Explanation, ExplanationExecutionComplete)), nil
}

func (r *Resolver) design(ctx context.Context, prompt string, plan *proto.ExecutionPlan) (*proto.ResponseEnvelope, error) {
	text := "Design task: " + prompt + "."
	if ref := planReference(plan); ref != "" {
		text += " " + ref
	}
	req := r.request(text, "")
	req.WantImage = true

	res, err := r.generate(ctx, agent.TierImage, req)
	if err != nil {
		return nil, err
	}
	if len(res.Images) == 0 || len(res.Images[0].Data) == 0 {
		return nil, ErrImageExtraction
	}
	img := res.Images[0]
	mime := img.MIMEType
	if mime == "" {
		mime = defaultImageMIME
	}
	uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	return proto.NewEnvelope(&proto.VisualDesign{ImageURL: uri, Prompt: prompt}, ExplanationDesignSynthesized), nil
}

func (r *Resolver) research(ctx context.Context, prompt string, plan *proto.ExecutionPlan) (*proto.ResponseEnvelope, error) {
	req := r.request(prompt, withPlan("Senior Deep Researcher.", plan))
	req.Grounded = true

	res, err := r.generate(ctx, agent.TierReasoning, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "research report was empty")
	}
	sources := make([]string, 0, len(res.Citations))
	for _, c := range res.Citations {
		switch {
		case c.URI != "":
			sources = append(sources, c.URI)
		case c.Title != "":
			sources = append(sources, c.Title)
		}
	}
	return proto.NewEnvelope(&proto.ResearchReport{Content: res.Text, Sources: sources}, ExplanationSynthesisFinished), nil
}

func decode(res llm.Result, into any) error {
	payload := res.Payload()
	if len(payload) == 0 {
		return llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "model returned no JSON payload")
	}
	if err := json.Unmarshal(payload, into); err != nil {
		return llmerrors.NewMalformedOutputError(err, string(payload))
	}
	return nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
