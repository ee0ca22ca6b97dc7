package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omniagent/pkg/hub"
	"omniagent/pkg/proto"
)

type scriptedPlanner struct {
	plans   []*proto.ExecutionPlan
	prompts []string
}

func (p *scriptedPlanner) GeneratePlan(_ context.Context, prompt string, _ *proto.AgentKind) (*proto.ExecutionPlan, error) {
	p.prompts = append(p.prompts, prompt)
	plan := p.plans[0]
	if len(p.plans) > 1 {
		p.plans = p.plans[1:]
	}
	return plan.Clone(), nil
}

type echoDispatcher struct {
	kinds []proto.AgentKind
}

func (d *echoDispatcher) Dispatch(_ context.Context, prompt string, kind proto.AgentKind, _ *proto.ExecutionPlan) (*proto.ResponseEnvelope, error) {
	d.kinds = append(d.kinds, kind)
	switch kind {
	case proto.AgentRoadmapStrategist:
		return proto.NewEnvelope(&proto.Roadmap{Root: proto.RoadmapNode{
			ID: "root", Label: "Pilot", Duration: "2y", Skills: []string{"navigation"},
			Children: []proto.RoadmapNode{{ID: "c", Label: "Private licence", Skills: []string{}}},
		}}, "Your path"), nil
	case proto.AgentYouTubeResearcher:
		return proto.NewEnvelope(&proto.VideoAnalysis{
			Videos:   []proto.VideoRecord{{ID: "abc", Title: "Go in 100s", ChannelTitle: "Fireship"}},
			Analysis: "Short videos win.",
		}, "Market analysis"), nil
	default:
		return proto.NewEnvelope(&proto.SlideDeck{Slides: []proto.Slide{{Title: prompt, Content: "intro", Points: []string{"one"}}}}, "Deck"), nil
	}
}

func runScript(t *testing.T, m *hub.Machine, script string) string {
	t.Helper()
	var out bytes.Buffer
	r := newREPL(m, strings.NewReader(script), &out, false)
	require.NoError(t, r.Run(context.Background()))
	return out.String()
}

func TestREPLPlanReviseApproveEdit(t *testing.T) {
	plan := &proto.ExecutionPlan{
		Objective:           "Pitch deck",
		TechnicalStack:      []string{},
		EstimatedComplexity: proto.ComplexityLow,
		Steps:               []proto.PlanStep{{ID: "1", Title: "Slides", Description: "Make slides", Agent: proto.AgentSlideMaster}},
	}
	p := &scriptedPlanner{plans: []*proto.ExecutionPlan{plan}}
	d := &echoDispatcher{}
	m := hub.New(p, d)

	out := runScript(t, m, "pitch deck for investors\nmake it shorter\n/approve\nmore charts\n/quit\nnever read\n")

	assert.Contains(t, out, hub.PlanReadyMessage)
	assert.Contains(t, out, hub.PlanRevisedMessage)
	assert.Contains(t, out, "1. Slides (Slide Master)")
	assert.Contains(t, out, "── Slide 1: Original: pitch deck for investors. Revision: make it shorter")
	assert.Contains(t, out, "── Slide 1: more charts")
	assert.Equal(t, []proto.AgentKind{proto.AgentSlideMaster, proto.AgentSlideMaster}, d.kinds)
	assert.Equal(t, proto.ContextSlides, m.Context())
	assert.Len(t, p.prompts, 2)
}

func TestREPLDirectVideoMode(t *testing.T) {
	d := &echoDispatcher{}
	m := hub.New(&scriptedPlanner{}, d)

	out := runScript(t, m, "/mode youtube\ngo tutorials\n")

	assert.Contains(t, out, "Mode set to YouTube Researcher.")
	assert.Contains(t, out, "Query: go tutorials")
	assert.Contains(t, out, "▶ Go in 100s (Fireship) https://www.youtube.com/watch?v=abc")
	assert.Contains(t, out, "Short videos win.")
	assert.Equal(t, proto.ContextYouTube, m.Context())
}

func TestREPLRendersRoadmapTree(t *testing.T) {
	plan := &proto.ExecutionPlan{
		Objective: "Career",
		Steps:     []proto.PlanStep{{ID: "1", Title: "Map", Agent: proto.AgentRoadmapStrategist}},
	}
	m := hub.New(&scriptedPlanner{plans: []*proto.ExecutionPlan{plan}}, &echoDispatcher{})

	out := runScript(t, m, "how to become a pilot\n/approve\n")

	assert.Contains(t, out, "Pilot [2y]\n")
	assert.Contains(t, out, "  skills: navigation\n")
	assert.Contains(t, out, "  Private licence\n")
}

func TestREPLReportsIllegalCommands(t *testing.T) {
	m := hub.New(&scriptedPlanner{}, &echoDispatcher{})

	out := runScript(t, m, "/approve\n/mode wizard\n/bogus\n/reset\n")

	assert.Contains(t, out, "❌ input not accepted in current context: cannot approve in HUB")
	assert.Contains(t, out, `unknown agent "wizard"`)
	assert.Contains(t, out, "Unknown command /bogus.")
	assert.Equal(t, proto.ContextHub, m.Context())
}

func TestParseModeArg(t *testing.T) {
	tests := map[string]proto.AgentKind{
		"SLIDE_MASTER":       proto.AgentSlideMaster,
		"slides":             proto.AgentSlideMaster,
		"Web Architect":      proto.AgentWebArchitect,
		"Deep Research":      proto.AgentResearcher,
		"roadmap":            proto.AgentRoadmapStrategist,
		"design":             proto.AgentVisualDesigner,
		"youtube":            proto.AgentYouTubeResearcher,
		"youtube-researcher": proto.AgentYouTubeResearcher,
	}
	for arg, want := range tests {
		got, err := parseModeArg(arg)
		require.NoError(t, err, arg)
		assert.Equal(t, want, got, arg)
	}
	_, err := parseModeArg("wizard")
	assert.Error(t, err)
}
