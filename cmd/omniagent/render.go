package main

import (
	"fmt"
	"io"
	"strings"

	"omniagent/pkg/hub"
	"omniagent/pkg/proto"
)

// textRenderer prints envelope content for a terminal.
type textRenderer struct {
	w io.Writer
}

func (r *textRenderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format, args...)
}

func (r *textRenderer) VisitSlideDeck(c *proto.SlideDeck) error {
	for i, s := range c.Slides {
		r.printf("\n── Slide %d: %s\n%s\n", i+1, s.Title, s.Content)
		for _, p := range s.Points {
			r.printf("  • %s\n", p)
		}
	}
	return nil
}

func (r *textRenderer) VisitWebBuild(c *proto.WebBuild) error {
	r.printf("\nGenerated page: %d bytes of HTML", len(c.HTML))
	if c.CSS != "" {
		r.printf(", %d bytes of CSS", len(c.CSS))
	}
	r.printf(". Run with -serve and open /api/workspace/preview to view it.\n")
	return nil
}

func (r *textRenderer) VisitVisualDesign(c *proto.VisualDesign) error {
	mime, _, _ := strings.Cut(strings.TrimPrefix(c.ImageURL, "data:"), ";")
	r.printf("\nDesign for %q: %s image, %d bytes encoded\n", c.Prompt, mime, len(c.ImageURL))
	return nil
}

func (r *textRenderer) VisitResearchReport(c *proto.ResearchReport) error {
	r.printf("\n%s\n", c.Content)
	if len(c.Sources) > 0 {
		r.printf("\nSources:\n")
		for _, s := range c.Sources {
			r.printf("  - %s\n", s)
		}
	}
	return nil
}

func (r *textRenderer) VisitVideoAnalysis(c *proto.VideoAnalysis) error {
	for _, v := range c.Videos {
		r.printf("  ▶ %s (%s) https://www.youtube.com/watch?v=%s\n", v.Title, v.ChannelTitle, v.ID)
	}
	if len(c.Videos) == 0 {
		r.printf("  (no videos found)\n")
	}
	r.printf("\n%s\n", c.Analysis)
	return nil
}

func (r *textRenderer) VisitRoadmap(c *proto.Roadmap) error {
	c.Root.Walk(func(n *proto.RoadmapNode, depth int) bool {
		indent := strings.Repeat("  ", depth-1)
		r.printf("%s%s", indent, n.Label)
		if n.Duration != "" {
			r.printf(" [%s]", n.Duration)
		}
		r.printf("\n")
		if len(n.Skills) > 0 {
			r.printf("%s  skills: %s\n", indent, strings.Join(n.Skills, ", "))
		}
		return true
	})
	return nil
}

// renderView prints the parts of v that matter for the active context.
func renderView(w io.Writer, v *hub.View) {
	r := &textRenderer{w: w}
	if v.Notice != "" {
		r.printf("⚠️  %s\n", v.Notice)
	}
	switch {
	case v.Context == proto.ContextChat:
		renderChat(r, v)
	case v.Context.IsWorkspace() && v.Envelope != nil:
		r.printf("\n[%s] %s\n", v.Envelope.Type.DisplayName(), v.Envelope.Explanation)
		if v.LastPrompt != "" && (v.Context == proto.ContextResearch || v.Context == proto.ContextYouTube) {
			r.printf("Query: %s\n", v.LastPrompt)
		}
		_ = v.Envelope.Content.Accept(r)
	}
}

func renderChat(r *textRenderer, v *hub.View) {
	if len(v.Transcript) == 0 {
		return
	}
	last := v.Transcript[len(v.Transcript)-1]
	if last.Role != proto.RoleAssistant {
		return
	}
	r.printf("\n%s\n", last.Content)
	if last.Plan == nil {
		return
	}
	p := last.Plan
	r.printf("\nObjective: %s\nComplexity: %s\n", p.Objective, p.EstimatedComplexity)
	if len(p.TechnicalStack) > 0 {
		r.printf("Stack: %s\n", strings.Join(p.TechnicalStack, ", "))
	}
	for i, s := range p.Steps {
		r.printf("  %d. %s (%s)\n     %s\n", i+1, s.Title, s.Agent.DisplayName(), s.Description)
	}
	r.printf("\nType /approve to run the plan, or describe changes to revise it.\n")
}
