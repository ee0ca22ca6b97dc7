package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Content is the agent-specific payload of a ResponseEnvelope. The set of
// implementations is closed: SlideDeck, WebBuild, VisualDesign,
// ResearchReport, VideoAnalysis and Roadmap.
type Content interface {
	// Kind returns the agent kind that produces this variant.
	Kind() AgentKind
	// Accept calls the visitor method for the concrete variant.
	Accept(v ContentVisitor) error
	validate() error
}

// ContentVisitor handles every content variant. Adding a variant adds a
// method here, so every visitor has to handle it.
type ContentVisitor interface {
	VisitSlideDeck(*SlideDeck) error
	VisitWebBuild(*WebBuild) error
	VisitVisualDesign(*VisualDesign) error
	VisitResearchReport(*ResearchReport) error
	VisitVideoAnalysis(*VideoAnalysis) error
	VisitRoadmap(*Roadmap) error
}

// Slide is one slide of a deck.
type Slide struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Points  []string `json:"points"`
}

// SlideDeck is produced by SLIDE_MASTER.
type SlideDeck struct {
	Slides []Slide `json:"slides"`
}

// WebBuild is produced by WEB_ARCHITECT. HTML is model-authored and untrusted.
type WebBuild struct {
	HTML string `json:"html"`
	CSS  string `json:"css,omitempty"`
}

// VisualDesign is produced by VISUAL_DESIGNER. ImageURL is usually a data URI.
type VisualDesign struct {
	ImageURL string `json:"imageUrl"`
	Prompt   string `json:"prompt"`
}

// ResearchReport is produced by RESEARCHER.
type ResearchReport struct {
	Content string   `json:"content"`
	Sources []string `json:"sources"`
}

// VideoAnalysis is produced by YOUTUBE_RESEARCHER.
type VideoAnalysis struct {
	Videos   []VideoRecord `json:"videos"`
	Analysis string        `json:"analysis"`
}

// Roadmap is produced by ROADMAP_STRATEGIST.
type Roadmap struct {
	Root        RoadmapNode `json:"roadmap"`
	Explanation string      `json:"explanation"`
}

func (*SlideDeck) Kind() AgentKind      { return AgentSlideMaster }
func (*WebBuild) Kind() AgentKind       { return AgentWebArchitect }
func (*VisualDesign) Kind() AgentKind   { return AgentVisualDesigner }
func (*ResearchReport) Kind() AgentKind { return AgentResearcher }
func (*VideoAnalysis) Kind() AgentKind  { return AgentYouTubeResearcher }
func (*Roadmap) Kind() AgentKind        { return AgentRoadmapStrategist }

func (c *SlideDeck) Accept(v ContentVisitor) error      { return v.VisitSlideDeck(c) }
func (c *WebBuild) Accept(v ContentVisitor) error       { return v.VisitWebBuild(c) }
func (c *VisualDesign) Accept(v ContentVisitor) error   { return v.VisitVisualDesign(c) }
func (c *ResearchReport) Accept(v ContentVisitor) error { return v.VisitResearchReport(c) }
func (c *VideoAnalysis) Accept(v ContentVisitor) error  { return v.VisitVideoAnalysis(c) }
func (c *Roadmap) Accept(v ContentVisitor) error        { return v.VisitRoadmap(c) }

func (c *SlideDeck) validate() error {
	if len(c.Slides) == 0 {
		return errors.New("slides must not be empty")
	}
	for i, s := range c.Slides {
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("slides[%d].title is required", i)
		}
	}
	return nil
}

func (c *WebBuild) validate() error {
	if strings.TrimSpace(c.HTML) == "" {
		return errors.New("html is required")
	}
	return nil
}

func (c *VisualDesign) validate() error {
	if c.ImageURL == "" {
		return errors.New("imageUrl is required")
	}
	return nil
}

func (c *ResearchReport) validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return errors.New("content is required")
	}
	return nil
}

func (c *VideoAnalysis) validate() error {
	if strings.TrimSpace(c.Analysis) == "" {
		return errors.New("analysis is required")
	}
	for i, v := range c.Videos {
		if v.ID == "" {
			return fmt.Errorf("videos[%d].id is required", i)
		}
	}
	return nil
}

func (c *Roadmap) validate() error {
	if d := c.Root.Depth(); d > MaxRoadmapDepth {
		return fmt.Errorf("roadmap depth %d exceeds %d", d, MaxRoadmapDepth)
	}
	return c.Root.Validate()
}

// ResponseEnvelope is the uniform result of one agent dispatch.
type ResponseEnvelope struct {
	Type        AgentKind
	Content     Content
	Explanation string
}

// NewEnvelope builds an envelope whose Type follows the content variant.
func NewEnvelope(content Content, explanation string) *ResponseEnvelope {
	return &ResponseEnvelope{Type: content.Kind(), Content: content, Explanation: explanation}
}

// Validate checks that the content variant agrees with Type and that the
// variant's required fields are present.
func (e *ResponseEnvelope) Validate() error {
	if e == nil {
		return errors.New("envelope is nil")
	}
	if e.Content == nil {
		return fmt.Errorf("%s envelope has no content", e.Type)
	}
	if e.Content.Kind() != e.Type {
		return fmt.Errorf("envelope type %s carries %s content", e.Type, e.Content.Kind())
	}
	if err := e.Content.validate(); err != nil {
		return fmt.Errorf("%s content: %w", e.Type, err)
	}
	return nil
}

type envelopeWire struct {
	Type        AgentKind       `json:"type"`
	Content     json.RawMessage `json:"content"`
	Explanation string          `json:"explanation"`
}

// MarshalJSON encodes the envelope as {type, content, explanation}.
func (e ResponseEnvelope) MarshalJSON() ([]byte, error) {
	if e.Content == nil {
		return nil, fmt.Errorf("cannot marshal %s envelope without content", e.Type)
	}
	raw, err := json.Marshal(e.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s content: %w", e.Type, err)
	}
	return json.Marshal(envelopeWire{Type: e.Type, Content: raw, Explanation: e.Explanation})
}

// UnmarshalJSON decodes content according to the type discriminator.
func (e *ResponseEnvelope) UnmarshalJSON(data []byte) error {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	content, err := NewContent(wire.Type)
	if err != nil {
		return err
	}
	if len(wire.Content) > 0 {
		if err := json.Unmarshal(wire.Content, content); err != nil {
			return fmt.Errorf("failed to unmarshal %s content: %w", wire.Type, err)
		}
	}
	e.Type = wire.Type
	e.Content = content
	e.Explanation = wire.Explanation
	return nil
}

// NewContent returns an empty content value for kind. Kinds without a content
// variant return an error.
func NewContent(kind AgentKind) (Content, error) {
	switch kind {
	case AgentSlideMaster:
		return &SlideDeck{}, nil
	case AgentWebArchitect:
		return &WebBuild{}, nil
	case AgentVisualDesigner:
		return &VisualDesign{}, nil
	case AgentResearcher:
		return &ResearchReport{}, nil
	case AgentYouTubeResearcher:
		return &VideoAnalysis{}, nil
	case AgentRoadmapStrategist:
		return &Roadmap{}, nil
	default:
		return nil, fmt.Errorf("agent kind %q has no content variant", kind)
	}
}
