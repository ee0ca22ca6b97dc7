package proto

import (
	"fmt"
	"time"
)

// AppContext is the active view of the hub. Exactly one is active at a time.
type AppContext string

// Application contexts.
const (
	ContextHub      AppContext = "HUB"
	ContextLoading  AppContext = "LOADING"
	ContextChat     AppContext = "CHAT"
	ContextSlides   AppContext = "SLIDES"
	ContextWeb      AppContext = "WEB"
	ContextDesign   AppContext = "DESIGN"
	ContextResearch AppContext = "RESEARCH"
	ContextYouTube  AppContext = "YOUTUBE"
	ContextRoadmap  AppContext = "ROADMAP"
)

var workspaces = map[AgentKind]AppContext{
	AgentSlideMaster:       ContextSlides,
	AgentWebArchitect:      ContextWeb,
	AgentVisualDesigner:    ContextDesign,
	AgentResearcher:        ContextResearch,
	AgentYouTubeResearcher: ContextYouTube,
	AgentRoadmapStrategist: ContextRoadmap,
}

// WorkspaceFor returns the workspace context that renders kind's results.
func WorkspaceFor(kind AgentKind) (AppContext, bool) {
	ctx, ok := workspaces[kind]
	return ctx, ok
}

// ExpectedKind returns the agent kind whose envelope a workspace renders.
func ExpectedKind(ctx AppContext) (AgentKind, bool) {
	for kind, ws := range workspaces {
		if ws == ctx {
			return kind, true
		}
	}
	return "", false
}

// IsWorkspace reports whether ctx is a per-agent workspace.
func (c AppContext) IsWorkspace() bool {
	_, ok := ExpectedKind(c)
	return ok
}

// String returns the context name.
func (c AppContext) String() string {
	return string(c)
}

// ParseAppContext parses an exact context name.
func ParseAppContext(s string) (AppContext, error) {
	switch c := AppContext(s); c {
	case ContextHub, ContextLoading, ContextChat, ContextSlides, ContextWeb,
		ContextDesign, ContextResearch, ContextYouTube, ContextRoadmap:
		return c, nil
	default:
		return "", fmt.Errorf("unknown app context: %q", s)
	}
}

// Role is the author of a transcript message.
type Role string

// Transcript roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Prompt records the request text an
// attached plan was generated from.
type Message struct {
	Role    Role           `json:"role"`
	Content string         `json:"content"`
	Plan    *ExecutionPlan `json:"plan,omitempty"`
	Prompt  string         `json:"prompt,omitempty"`
}

// HasPlan reports whether the message carries a plan.
func (m Message) HasPlan() bool {
	return m.Plan != nil
}

// Clone returns a copy that shares nothing with m.
func (m Message) Clone() Message {
	m.Plan = m.Plan.Clone()
	return m
}

// VideoRecord is one video search hit.
type VideoRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Thumbnail    string    `json:"thumbnail"`
	ChannelTitle string    `json:"channelTitle"`
	PublishedAt  time.Time `json:"publishedAt"`
	Description  string    `json:"description"`
}
