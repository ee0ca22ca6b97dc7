// Package proto defines the data contracts shared by the planner, the dispatch
// resolver and the hub state machine: agent kinds, execution plans, the
// response envelope with its content variants, and the application contexts.
package proto

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// AgentKind identifies a specialized request handler.
type AgentKind string

// Agent kinds. Wire names are the upper snake case identifiers.
const (
	AgentOrchestrator      AgentKind = "ORCHESTRATOR"
	AgentSlideMaster       AgentKind = "SLIDE_MASTER"
	AgentWebArchitect      AgentKind = "WEB_ARCHITECT"
	AgentVisualDesigner    AgentKind = "VISUAL_DESIGNER"
	AgentResearcher        AgentKind = "RESEARCHER"
	AgentYouTubeResearcher AgentKind = "YOUTUBE_RESEARCHER"
	AgentTaskScheduler     AgentKind = "TASK_SCHEDULER"
	AgentRoadmapStrategist AgentKind = "ROADMAP_STRATEGIST"
)

// AllAgentKinds lists every agent kind in catalog order.
func AllAgentKinds() []AgentKind {
	return []AgentKind{
		AgentOrchestrator,
		AgentSlideMaster,
		AgentWebArchitect,
		AgentVisualDesigner,
		AgentResearcher,
		AgentYouTubeResearcher,
		AgentTaskScheduler,
		AgentRoadmapStrategist,
	}
}

// String returns the wire name.
func (k AgentKind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known agent kinds.
func (k AgentKind) Valid() bool {
	_, ok := ValidateAgentKind(string(k))
	return ok
}

// Ptr returns a pointer to a copy of k, for optional-kind parameters.
func (k AgentKind) Ptr() *AgentKind {
	return &k
}

// ValidateAgentKind checks an exact wire name.
func ValidateAgentKind(s string) (AgentKind, bool) {
	switch AgentKind(s) {
	case AgentOrchestrator, AgentSlideMaster, AgentWebArchitect, AgentVisualDesigner,
		AgentResearcher, AgentYouTubeResearcher, AgentTaskScheduler, AgentRoadmapStrategist:
		return AgentKind(s), true
	default:
		return "", false
	}
}

// ParseAgentKind parses an agent kind leniently. Case, spaces, hyphens and
// underscores are ignored, so "slide master", "SlideMaster" and
// "slide-master" all resolve to SLIDE_MASTER.
func ParseAgentKind(s string) (AgentKind, error) {
	if kind, ok := ValidateAgentKind(s); ok {
		return kind, nil
	}
	key := squash(s)
	if key != "" {
		for _, kind := range AllAgentKinds() {
			if squash(string(kind)) == key {
				return kind, nil
			}
		}
	}
	return "", fmt.Errorf("unknown agent kind: %q", s)
}

func squash(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// UnmarshalJSON accepts any spelling ParseAgentKind accepts. Unknown names are
// kept verbatim so that plan validation can report them with context.
func (k *AgentKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("agent kind must be a string: %w", err)
	}
	if parsed, err := ParseAgentKind(s); err == nil {
		*k = parsed
		return nil
	}
	*k = AgentKind(s)
	return nil
}

// AgentInfo describes an agent for hub presentation.
type AgentInfo struct {
	Kind        AgentKind `json:"kind"`
	Name        string    `json:"name"`
	ChipLabel   string    `json:"chipLabel,omitempty"`
	Description string    `json:"description"`
	// Featured agents are shown as primary chips; the rest sit in the utility menu.
	Featured  bool `json:"featured"`
	Supported bool `json:"supported"`
}

// Catalog returns the agent catalog in display order.
func Catalog() []AgentInfo {
	return []AgentInfo{
		{Kind: AgentSlideMaster, Name: "Slide Master", ChipLabel: "Create slides", Description: "Presentations and pitch decks", Featured: true, Supported: true},
		{Kind: AgentWebArchitect, Name: "Web Architect", ChipLabel: "Build website", Description: "Websites and front-end code", Featured: true, Supported: true},
		{Kind: AgentYouTubeResearcher, Name: "YouTube Researcher", ChipLabel: "Video Research", Description: "Video search with market analysis", Featured: true, Supported: true},
		{Kind: AgentRoadmapStrategist, Name: "Roadmap Strategist", ChipLabel: "Career Roadmap", Description: "Career paths, learning roadmaps and long-term plans", Featured: true, Supported: true},
		{Kind: AgentResearcher, Name: "Researcher", ChipLabel: "Deep Research", Description: "Web-grounded research with sources", Supported: true},
		{Kind: AgentVisualDesigner, Name: "Visual Designer", ChipLabel: "Professional Design", Description: "Images and UI design", Supported: true},
		{Kind: AgentTaskScheduler, Name: "Task Scheduler", ChipLabel: "Schedule Task", Description: "Task scheduling (not yet available)"},
		{Kind: AgentOrchestrator, Name: "Orchestrator", Description: "General orchestration (not yet available)"},
	}
}

// DisplayName returns the catalog name for k, or the wire name if k is unknown.
func (k AgentKind) DisplayName() string {
	for _, info := range Catalog() {
		if info.Kind == k {
			return info.Name
		}
	}
	return string(k)
}
