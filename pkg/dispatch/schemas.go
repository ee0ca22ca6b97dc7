package dispatch

import (
	"omniagent/pkg/agent/llm"
	"omniagent/pkg/proto"
)

// SlideDeckSchema is the output contract for SLIDE_MASTER.
func SlideDeckSchema() *llm.Schema {
	slide := llm.Object(map[string]*llm.Schema{
		"title":   llm.String(),
		"content": llm.String(),
		"points":  llm.ArrayOf(llm.String()),
	}, "title", "content", "points")
	return llm.Object(map[string]*llm.Schema{
		"slides":      llm.ArrayOf(slide),
		"explanation": llm.String(),
	}, "slides", "explanation")
}

// WebBuildSchema is the output contract for WEB_ARCHITECT.
func WebBuildSchema() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"html":        llm.String(),
		"css":         llm.String(),
		"explanation": llm.String(),
	}, "html")
}

// RoadmapSchema is the output contract for ROADMAP_STRATEGIST. The node
// schema nests children down to proto.MaxRoadmapDepth levels and no further.
func RoadmapSchema() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"roadmap":     roadmapNodeSchema(1),
		"explanation": llm.String(),
	}, "roadmap", "explanation")
}

func roadmapNodeSchema(level int) *llm.Schema {
	props := map[string]*llm.Schema{
		"id":          llm.String(),
		"label":       llm.String(),
		"description": llm.String(),
		"duration":    llm.String(),
		"skills":      llm.ArrayOf(llm.String()),
	}
	if level < proto.MaxRoadmapDepth {
		props["children"] = llm.ArrayOf(roadmapNodeSchema(level + 1))
	}
	return llm.Object(props, "id", "label", "description", "duration", "skills")
}
