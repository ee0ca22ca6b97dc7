package proto

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// kindCollector records which visitor method ran.
type kindCollector struct{ got string }

func (k *kindCollector) VisitSlideDeck(*SlideDeck) error           { k.got = "slides"; return nil }
func (k *kindCollector) VisitWebBuild(*WebBuild) error             { k.got = "web"; return nil }
func (k *kindCollector) VisitVisualDesign(*VisualDesign) error     { k.got = "design"; return nil }
func (k *kindCollector) VisitResearchReport(*ResearchReport) error { k.got = "research"; return nil }
func (k *kindCollector) VisitVideoAnalysis(*VideoAnalysis) error   { k.got = "video"; return nil }
func (k *kindCollector) VisitRoadmap(*Roadmap) error               { k.got = "roadmap"; return nil }

func sampleContents() []Content {
	return []Content{
		&SlideDeck{Slides: []Slide{{Title: "Intro", Content: "Why solar", Points: []string{}}}},
		&WebBuild{HTML: "<h1>Hi</h1>"},
		&VisualDesign{ImageURL: "data:image/png;base64,AAAA", Prompt: "logo"},
		&ResearchReport{Content: "# Findings", Sources: []string{}},
		&VideoAnalysis{Videos: []VideoRecord{}, Analysis: "No videos found."},
		&Roadmap{Root: RoadmapNode{ID: "r", Label: "Root", Skills: []string{}}, Explanation: "e"},
	}
}

func TestEnvelopeJSONByType(t *testing.T) {
	for _, content := range sampleContents() {
		env := NewEnvelope(content, "done")
		if err := env.Validate(); err != nil {
			t.Fatalf("%s: validate: %v", env.Type, err)
		}
		data, err := json.Marshal(env)
		if err != nil {
			t.Fatalf("%s: marshal: %v", env.Type, err)
		}
		var wire map[string]json.RawMessage
		if err := json.Unmarshal(data, &wire); err != nil {
			t.Fatalf("%s: wire: %v", env.Type, err)
		}
		for _, key := range []string{"type", "content", "explanation"} {
			if _, ok := wire[key]; !ok {
				t.Errorf("%s: wire form missing %q: %s", env.Type, key, data)
			}
		}

		var back ResponseEnvelope
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("%s: unmarshal: %v", env.Type, err)
		}
		if back.Type != env.Type || back.Content.Kind() != env.Type {
			t.Errorf("%s: decoded as %s/%s", env.Type, back.Type, back.Content.Kind())
		}
	}
}

func TestEnvelopeVisitorDispatch(t *testing.T) {
	want := []string{"slides", "web", "design", "research", "video", "roadmap"}
	for i, content := range sampleContents() {
		var v kindCollector
		if err := content.Accept(&v); err != nil {
			t.Fatal(err)
		}
		if v.got != want[i] {
			t.Errorf("content %d visited as %q, want %q", i, v.got, want[i])
		}
	}
}

func TestEnvelopeValidateRejectsMismatch(t *testing.T) {
	env := &ResponseEnvelope{Type: AgentWebArchitect, Content: &SlideDeck{Slides: []Slide{{Title: "x"}}}}
	if err := env.Validate(); err == nil || !strings.Contains(err.Error(), "carries") {
		t.Fatalf("expected mismatch error, got %v", err)
	}
	if err := (&ResponseEnvelope{Type: AgentSlideMaster}).Validate(); err == nil {
		t.Fatal("expected error for missing content")
	}
}

func TestEnvelopeValidateRequiredFields(t *testing.T) {
	bad := []Content{
		&SlideDeck{},
		&SlideDeck{Slides: []Slide{{Title: " "}}},
		&WebBuild{},
		&VisualDesign{Prompt: "p"},
		&ResearchReport{},
		&VideoAnalysis{Videos: []VideoRecord{}},
		&Roadmap{Root: RoadmapNode{Label: "no id"}},
		&Roadmap{Root: chain(MaxRoadmapDepth+1, "deep")},
	}
	for _, content := range bad {
		if err := NewEnvelope(content, "").Validate(); err == nil {
			t.Errorf("%T %+v should not validate", content, content)
		}
	}
}

func TestEnvelopeUnmarshalRejectsKindsWithoutContent(t *testing.T) {
	for _, kind := range []AgentKind{AgentOrchestrator, AgentTaskScheduler, "NOPE"} {
		data := `{"type":"` + string(kind) + `","content":{},"explanation":""}`
		var env ResponseEnvelope
		if err := json.Unmarshal([]byte(data), &env); err == nil {
			t.Errorf("%s: expected error", kind)
		}
	}
}

func TestVideoAnalysisDecodesTimestamps(t *testing.T) {
	data := `{"type":"YOUTUBE_RESEARCHER","content":{"videos":[{"id":"v1","title":"T","thumbnail":"https://i/x.jpg",
		"channelTitle":"C","publishedAt":"2024-03-01T10:00:00Z","description":"D"}],"analysis":"A"},"explanation":"Analysis complete."}`
	var env ResponseEnvelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	va, ok := env.Content.(*VideoAnalysis)
	if !ok {
		t.Fatalf("expected *VideoAnalysis, got %T", env.Content)
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !va.Videos[0].PublishedAt.Equal(want) {
		t.Errorf("publishedAt = %v, want %v", va.Videos[0].PublishedAt, want)
	}
}
