package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planLikeSchema() *Schema {
	return Object(map[string]*Schema{
		"objective":  String(),
		"complexity": Enum("LOW", "MEDIUM", "HIGH"),
		"steps": ArrayOf(Object(map[string]*Schema{
			"id":    String(),
			"agent": String(),
		}, "id", "agent")),
		"score": {Type: TypeInteger},
		"ok":    {Type: TypeBoolean},
	}, "objective", "complexity", "steps")
}

func TestSchemaValidateJSON(t *testing.T) {
	s := planLikeSchema()

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"valid", `{"objective":"o","complexity":"LOW","steps":[{"id":"1","agent":"RESEARCHER"}],"extra":true}`, ""},
		{"not json", `{"objective":`, "invalid JSON"},
		{"missing required", `{"objective":"o","steps":[]}`, `missing required property "complexity"`},
		{"null required", `{"objective":null,"complexity":"LOW","steps":[]}`, `missing required property "objective"`},
		{"bad enum", `{"objective":"o","complexity":"EPIC","steps":[]}`, "not one of"},
		{"nested missing", `{"objective":"o","complexity":"LOW","steps":[{"id":"1"}]}`, `$.steps[0]: missing required property "agent"`},
		{"wrong type", `{"objective":5,"complexity":"LOW","steps":[]}`, "$.objective: expected string"},
		{"non-integer", `{"objective":"o","complexity":"LOW","steps":[],"score":1.5}`, "$.score: expected integer"},
		{"array root", `[]`, "$: expected object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateJSON([]byte(tt.input))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchemaToJSONSchema(t *testing.T) {
	doc := planLikeSchema().ToJSONSchema()
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []string{"objective", "complexity", "steps"}, doc["required"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	complexity, ok := props["complexity"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"LOW", "MEDIUM", "HIGH"}, complexity["enum"])

	raw, err := json.Marshal(planLikeSchema())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"items":{`)
}

func TestAppendJSONInstruction(t *testing.T) {
	assert.Equal(t, "sys", AppendJSONInstruction("sys", nil))

	got := AppendJSONInstruction("You are a Web Architect.", Object(map[string]*Schema{"html": String()}, "html"))
	assert.Contains(t, got, "You are a Web Architect.\n\nRespond with a single JSON value")
	assert.Contains(t, got, `"required":["html"]`)

	assert.NotContains(t, AppendJSONInstruction("", String()), "\n\n")
}
