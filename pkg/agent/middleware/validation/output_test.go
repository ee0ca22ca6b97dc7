package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omniagent/pkg/agent/llm"
	"omniagent/pkg/agent/llmerrors"
)

func fixed(res llm.Result) llm.LLMClient {
	return llm.WrapClient(
		func(context.Context, llm.Request) (llm.Result, error) { return res, nil },
		func() string { return "fixed" },
	)
}

func webSchema() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{"html": llm.String(), "css": llm.String()}, "html")
}

func TestMiddlewareFillsJSON(t *testing.T) {
	client := llm.Chain(fixed(llm.Result{Text: "```json\n{\"html\":\"<h1>Hi</h1>\"}\n```"}), Middleware())
	req := llm.NewRequest("p", "")
	req.Schema = webSchema()

	res, err := client.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"html":"<h1>Hi</h1>"}`, string(res.JSON))
}

func TestMiddlewareRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want llmerrors.ErrorType
	}{
		{"blank", "   ", llmerrors.ErrorTypeEmptyResponse},
		{"not json", "Here is your page!", llmerrors.ErrorTypeMalformedOutput},
		{"missing html", `{"css":"body{}"}`, llmerrors.ErrorTypeMalformedOutput},
		{"wrong type", `{"html":42}`, llmerrors.ErrorTypeMalformedOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llm.Chain(fixed(llm.Result{Text: tt.text}), Middleware())
			req := llm.NewRequest("p", "")
			req.Schema = webSchema()
			_, err := client.Generate(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.want, llmerrors.TypeOf(err))
		})
	}
}

func TestMiddlewareFreeText(t *testing.T) {
	client := llm.Chain(fixed(llm.Result{Text: ""}), Middleware())
	_, err := client.Generate(context.Background(), llm.NewRequest("p", ""))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse))

	client = llm.Chain(fixed(llm.Result{Images: []llm.InlineImage{{MIMEType: "image/png", Data: []byte{1}}}}), Middleware())
	res, err := client.Generate(context.Background(), llm.NewRequest("p", ""))
	require.NoError(t, err)
	assert.Len(t, res.Images, 1)
	assert.Nil(t, res.JSON)
}
