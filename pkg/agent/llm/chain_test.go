package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	text  string
	model string
	calls int
}

func (s *stubClient) Generate(_ context.Context, _ Request) (Result, error) {
	s.calls++
	return Result{Text: s.text, Model: s.model}, nil
}

func (s *stubClient) GetModelName() string { return s.model }

func tagMiddleware(tag string) Middleware {
	return func(next LLMClient) LLMClient {
		return WrapClient(
			func(ctx context.Context, req Request) (Result, error) {
				req.Prompt += tag
				res, err := next.Generate(ctx, req)
				res.Text = tag + res.Text
				return res, err
			},
			next.GetModelName,
		)
	}
}

func TestChainOrdering(t *testing.T) {
	var seenPrompt string
	base := WrapClient(
		func(_ context.Context, req Request) (Result, error) {
			seenPrompt = req.Prompt
			return Result{Text: "base"}, nil
		},
		func() string { return "base-model" },
	)

	client := Chain(base, tagMiddleware("1"), tagMiddleware("2"))
	res, err := client.Generate(context.Background(), NewRequest("p", ""))
	require.NoError(t, err)

	assert.Equal(t, "p12", seenPrompt, "first middleware runs outermost")
	assert.Equal(t, "12base", res.Text)
	assert.Equal(t, "base-model", client.GetModelName())
}

func TestChainNoMiddleware(t *testing.T) {
	base := &stubClient{text: "x", model: "m"}
	client := Chain(base)
	assert.Same(t, base, client)
}

func TestRequestValidate(t *testing.T) {
	req := NewRequest("hello", "sys")
	assert.NoError(t, req.Validate())

	assert.Error(t, NewRequest("", "").Validate())

	req.Temperature = 3
	assert.Error(t, req.Validate())

	req = NewRequest("draw", "")
	req.WantImage = true
	req.Schema = String()
	assert.Error(t, req.Validate())
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("  {\"a\":1}  "))
}

func TestResultPayload(t *testing.T) {
	assert.Equal(t, `{"v":2}`, string(Result{Text: "ignored", JSON: []byte(`{"v":2}`)}.Payload()))
	assert.Equal(t, `{"v":3}`, string(Result{Text: "```json\n{\"v\":3}\n```"}.Payload()))
}
