// Package anthropic provides the Claude adapter for the llm.LLMClient interface.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"omniagent/pkg/agent/llm"
	"omniagent/pkg/agent/llmerrors"
)

const providerName = "anthropic"

// ClaudeClient wraps the Anthropic API client to implement llm.LLMClient.
//
//nolint:govet // Simple client struct, logical grouping preferred
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClientWithModel creates a raw Claude client; middleware is applied by the factory.
// SDK-level retries are disabled: a failed call surfaces immediately.
func NewClaudeClientWithModel(apiKey, model string, opts ...option.RequestOption) llm.LLMClient {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &ClaudeClient{
		client: anthropic.NewClient(all...),
		model:  anthropic.Model(model),
	}
}

// Generate implements llm.LLMClient. Grounding and image output are not available.
// Structured output is requested through the system prompt and checked by the
// validation middleware.
//
//nolint:gocritic // Request passed by value for interface consistency
func (c *ClaudeClient) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	if req.Grounded || req.WantImage {
		return llm.Result{}, llmerrors.NewError(llmerrors.ErrorTypeUnsupported, "Claude models do not support search grounding or image output")
	}
	if err := req.Validate(); err != nil {
		return llm.Result{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "invalid request")
	}

	resp, err := c.client.Messages.New(ctx, buildParams(c.model, req))
	if err != nil {
		return llm.Result{}, classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.Result{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty or nil response from Claude API")
	}

	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if text.Len() == 0 {
		return llm.Result{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "Claude response contained no text blocks")
	}

	return llm.Result{
		Text:  text.String(),
		Model: string(resp.Model),
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// GetModelName returns the model name for this client.
func (c *ClaudeClient) GetModelName() string {
	return string(c.model)
}

//nolint:gocritic // Request passed by value for interface consistency
func buildParams(model anthropic.Model, req llm.Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       model,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(float64(min(req.Temperature, 1))),
	}
	if system := llm.AppendJSONInstruction(req.SystemInstruction, req.Schema); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llmerrors.Classify(err, apiErr.StatusCode, providerName)
	}
	return llmerrors.Classify(err, 0, providerName)
}
