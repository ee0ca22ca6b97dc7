// Package openaiofficial provides the OpenAI Responses API adapter for the llm.LLMClient interface.
package openaiofficial

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"omniagent/pkg/agent/llm"
	"omniagent/pkg/agent/llmerrors"
	"omniagent/pkg/config"
)

const (
	providerName = "openai"
	schemaName   = "omniagent_output"
)

// OfficialClient wraps the official OpenAI Go SDK to implement llm.LLMClient.
//
//nolint:govet // Simple client struct, logical grouping preferred
type OfficialClient struct {
	client openai.Client
	model  string
}

// NewOfficialClientWithModel creates a raw OpenAI client; middleware is applied by the factory.
// SDK-level retries are disabled: a failed call surfaces immediately.
func NewOfficialClientWithModel(apiKey, model string, opts ...option.RequestOption) llm.LLMClient {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &OfficialClient{
		client: openai.NewClient(all...),
		model:  model,
	}
}

// Generate implements llm.LLMClient using the Responses API with native
// json_schema structured output when the request carries a schema.
//
//nolint:gocritic // Request passed by value for interface consistency
func (o *OfficialClient) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	if req.Grounded || req.WantImage {
		return llm.Result{}, llmerrors.NewError(llmerrors.ErrorTypeUnsupported, "OpenAI adapter does not support search grounding or image output")
	}
	if err := req.Validate(); err != nil {
		return llm.Result{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "invalid request")
	}

	resp, err := o.client.Responses.New(ctx, buildParams(o.model, req))
	if err != nil {
		return llm.Result{}, classifyError(err)
	}
	if resp == nil {
		return llm.Result{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	text := resp.OutputText()
	if text == "" {
		return llm.Result{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "OpenAI response contained no output text")
	}
	return llm.Result{
		Text:  text,
		Model: resp.Model,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// GetModelName returns the model name for this client.
func (o *OfficialClient) GetModelName() string {
	return o.model
}

//nolint:gocritic // Request passed by value for interface consistency
func buildParams(model string, req llm.Request) responses.ResponseNewParams {
	// Cap MaxTokens to the model's registered limit to prevent API errors.
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	if info, ok := config.GetModelInfo(model); ok && info.MaxOutputTokens > 0 && maxTokens > info.MaxOutputTokens {
		maxTokens = info.MaxOutputTokens
	}

	params := responses.ResponseNewParams{
		Model:           model,
		MaxOutputTokens: openai.Int(int64(maxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Prompt)},
	}
	if req.SystemInstruction != "" {
		params.Instructions = openai.String(req.SystemInstruction)
	}
	// Reasoning models reject sampling parameters.
	if !isReasoningModel(model) {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	if req.Schema != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   schemaName,
					Schema: req.Schema.ToJSONSchema(),
					Strict: openai.Bool(false),
				},
			},
		}
	}
	return params
}

func isReasoningModel(model string) bool {
	return strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5")
}

func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llmerrors.Classify(err, apiErr.StatusCode, providerName)
	}
	return llmerrors.Classify(err, 0, providerName)
}
