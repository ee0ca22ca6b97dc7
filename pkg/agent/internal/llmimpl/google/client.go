// Package google provides the Gemini adapter for the llm.LLMClient interface.
// It is the only adapter that supports search grounding and inline image output.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"omniagent/pkg/agent/llm"
	"omniagent/pkg/agent/llmerrors"
)

const providerName = "gemini"

// GeminiClient wraps the Google GenAI client to implement llm.LLMClient.
type GeminiClient struct {
	client *genai.Client
	apiKey string
	model  string
	mu     sync.Mutex
}

// NewGeminiClientWithModel creates a raw Gemini client; middleware is applied by the factory.
// The SDK client needs a context, so it is created on first use.
func NewGeminiClientWithModel(apiKey, model string) llm.LLMClient {
	return &GeminiClient{apiKey: apiKey, model: model}
}

func (g *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	if g.apiKey == "" {
		return nil, llmerrors.NewError(llmerrors.ErrorTypeAuth, "Gemini API key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransport, err, "failed to create Gemini client")
	}
	g.client = client
	return client, nil
}

// Generate implements llm.LLMClient.
//
//nolint:gocritic // Request passed by value for interface consistency
func (g *GeminiClient) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	if err := req.Validate(); err != nil {
		return llm.Result{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "invalid request")
	}
	client, err := g.sdk(ctx)
	if err != nil {
		return llm.Result{}, err
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	resp, err := client.Models.GenerateContent(ctx, g.model, contents, buildConfig(req))
	if err != nil {
		return llm.Result{}, classifyError(err)
	}
	return convertResponse(resp, g.model)
}

// GetModelName returns the model name for this client.
func (g *GeminiClient) GetModelName() string {
	return g.model
}

func buildConfig(req llm.Request) *genai.GenerateContentConfig {
	temperature := req.Temperature
	//nolint:gosec // MaxTokens validated at higher layer
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}}
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = convertSchema(req.Schema)
	}
	if req.Grounded {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.WantImage {
		cfg.ResponseModalities = []string{"TEXT", "IMAGE"}
	}
	return cfg
}

func convertSchema(s *llm.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{Description: s.Description}
	switch s.Type {
	case llm.TypeObject:
		out.Type = genai.TypeObject
	case llm.TypeArray:
		out.Type = genai.TypeArray
	case llm.TypeNumber:
		out.Type = genai.TypeNumber
	case llm.TypeInteger:
		out.Type = genai.TypeInteger
	case llm.TypeBoolean:
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}
	if len(s.Enum) > 0 {
		out.Enum = s.Enum
	}
	if s.Items != nil {
		out.Items = convertSchema(s.Items)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = convertSchema(p)
		}
	}
	if len(s.Required) > 0 {
		out.Required = s.Required
	}
	return out
}

// convertResponse extracts text, inline images and grounding citations from the first candidate.
func convertResponse(resp *genai.GenerateContentResponse, model string) (llm.Result, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return llm.Result{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "Gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	result := llm.Result{Model: model}

	var text strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			if part.Text != "" {
				text.WriteString(part.Text)
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				result.Images = append(result.Images, llm.InlineImage{
					MIMEType: part.InlineData.MIMEType,
					Data:     part.InlineData.Data,
				})
			}
		}
	}
	result.Text = text.String()

	if gm := candidate.GroundingMetadata; gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			result.Citations = append(result.Citations, llm.Citation{URI: chunk.Web.URI, Title: chunk.Web.Title})
		}
	}

	if um := resp.UsageMetadata; um != nil {
		result.Usage = llm.Usage{
			PromptTokens:     int(um.PromptTokenCount),
			CompletionTokens: int(um.CandidatesTokenCount),
		}
	}

	if result.Text == "" && len(result.Images) == 0 {
		reason := string(candidate.FinishReason)
		return llm.Result{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, fmt.Sprintf("Gemini returned no content (finish reason %q)", reason))
	}
	return result, nil
}

func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llmerrors.Classify(err, apiErr.Code, providerName)
	}
	return llmerrors.Classify(err, 0, providerName)
}
