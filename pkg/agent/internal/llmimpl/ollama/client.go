// Package ollama provides the Ollama adapter for the llm.LLMClient interface.
// Ollama is a local LLM runtime that allows running open-source models.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"omniagent/pkg/agent/llm"
	"omniagent/pkg/agent/llmerrors"
	"omniagent/pkg/config"
)

const providerName = "ollama"

// Client wraps the Ollama API client to implement llm.LLMClient.
type Client struct {
	client  *api.Client
	model   string
	hostURL string
}

// NewOllamaClientWithModel creates a new Ollama client. hostURL should be the
// Ollama server URL (e.g. "http://localhost:11434"); model may carry an
// "ollama/" or "ollama:" prefix.
func NewOllamaClientWithModel(hostURL, model string) llm.LLMClient {
	parsedURL, err := url.Parse(hostURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		parsedURL, _ = url.Parse("http://localhost:11434")
	}

	return &Client{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		model:   config.OllamaModelName(model),
		hostURL: parsedURL.String(),
	}
}

// Generate implements llm.LLMClient. Schemas are passed through Ollama's
// structured-output format parameter.
//
//nolint:gocritic // Request passed by value for interface consistency
func (o *Client) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	if req.Grounded || req.WantImage {
		return llm.Result{}, llmerrors.NewError(llmerrors.ErrorTypeUnsupported, "Ollama models do not support search grounding or image output")
	}
	if err := req.Validate(); err != nil {
		return llm.Result{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "invalid request")
	}

	chatReq, err := buildChatRequest(o.model, req)
	if err != nil {
		return llm.Result{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "failed to encode schema")
	}

	var response api.ChatResponse
	err = o.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.Result{}, classifyError(err)
	}

	text := strings.TrimSpace(response.Message.Content)
	if text == "" {
		return llm.Result{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, fmt.Sprintf("Ollama returned no content (done reason %q)", response.DoneReason))
	}
	return llm.Result{
		Text:  text,
		Model: o.model,
		Usage: llm.Usage{
			PromptTokens:     response.PromptEvalCount,
			CompletionTokens: response.EvalCount,
		},
	}, nil
}

// GetModelName returns the model name for this client.
func (o *Client) GetModelName() string {
	return o.model
}

//nolint:gocritic // Request passed by value for interface consistency
func buildChatRequest(model string, req llm.Request) (*api.ChatRequest, error) {
	messages := make([]api.Message, 0, 2)
	if req.SystemInstruction != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.SystemInstruction})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	stream := false
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}
	if req.Schema != nil {
		format, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, err
		}
		chatReq.Format = format
	}
	return chatReq, nil
}

// classifyError converts Ollama errors to our error types.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransport, err, "Ollama server not reachable")
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "Ollama model not found")
	default:
		return llmerrors.Classify(err, 0, providerName)
	}
}
