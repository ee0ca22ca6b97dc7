// Package llm provides the provider-neutral model client contract used by planning and agent dispatch.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// TemperatureDefault is used when a request leaves Temperature unset.
	TemperatureDefault = 0.7

	// DefaultMaxTokens caps output when a request leaves MaxTokens unset.
	DefaultMaxTokens = 8192
)

// Request is a single-turn generation request.
//
//nolint:govet // fieldalignment: value semantics preferred over pointer indirection
type Request struct {
	Prompt            string
	SystemInstruction string
	// Schema, when set, asks for JSON output matching it. Result.JSON carries the validated payload.
	Schema *Schema
	// Grounded enables web-search grounding. Only the google provider supports it.
	Grounded bool
	// WantImage requests inline image output. Only the google provider supports it.
	WantImage   bool
	MaxTokens   int
	Temperature float32
}

// NewRequest builds a request with default generation settings.
func NewRequest(prompt, systemInstruction string) Request {
	return Request{
		Prompt:            prompt,
		SystemInstruction: systemInstruction,
		MaxTokens:         DefaultMaxTokens,
		Temperature:       TemperatureDefault,
	}
}

// Citation is a grounding source attached to a response.
type Citation struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}

// InlineImage is binary image output returned by an image-capable model.
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// Usage reports token counts for a call. Providers that do not report usage leave it zero.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Result is the outcome of a generation request.
//
//nolint:govet // fieldalignment: value semantics preferred over pointer indirection
type Result struct {
	Text      string
	JSON      json.RawMessage // set when the request carried a Schema and validation passed
	Citations []Citation
	Images    []InlineImage
	Model     string
	Usage     Usage
}

// LLMClient is implemented by every model provider adapter.
type LLMClient interface { //nolint:revive // package-qualified name kept for readability at call sites
	// Generate performs one request. Failures are *llmerrors.Error values.
	Generate(ctx context.Context, req Request) (Result, error)

	// GetModelName returns the model this client talks to.
	GetModelName() string
}

// Validate checks request invariants shared by all providers.
func (r Request) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	if r.WantImage && r.Schema != nil {
		return fmt.Errorf("image output cannot be combined with a JSON schema")
	}
	return nil
}

// Payload returns the structured JSON of a result: the validated JSON when
// present, otherwise the text with any markdown code fence removed.
//
//nolint:gocritic // value receiver keeps Result a plain value type
func (r Result) Payload() []byte {
	if len(r.JSON) > 0 {
		return r.JSON
	}
	return []byte(StripCodeFence(r.Text))
}

// StripCodeFence removes a surrounding markdown code fence (``` or ```json) and whitespace.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
