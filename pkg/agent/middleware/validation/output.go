// Package validation provides response validation middleware for LLM clients.
package validation

import (
	"context"
	"encoding/json"
	"strings"

	"omniagent/pkg/agent/llm"
	"omniagent/pkg/agent/llmerrors"
	"omniagent/pkg/logx"
)

// Middleware checks every result before it reaches the caller:
//   - schema requests must yield JSON matching the schema; Result.JSON is filled in
//   - other requests must yield text or at least one image
//
// Failures are ErrorTypeEmptyResponse or ErrorTypeMalformedOutput. Nothing is retried.
func Middleware() llm.Middleware {
	logger := logx.NewLogger("output-validator")
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (llm.Result, error) {
				res, err := next.Generate(ctx, req)
				if err != nil {
					return res, err //nolint:wrapcheck // pass-through
				}
				if err := check(req, &res); err != nil {
					logger.Warn("Rejected output from %s: %v", next.GetModelName(), err)
					return llm.Result{}, err
				}
				return res, nil
			},
			next.GetModelName,
		)
	}
}

//nolint:gocritic // Request passed by value for symmetry with Generate
func check(req llm.Request, res *llm.Result) error {
	if req.Schema == nil {
		if strings.TrimSpace(res.Text) == "" && len(res.Images) == 0 {
			return llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "model returned no text or image")
		}
		return nil
	}

	payload := llm.StripCodeFence(res.Text)
	if payload == "" {
		return llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "model returned no JSON payload")
	}
	if err := req.Schema.ValidateJSON([]byte(payload)); err != nil {
		return llmerrors.NewMalformedOutputError(err, payload)
	}
	res.JSON = json.RawMessage(payload)
	return nil
}
