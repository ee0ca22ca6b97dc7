// Package logging provides logging middleware for LLM clients.
package logging

import (
	"context"
	"errors"

	"omniagent/pkg/agent/llm"
	"omniagent/pkg/agent/llmerrors"
	"omniagent/pkg/logx"
)

const promptLogChars = 400

// Middleware logs each call under the "llm" debug domain and, when a call
// fails, logs the classified error with a sanitized copy of the prompt.
func Middleware(logger *logx.Logger) llm.Middleware {
	if logger == nil {
		logger = logx.NewLogger("llm")
	}
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (llm.Result, error) {
				ctx = logx.ContextWithComponent(ctx, logger.Component())
				logx.Debug(ctx, "llm", "-> %s schema=%t grounded=%t image=%t prompt=%d chars",
					next.GetModelName(), req.Schema != nil, req.Grounded, req.WantImage, len(req.Prompt))

				res, err := next.Generate(ctx, req)
				if err != nil {
					logFailure(logger, next.GetModelName(), req, err)
					return res, err //nolint:wrapcheck // pass-through
				}

				logx.Debug(ctx, "llm", "<- %s text=%d chars images=%d citations=%d",
					next.GetModelName(), len(res.Text), len(res.Images), len(res.Citations))
				return res, nil
			},
			next.GetModelName,
		)
	}
}

//nolint:gocritic // value semantics match Generate
func logFailure(logger *logx.Logger, model string, req llm.Request, err error) {
	logger.Error("LLM call to %s failed (%s): %v", model, llmerrors.TypeOf(err), err)

	switch llmerrors.TypeOf(err) {
	case llmerrors.ErrorTypeEmptyResponse, llmerrors.ErrorTypeMalformedOutput:
		logger.Error("  prompt: %s", llmerrors.SanitizePrompt(req.Prompt, promptLogChars))
		var llmErr *llmerrors.Error
		if errors.As(err, &llmErr) && llmErr.BodyStub != "" {
			logger.Error("  output: %s", llmErr.BodyStub)
		}
	}
}
