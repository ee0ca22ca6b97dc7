package metrics

import (
	"context"
	"time"

	"omniagent/pkg/agent/llm"
	"omniagent/pkg/agent/llmerrors"
	"omniagent/pkg/config"
	"omniagent/pkg/logx"
	"omniagent/pkg/utils"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// UsageExtractor returns token counts for a completed call.
type UsageExtractor func(req llm.Request, res llm.Result) (promptTokens, completionTokens int)

// DefaultUsageExtractor uses provider-reported usage, estimating with tiktoken
// when the provider reports nothing.
//
//nolint:gocritic // value semantics match Generate
func DefaultUsageExtractor(req llm.Request, res llm.Result) (promptTokens, completionTokens int) {
	if res.Usage.PromptTokens > 0 || res.Usage.CompletionTokens > 0 {
		return res.Usage.PromptTokens, res.Usage.CompletionTokens
	}
	promptTokens = utils.CountTokensSimple(req.SystemInstruction + "\n" + req.Prompt)
	completionTokens = utils.CountTokensSimple(res.Text)
	return promptTokens, completionTokens
}

// Middleware records latency, token usage, cost and error type for each call.
// tier labels the capability tier (text, reasoning, image) the client serves.
func Middleware(recorder Recorder, tier string, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}
	if recorder == nil {
		recorder = Nop()
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (llm.Result, error) {
				start := time.Now()
				model := next.GetModelName()

				res, err := next.Generate(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				var cost float64
				errorType := ""
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, res)
					if info, ok := config.GetModelInfo(model); ok {
						cost = info.CostUSD(promptTokens, completionTokens)
					}
				} else {
					errorType = llmerrors.TypeOf(err).String()
				}

				recorder.ObserveRequest(model, tier, promptTokens, completionTokens, cost, err == nil, errorType, duration)

				if logger != nil {
					status := statusSuccess
					if err != nil {
						status = statusError + ":" + errorType
					}
					logger.Info("LLM call: model=%s tier=%s tokens=%d+%d cost=$%.4f status=%s duration=%dms",
						model, tier, promptTokens, completionTokens, cost, status, duration.Milliseconds())
				}
				return res, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}
