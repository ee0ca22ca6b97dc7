// Package timeout provides timeout middleware for LLM clients.
package timeout

import (
	"context"
	"time"

	"omniagent/pkg/agent/llm"
)

// Middleware bounds every request with a per-call deadline. A non-positive
// duration disables the deadline.
func Middleware(duration time.Duration) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (llm.Result, error) {
				if duration <= 0 {
					return next.Generate(ctx, req)
				}
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()
				return next.Generate(timeoutCtx, req)
			},
			next.GetModelName,
		)
	}
}
