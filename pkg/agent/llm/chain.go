package llm

import "context"

// Middleware wraps an LLMClient with additional behavior.
// Middleware functions are composed using Chain() to create a processing pipeline.
type Middleware func(next LLMClient) LLMClient

type clientFunc struct {
	generate  func(context.Context, Request) (Result, error)
	modelName func() string
}

func (f clientFunc) Generate(ctx context.Context, req Request) (Result, error) {
	return f.generate(ctx, req)
}

func (f clientFunc) GetModelName() string {
	return f.modelName()
}

// WrapClient creates an LLMClient from plain functions. Middleware implementations use it.
func WrapClient(generate func(context.Context, Request) (Result, error), modelName func() string) LLMClient {
	return clientFunc{generate: generate, modelName: modelName}
}

// Chain composes multiple middlewares around a base LLMClient.
// Middlewares are applied in order, with earlier middlewares being outermost:
//
//	Chain(client, mw1, mw2, mw3) => mw1 -> mw2 -> mw3 -> client
func Chain(base LLMClient, middlewares ...Middleware) LLMClient {
	client := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		client = middlewares[i](client)
	}
	return client
}
