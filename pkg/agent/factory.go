// Package agent builds the model clients used by planning and dispatch: one
// client per capability tier, each wrapped in the standard middleware chain.
package agent

import (
	"context"
	"fmt"
	"time"

	"omniagent/pkg/agent/internal/llmimpl/anthropic"
	"omniagent/pkg/agent/internal/llmimpl/google"
	"omniagent/pkg/agent/internal/llmimpl/ollama"
	"omniagent/pkg/agent/internal/llmimpl/openaiofficial"
	"omniagent/pkg/agent/llm"
	"omniagent/pkg/agent/llmerrors"
	"omniagent/pkg/agent/middleware/logging"
	"omniagent/pkg/agent/middleware/metrics"
	"omniagent/pkg/agent/middleware/resilience/timeout"
	"omniagent/pkg/agent/middleware/validation"
	"omniagent/pkg/config"
	"omniagent/pkg/logx"
)

// Tier is a model capability tier.
type Tier string

// Capability tiers.
const (
	TierText      Tier = "text"
	TierReasoning Tier = "reasoning"
	TierImage     Tier = "image"
)

// Clients holds one client per tier.
type Clients struct {
	Text      llm.LLMClient
	Reasoning llm.LLMClient
	Image     llm.LLMClient
}

// For returns the client for tier.
func (c *Clients) For(tier Tier) llm.LLMClient {
	switch tier {
	case TierReasoning:
		return c.Reasoning
	case TierImage:
		return c.Image
	default:
		return c.Text
	}
}

// LLMClientFactory creates LLM clients with properly configured middleware chains.
type LLMClientFactory struct {
	config          config.Config
	metricsRecorder metrics.Recorder
	logger          *logx.Logger
}

// NewLLMClientFactory creates a factory. A nil recorder disables metrics.
func NewLLMClientFactory(cfg config.Config, recorder metrics.Recorder) *LLMClientFactory {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &LLMClientFactory{
		config:          cfg,
		metricsRecorder: recorder,
		logger:          logx.NewLogger("llm-factory"),
	}
}

// ModelFor returns the configured model name for tier.
func (f *LLMClientFactory) ModelFor(tier Tier) string {
	switch tier {
	case TierReasoning:
		return f.config.Models.Reasoning
	case TierImage:
		return f.config.Models.Image
	default:
		return f.config.Models.Text
	}
}

// CreateClients creates clients for all three tiers.
func (f *LLMClientFactory) CreateClients() (*Clients, error) {
	clients := &Clients{}
	for _, tier := range []Tier{TierText, TierReasoning, TierImage} {
		client, err := f.CreateClient(tier)
		if err != nil {
			return nil, err
		}
		switch tier {
		case TierText:
			clients.Text = client
		case TierReasoning:
			clients.Reasoning = client
		case TierImage:
			clients.Image = client
		}
	}
	return clients, nil
}

// CreateClient creates the client for tier with the full middleware chain.
// A missing credential does not fail construction: the returned client reports
// an auth error on every call so the hub can surface it to the user.
func (f *LLMClientFactory) CreateClient(tier Tier) (llm.LLMClient, error) {
	modelName := f.ModelFor(tier)
	provider, err := config.GetModelProvider(modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to determine provider for model %s: %w", modelName, err)
	}

	var rawClient llm.LLMClient
	apiKey, keyErr := config.GetAPIKey(provider)
	if keyErr != nil {
		f.logger.Warn("No credential for %s (%s tier): %v", provider, tier, keyErr)
		rawClient = unavailableClient(modelName, keyErr)
	} else {
		rawClient, err = newRawClient(provider, apiKey, modelName)
		if err != nil {
			return nil, err
		}
	}

	return f.wrap(rawClient, tier), nil
}

func newRawClient(provider, apiKey, modelName string) (llm.LLMClient, error) {
	switch provider {
	case config.ProviderGoogle:
		return google.NewGeminiClientWithModel(apiKey, modelName), nil
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClientWithModel(apiKey, modelName), nil
	case config.ProviderOpenAI:
		return openaiofficial.NewOfficialClientWithModel(apiKey, modelName), nil
	case config.ProviderOllama:
		return ollama.NewOllamaClientWithModel(apiKey, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// wrap builds the chain: Logging -> Metrics -> Validation -> Timeout -> raw client.
func (f *LLMClientFactory) wrap(raw llm.LLMClient, tier Tier) llm.LLMClient {
	requestTimeout := time.Duration(f.config.LLM.RequestTimeoutSec) * time.Second
	return llm.Chain(raw,
		logging.Middleware(logx.NewLogger("llm-"+string(tier))),
		metrics.Middleware(f.metricsRecorder, string(tier), nil, f.logger),
		validation.Middleware(),
		timeout.Middleware(requestTimeout),
	)
}

func unavailableClient(model string, cause error) llm.LLMClient {
	return llm.WrapClient(
		func(context.Context, llm.Request) (llm.Result, error) {
			return llm.Result{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, cause, "credential not configured")
		},
		func() string { return model },
	)
}
