package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ValidProviders lists the provider names accepted by NewClientForProvider.
var ValidProviders = []string{ProviderOpenAI, ProviderAnthropic}

// IsValidProvider reports whether name is a supported provider.
func IsValidProvider(name string) bool {
	for _, p := range ValidProviders {
		if p == name {
			return true
		}
	}
	return false
}

// ProviderConfig selects and configures the completion provider.
type ProviderConfig struct {
	Provider          string
	Endpoint          string
	Model             string
	APIKey            string
	MaxTokens         int
	BreakerThreshold  int
	BreakerResetAfter time.Duration
}

// NewClientForProvider creates the provider's client wrapped in a circuit breaker.
// An empty provider means OpenAI-compatible.
func NewClientForProvider(cfg *ProviderConfig, logger *zap.Logger) (LLMClient, error) {
	clientCfg := &Config{
		Endpoint:  cfg.Endpoint,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		MaxTokens: cfg.MaxTokens,
	}

	var (
		inner LLMClient
		err   error
	)
	switch cfg.Provider {
	case ProviderOpenAI, "":
		inner, err = NewClient(clientCfg, logger)
	case ProviderAnthropic:
		inner, err = NewAnthropicClient(clientCfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:  cfg.BreakerThreshold,
		ResetAfter: cfg.BreakerResetAfter,
	})
	return NewGuardedClient(inner, breaker, logger), nil
}
