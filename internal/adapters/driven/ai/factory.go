// Package ai provides factory functions for creating language model adapters.
package ai

import (
	"fmt"

	anthropicllm "github.com/custodia-labs/sizhen/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/sizhen/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/sizhen/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
)

// CreateLLMService creates the LLM service named by the narrator settings.
// Returns nil if the provider is not configured. Connectivity is not
// checked here; a failed request leaves the template summary in place.
func CreateLLMService(settings *domain.NarratorSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	default:
		return nil, fmt.Errorf("%w: LLM provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}
