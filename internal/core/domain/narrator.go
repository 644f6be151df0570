package domain

import "time"

// AIProvider identifies a language model provider.
type AIProvider string

// Supported providers.
const (
	AIProviderNone      AIProvider = ""
	AIProviderOllama    AIProvider = "ollama"
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the provider is recognised. The empty provider
// is valid and disables narration.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderNone, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true for hosted providers.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderNone:
		return "None (template summaries)"
	case AIProviderOllama:
		return "Ollama (local models)"
	case AIProviderOpenAI:
		return "OpenAI (hosted)"
	case AIProviderAnthropic:
		return "Anthropic (hosted)"
	default:
		return unknownDescription
	}
}

// AllAIProviders returns every selectable provider, excluding none.
func AllAIProviders() []AIProvider {
	return []AIProvider{AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic}
}

// NarratorSettings configures the optional language model that writes
// report summaries. With no provider the template summary is kept.
type NarratorSettings struct {
	Provider AIProvider `validate:"omitempty,oneof=ollama openai anthropic"`

	// Model overrides the provider default.
	Model string

	// BaseURL overrides the provider endpoint.
	BaseURL string `validate:"omitempty,url"`

	APIKey string

	// Timeout bounds one summary request.
	Timeout time.Duration `validate:"gt=0"`

	MaxTokens int `validate:"gte=1"`
}

// IsConfigured reports whether narration is enabled and has the
// credentials its provider needs.
func (n NarratorSettings) IsConfigured() bool {
	if n.Provider == AIProviderNone || !n.Provider.IsValid() {
		return false
	}
	if n.Provider.RequiresAPIKey() && n.APIKey == "" {
		return false
	}
	return true
}
