package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAIProvider_IsValid(t *testing.T) {
	for _, p := range AllAIProviders() {
		assert.True(t, p.IsValid(), p)
		assert.NotEqual(t, unknownDescription, p.Description())
	}
	assert.True(t, AIProviderNone.IsValid())
	assert.False(t, AIProvider("gemini").IsValid())
	assert.Equal(t, unknownDescription, AIProvider("gemini").Description())
}

func TestNarratorSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings NarratorSettings
		expected bool
	}{
		{name: "no provider", settings: NarratorSettings{}, expected: false},
		{name: "unknown provider", settings: NarratorSettings{Provider: "gemini", APIKey: "k"}, expected: false},
		{name: "ollama needs no key", settings: NarratorSettings{Provider: AIProviderOllama}, expected: true},
		{name: "openai without key", settings: NarratorSettings{Provider: AIProviderOpenAI}, expected: false},
		{name: "anthropic with key", settings: NarratorSettings{Provider: AIProviderAnthropic, APIKey: "k"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.settings.IsConfigured())
		})
	}
}

func TestDefaultAppSettings_NarratorDisabled(t *testing.T) {
	s := DefaultAppSettings()

	assert.False(t, s.Narrator.IsConfigured())
	assert.Positive(t, s.Narrator.Timeout)
	assert.Positive(t, s.Narrator.MaxTokens)
}
