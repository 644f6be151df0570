package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
)

// fakeLLM implements driven.LLMService for testing.
type fakeLLM struct {
	reply      string
	err        error
	delay      time.Duration
	lastPrompt string
	lastOpts   driven.GenerateOptions
	calls      int
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	f.lastOpts = opts
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.reply, f.err
}

func (f *fakeLLM) ModelName() string { return "fake-model" }
func (f *fakeLLM) Ping(context.Context) error { return nil }
func (f *fakeLLM) Close() error { return nil }

func narratorSettings() domain.NarratorSettings {
	return domain.NarratorSettings{Provider: domain.AIProviderOllama, Timeout: time.Second, MaxTokens: 120}
}

func TestNarrator_Narrate(t *testing.T) {
	llm := &fakeLLM{reply: "  Blood stasis with qi deficiency.  "}
	n := NewNarrator(llm, narratorSettings())
	report := &domain.DiagnosisReport{
		ModalityResults: map[domain.Modality]*domain.AnalysisResult{
			domain.ModalityLook: {Summary: "purple tongue", Confidence: 0.9},
		},
		Syndromes:       []domain.SyndromeCandidate{{Name: domain.SyndromeBloodStasis, Confidence: 0.8}},
		Constitution:    &domain.ConstitutionAssessment{Type: domain.ConstitutionBloodStasis},
		CoreMechanism:   "stagnant blood obstructs the vessels",
		Recommendations: []string{"invigorate blood"},
		Summary:         "primary syndrome blood stasis",
	}

	text, err := n.Narrate(context.Background(), report)

	require.NoError(t, err)
	assert.Equal(t, "Blood stasis with qi deficiency.", text)
	assert.Equal(t, 120, llm.lastOpts.MaxTokens)
	assert.NotEmpty(t, llm.lastOpts.System)
	assert.Contains(t, llm.lastPrompt, "- look (confidence 0.90): purple tongue")
	assert.Contains(t, llm.lastPrompt, domain.SyndromeBloodStasis)
	assert.Contains(t, llm.lastPrompt, "Core mechanism: stagnant blood obstructs the vessels")
	assert.Contains(t, llm.lastPrompt, "Recommendations: invigorate blood")
	assert.Contains(t, llm.lastPrompt, "Draft summary: primary syndrome blood stasis")
}

func TestNarrator_Narrate_Errors(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		n := NewNarrator(&fakeLLM{err: domain.ErrRateLimited}, narratorSettings())

		_, err := n.Narrate(context.Background(), &domain.DiagnosisReport{})

		assert.ErrorIs(t, err, domain.ErrRateLimited)
		assert.Contains(t, err.Error(), "fake-model")
	})

	t.Run("empty reply", func(t *testing.T) {
		n := NewNarrator(&fakeLLM{reply: "   "}, narratorSettings())

		_, err := n.Narrate(context.Background(), &domain.DiagnosisReport{})

		assert.ErrorContains(t, err, "empty summary")
	})

	t.Run("nil narrator", func(t *testing.T) {
		var n *Narrator

		_, err := n.Narrate(context.Background(), &domain.DiagnosisReport{})

		assert.Error(t, err)
	})
}

// ensembleRequest uses the algorithm whose fixture candidates clear the
// differentiation threshold, so the report carries a primary syndrome.
func ensembleRequest() domain.DiagnosisRequest {
	req := fullRequest()
	req.Algorithm = domain.FusionEnsemble
	return req
}

func TestCoordinator_GenerateReport_Narrated(t *testing.T) {
	f := newCoordinatorFixture(testCoordinatorSettings(), testAnalyzers(), nil, nil)
	llm := &fakeLLM{reply: "Blood stasis pattern on a qi deficient base."}
	WithNarrator(NewNarrator(llm, narratorSettings()))(f.coordinator)

	report, err := f.coordinator.GenerateReport(context.Background(), ensembleRequest())

	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, report.Status)
	assert.Equal(t, "Blood stasis pattern on a qi deficient base.", report.Summary)
	assert.Contains(t, llm.lastPrompt, "Draft summary: primary syndrome "+domain.SyndromeQiDeficiency)
	assert.Equal(t, 1, llm.calls)
}

func TestCoordinator_GenerateReport_NarrationFallsBack(t *testing.T) {
	tests := []struct {
		name string
		llm  *fakeLLM
	}{
		{name: "provider error", llm: &fakeLLM{err: errors.New("connection refused")}},
		{name: "timeout", llm: &fakeLLM{reply: "late", delay: 500 * time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCoordinatorFixture(testCoordinatorSettings(), testAnalyzers(), nil, nil)
			cfg := narratorSettings()
			cfg.Timeout = 20 * time.Millisecond
			WithNarrator(NewNarrator(tt.llm, cfg))(f.coordinator)

			report, err := f.coordinator.GenerateReport(context.Background(), ensembleRequest())

			require.NoError(t, err)
			assert.Equal(t, domain.StatusDone, report.Status)
			assert.Contains(t, report.Summary, "primary syndrome "+domain.SyndromeQiDeficiency)
			assert.Equal(t, 1, tt.llm.calls)
		})
	}
}

func TestCoordinator_GenerateReport_NarrationSkippedOnDegradedReport(t *testing.T) {
	f := newCoordinatorFixture(testCoordinatorSettings(), testAnalyzers(), &failingFusion{}, nil)
	llm := &fakeLLM{reply: "unused"}
	WithNarrator(NewNarrator(llm, narratorSettings()))(f.coordinator)

	report, err := f.coordinator.GenerateReport(context.Background(), fullRequest())

	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, report.Status)
	assert.Equal(t, 0, llm.calls)
}
