package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

func newTestReasoningEngine() *ReasoningEngine {
	return NewReasoningEngine(domain.DefaultKnowledgeBase(), domain.DefaultAppSettings().Reasoning)
}

// fusedEvidence fuses findings with the weighted algorithm and packages the
// result the way the coordinator does.
func fusedEvidence(t *testing.T, findings []domain.ModalityFinding) domain.ReasoningEvidence {
	t.Helper()
	fused := fuse(t, newTestFusionEngine(), findings, domain.FusionWeighted)
	return domain.ReasoningEvidence{
		Syndromes:       fused.Syndromes,
		ModalityWeights: fused.ModalityWeights,
		Findings:        findings,
	}
}

func differentiate(t *testing.T, e *ReasoningEngine, evidence domain.ReasoningEvidence) *domain.ReasoningResult {
	t.Helper()
	result, err := e.DifferentiateSyndromes(context.Background(), evidence)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestReasoningEngine_DifferentiateSyndromes_QiDeficiency(t *testing.T) {
	result := differentiate(t, newTestReasoningEngine(), fusedEvidence(t, qiDeficiencyFindings()))

	require.True(t, result.Success)
	assert.Len(t, result.Methods, 3)
	require.Len(t, result.Syndromes, 1)
	assert.Equal(t, domain.SyndromeQiDeficiency, result.Syndromes[0].Name)
	assert.Equal(t, "insufficient production or excessive consumption of qi", result.CoreMechanism)
	assert.Equal(t, []string{"tonify qi"}, result.TreatmentPrinciples)

	require.NotNil(t, result.Constitution)
	assert.Equal(t, domain.ConstitutionBalanced, result.Constitution.Type, "no constitution features were observed")
	assert.InDelta(t, 0.4, result.Constitution.Confidence, 1e-9)
	assert.NotEmpty(t, result.Constitution.Recommendations)
}

func TestReasoningEngine_DifferentiateSyndromes_EmptyEvidence(t *testing.T) {
	result := differentiate(t, newTestReasoningEngine(), domain.ReasoningEvidence{})

	assert.False(t, result.Success)
	assert.Equal(t, "no evidence to differentiate", result.Error)
	assert.Empty(t, result.Syndromes)
	assert.Nil(t, result.Constitution)
}

func TestReasoningEngine_DifferentiateSyndromes_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestReasoningEngine().DifferentiateSyndromes(ctx, fusedEvidence(t, qiDeficiencyFindings()))

	assert.ErrorIs(t, err, context.Canceled)
}

// TestReasoningEngine_OpposingExcluded tests the weaker of two opposing
// syndromes is dropped and the survivor penalised
func TestReasoningEngine_OpposingExcluded(t *testing.T) {
	evidence := domain.ReasoningEvidence{
		Syndromes: []domain.SyndromeCandidate{
			{Name: domain.SyndromeColdPattern, Score: 2.0, Confidence: 0.9},
			{Name: domain.SyndromeHeatPattern, Score: 1.0, Confidence: 0.8},
		},
	}
	e := newTestReasoningEngine()

	result := differentiate(t, e, evidence)

	require.True(t, result.Success)
	require.Len(t, result.Syndromes, 1)
	assert.Equal(t, domain.SyndromeColdPattern, result.Syndromes[0].Name)
	assert.InDelta(t, 0.8, result.Syndromes[0].Confidence, 1e-9)
	assert.Equal(t, domain.CategoryEightPrinciples, result.Syndromes[0].Category)

	kb := domain.DefaultKnowledgeBase()
	for i, a := range result.Syndromes {
		for _, b := range result.Syndromes[i+1:] {
			assert.False(t, kb.Opposes(a.Name, b.Name), "%s and %s both kept", a.Name, b.Name)
		}
	}
}

// TestReasoningEngine_RelatedAnnotations tests related syndromes are listed
// only when present in the result
func TestReasoningEngine_RelatedAnnotations(t *testing.T) {
	evidence := domain.ReasoningEvidence{
		Syndromes: []domain.SyndromeCandidate{
			{Name: domain.SyndromeQiDeficiency, Score: 1.5, Confidence: 0.9},
			{Name: domain.SyndromeDeficiencyPattern, Score: 1.2, Confidence: 0.8},
			{Name: domain.SyndromeBloodStasis, Score: 1.0, Confidence: 0.7},
		},
	}

	result := differentiate(t, newTestReasoningEngine(), evidence)

	require.Len(t, result.Syndromes, 3)
	byName := make(map[string]domain.SyndromeCandidate)
	for _, c := range result.Syndromes {
		byName[c.Name] = c
	}
	assert.Equal(t, []string{domain.SyndromeDeficiencyPattern}, byName[domain.SyndromeQiDeficiency].Related)
	assert.Empty(t, byName[domain.SyndromeBloodStasis].Related, "excess pattern and qi stagnation are absent")

	assert.Equal(t,
		"insufficient production or excessive consumption of qi; "+
			byName[domain.SyndromeDeficiencyPattern].Mechanism+"; blood flow impeded",
		result.CoreMechanism)
}

// TestReasoningEngine_Constitution tests constitution selection from
// matched features and correlated syndromes
func TestReasoningEngine_Constitution(t *testing.T) {
	result := differentiate(t, newTestReasoningEngine(), fusedEvidence(t, bloodStasisFindings()))

	require.True(t, result.Success)
	require.NotEmpty(t, result.Syndromes)
	assert.Equal(t, domain.SyndromeBloodStasis, result.Syndromes[0].Name)

	require.NotNil(t, result.Constitution)
	assert.Equal(t, domain.ConstitutionBloodStasis, result.Constitution.Type)
	assert.Equal(t, []string{"purple_tongue", "choppy_pulse"}, result.Constitution.MatchedFeatures)
	assert.InDelta(t, 0.6, result.Constitution.Confidence, 1e-9)
	assert.Greater(t, result.Constitution.Score, 0.35)
	assert.Contains(t, result.Constitution.Recommendations, "activate blood and resolve stasis")
}

// TestReasoningEngine_ScoresWithoutFusion tests raw findings alone are
// differentiated from scratch
func TestReasoningEngine_ScoresWithoutFusion(t *testing.T) {
	evidence := domain.ReasoningEvidence{
		Findings: []domain.ModalityFinding{
			{Name: "fatigue", Confidence: 0.9, Modality: domain.ModalityInquiry, Weight: 1.5},
			{Name: "shortness_of_breath", Confidence: 0.9, Modality: domain.ModalityInquiry, Weight: 1.5},
			{Name: "spontaneous_sweating", Confidence: 0.9, Modality: domain.ModalityInquiry, Weight: 1.5},
			{Name: "weak_pulse", Confidence: 0.9, Modality: domain.ModalityPalpation, Weight: 1.2},
		},
	}

	result := differentiate(t, newTestReasoningEngine(), evidence)

	require.True(t, result.Success)
	require.NotEmpty(t, result.Syndromes)
	top := result.Syndromes[0]
	assert.Equal(t, domain.SyndromeQiDeficiency, top.Name)
	// (1.5*1.3 + 1.5*1.2 + 1.5*1.0 + 1.2*1.0) * 4/4
	assert.InDelta(t, 6.45, top.Score, 1e-9)
	assert.InDelta(t, 0.9, top.Confidence, 1e-9)
	assert.LessOrEqual(t, len(top.Supporting), 5)
}

func TestReasoningEngine_UnknownMethodSkipped(t *testing.T) {
	cfg := domain.DefaultAppSettings().Reasoning
	cfg.Methods = []domain.DifferentiationMethod{"astrology", domain.MethodQiBloodFluid}
	e := NewReasoningEngine(domain.DefaultKnowledgeBase(), cfg)

	result := differentiate(t, e, fusedEvidence(t, qiDeficiencyFindings()))

	require.Len(t, result.Methods, 1)
	assert.Equal(t, domain.MethodQiBloodFluid, result.Methods[0].Method)
}

func TestReasoningEngine_TreatmentPrinciples(t *testing.T) {
	e := newTestReasoningEngine()

	got := e.TreatmentPrinciples([]domain.SyndromeCandidate{
		{Name: domain.SyndromeQiDeficiency},
		{Name: "unknown-syndrome"},
		{Name: domain.SyndromeQiDeficiency},
		{Name: domain.SyndromeBloodStasis},
	})

	assert.Equal(t, []string{"tonify qi", "activate blood and resolve stasis"}, got)
	assert.Empty(t, e.TreatmentPrinciples(nil))
}

func TestHeaviestFindings(t *testing.T) {
	findings := []domain.ModalityFinding{
		{Name: "b", Weight: 1.0},
		{Name: "a", Weight: 1.0},
		{Name: "c", Weight: 2.0},
	}

	got := heaviestFindings(findings, 2)

	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Name)
	assert.Equal(t, "a", got[1].Name)
	assert.Equal(t, "b", findings[0].Name, "input is not reordered")
}
