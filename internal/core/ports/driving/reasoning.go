package driving

import (
	"context"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// ReasoningService differentiates syndromes and classifies constitution.
type ReasoningService interface {
	// DifferentiateSyndromes runs every enabled method and reconciles them.
	// Empty evidence yields a result with Success false, not an error.
	DifferentiateSyndromes(ctx context.Context, evidence domain.ReasoningEvidence) (*domain.ReasoningResult, error)

	// TreatmentPrinciples collects the de-duplicated principles of the given syndromes.
	TreatmentPrinciples(syndromes []domain.SyndromeCandidate) []string
}
