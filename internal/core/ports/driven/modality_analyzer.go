package driven

import (
	"context"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// ModalityAnalyzer calls one diagnostic back-end.
// Implementations normalise the back-end response into a domain.AnalysisResult
// whose Modality matches Modality().
type ModalityAnalyzer interface {
	// Modality returns the diagnostic channel this analyzer serves.
	Modality() domain.Modality

	// Analyze sends one payload for analysis.
	// Errors are treated as ModalityUnavailable by the coordinator.
	Analyze(
		ctx context.Context,
		payload domain.ModalityPayload,
		userID string,
		applyPreprocessing bool,
		metadata map[string]string,
	) (*domain.AnalysisResult, error)
}
