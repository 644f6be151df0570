package driving

import (
	"context"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// FusionService combines modality findings into ranked syndrome candidates.
type FusionService interface {
	// FuseFindings fuses raw findings. An empty algorithm selects the
	// configured default; an unknown one returns domain.ErrUnsupportedType.
	FuseFindings(ctx context.Context, findings []domain.ModalityFinding, algorithm domain.FusionAlgorithm) (*domain.FusionResult, error)

	// FuseResults fuses normalised back-end results, using each result's
	// confidence as its modality confidence.
	FuseResults(ctx context.Context, results []domain.AnalysisResult, algorithm domain.FusionAlgorithm) (*domain.FusionResult, error)
}
