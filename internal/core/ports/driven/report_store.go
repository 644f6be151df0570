package driven

import (
	"context"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// ReportStore persists diagnosis reports.
type ReportStore interface {
	// Save stores a report. Saving an existing ID replaces it.
	Save(ctx context.Context, report domain.DiagnosisReport) error

	// Get retrieves a report by ID, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.DiagnosisReport, error)

	// ListBySession returns a session's reports, newest first.
	ListBySession(ctx context.Context, userID, sessionID string) ([]domain.DiagnosisReport, error)
}
