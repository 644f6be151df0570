package driving

import (
	"context"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// DiagnosisService runs end-to-end diagnoses.
type DiagnosisService interface {
	// GenerateReport fans out to the included back-ends, fuses and reasons
	// over what arrived, and returns the report. Only domain.ErrInvalidInput
	// and cancellation of ctx are returned as errors; every runtime fault is
	// represented on the report.
	GenerateReport(ctx context.Context, req domain.DiagnosisRequest) (*domain.DiagnosisReport, error)

	// GetProgress returns a session's progress. A session with no record
	// yields a fresh zero-progress record, never an error.
	GetProgress(ctx context.Context, userID, sessionID string) (*domain.DiagnosisProgress, error)

	// GetReport retrieves a stored report by ID.
	GetReport(ctx context.Context, id string) (*domain.DiagnosisReport, error)

	// ListReports returns a session's stored reports, newest first.
	ListReports(ctx context.Context, userID, sessionID string) ([]domain.DiagnosisReport, error)
}
