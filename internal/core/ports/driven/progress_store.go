package driven

import (
	"context"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// ProgressStore persists per-session diagnosis progress.
// Records are keyed by (userID, sessionID); there are no cross-session locks.
type ProgressStore interface {
	// Get returns the progress for a session, or domain.ErrNotFound.
	Get(ctx context.Context, userID, sessionID string) (*domain.DiagnosisProgress, error)

	// Update atomically applies fn to the session's record, creating a
	// zero-progress record first when none exists, and returns the result.
	// Concurrent updates to the same session never lose writes.
	Update(ctx context.Context, userID, sessionID string, fn func(*domain.DiagnosisProgress)) (*domain.DiagnosisProgress, error)
}
