package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
)

// Ensure ProgressStore implements the interface.
var _ driven.ProgressStore = (*ProgressStore)(nil)

// sessionProgress guards one session's record.
type sessionProgress struct {
	mu       sync.Mutex
	progress *domain.DiagnosisProgress
}

// ProgressStore keeps diagnosis progress in memory.
// Each session has its own lock, so sessions never block each other.
type ProgressStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionProgress
}

// NewProgressStore creates a new in-memory progress store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		sessions: make(map[string]*sessionProgress),
	}
}

func (s *ProgressStore) session(userID, sessionID string, create bool) *sessionProgress {
	key := domain.SessionKey(userID, sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.sessions[key]
	if !ok && create {
		sp = &sessionProgress{}
		s.sessions[key] = sp
	}
	return sp
}

// Get returns a copy of the session's progress.
func (s *ProgressStore) Get(_ context.Context, userID, sessionID string) (*domain.DiagnosisProgress, error) {
	sp := s.session(userID, sessionID, false)
	if sp == nil {
		return nil, domain.ErrNotFound
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.progress == nil {
		return nil, domain.ErrNotFound
	}
	return copyProgress(sp.progress), nil
}

// Update applies fn under the session lock and returns a copy of the result.
func (s *ProgressStore) Update(
	ctx context.Context,
	userID, sessionID string,
	fn func(*domain.DiagnosisProgress),
) (*domain.DiagnosisProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sp := s.session(userID, sessionID, true)
	sp.mu.Lock()
	defer sp.mu.Unlock()

	next := domain.NewDiagnosisProgress(userID, sessionID)
	if sp.progress != nil {
		next = copyProgress(sp.progress)
	}
	fn(next)
	sp.progress = next
	return copyProgress(next), nil
}

func copyProgress(p *domain.DiagnosisProgress) *domain.DiagnosisProgress {
	c := *p
	c.Expected = append([]domain.Modality(nil), p.Expected...)
	return &c
}
