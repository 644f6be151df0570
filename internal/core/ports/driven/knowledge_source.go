package driven

import "github.com/custodia-labs/sizhen/internal/core/domain"

// KnowledgeSource loads the syndrome and constitution knowledge base.
// It is called once at start-up; the result is read-only afterwards.
type KnowledgeSource interface {
	Load() (*domain.KnowledgeBase, error)
}
