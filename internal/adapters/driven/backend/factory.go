// Package backend provides factory functions for creating modality analyzers.
package backend

import (
	"fmt"

	"github.com/custodia-labs/sizhen/internal/adapters/driven/backend/local"
	"github.com/custodia-labs/sizhen/internal/adapters/driven/backend/remote"
	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
)

// CreateAnalyzers builds one analyzer per modality for the configured driver.
// With the http driver a modality whose URL is empty gets no analyzer, so
// the coordinator reports it as not configured.
func CreateAnalyzers(settings *domain.BackendSettings) ([]driven.ModalityAnalyzer, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: no back-end settings", domain.ErrBackendNotConfigured)
	}

	switch settings.Driver {
	case domain.BackendLocal, "":
		return createLocal()
	case domain.BackendHTTP:
		return createRemote(settings)
	default:
		return nil, fmt.Errorf("%w: back-end driver %q", domain.ErrUnsupportedType, settings.Driver)
	}
}

func createLocal() ([]driven.ModalityAnalyzer, error) {
	analyzers := make([]driven.ModalityAnalyzer, 0, len(domain.AllModalities()))
	for _, m := range domain.AllModalities() {
		a, err := local.NewAnalyzer(m)
		if err != nil {
			return nil, err
		}
		analyzers = append(analyzers, a)
	}
	return analyzers, nil
}

func createRemote(settings *domain.BackendSettings) ([]driven.ModalityAnalyzer, error) {
	var analyzers []driven.ModalityAnalyzer
	for _, m := range domain.AllModalities() {
		url := settings.URL(m)
		if url == "" {
			continue
		}
		a, err := remote.NewAnalyzer(remote.Config{
			Modality:          m,
			BaseURL:           url,
			APIKey:            settings.APIKey,
			RequestsPerSecond: settings.RequestsPerSecond,
			Burst:             settings.Burst,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s analyzer: %w", m, err)
		}
		analyzers = append(analyzers, a)
	}
	if len(analyzers) == 0 {
		return nil, fmt.Errorf("%w: the http driver needs at least one back-end URL", domain.ErrBackendNotConfigured)
	}
	return analyzers, nil
}
