package driving

import "github.com/custodia-labs/sizhen/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save validates and persists application settings.
	Save(settings *domain.AppSettings) error

	// Set parses and stores one dot-notation key, e.g. "fusion.algorithm".
	Set(key, value string) error

	// Keys returns every supported key in display order.
	Keys() []string

	// IsSecret reports whether a key holds a credential.
	IsSecret(key string) bool

	// Display formats one key of settings the way it is stored.
	Display(settings *domain.AppSettings, key string) string

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
