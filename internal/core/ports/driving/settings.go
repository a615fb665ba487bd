package driving

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings, applying defaults and
	// environment overrides.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// Set stores a single dotted key after parsing and validating the value.
	Set(key, value string) error

	// Display returns every setting as text, with credentials masked.
	Display() (map[string]string, error)

	// Validate checks the settings are complete enough to run the pipeline.
	Validate() error

	// CheckConnectivity pings the configured providers and vector backend.
	CheckConnectivity() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
