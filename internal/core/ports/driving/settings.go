package driving

import "github.com/custodia-labs/stash/internal/core/domain"

// SettingsService reads and updates application configuration.
type SettingsService interface {
	// Get resolves settings from environment overrides, the config file and
	// built-in defaults, in that order.
	Get() (domain.Settings, error)

	// Set parses value for the type of key and persists it.
	Set(key, value string) error

	// Validate reports configuration errors such as a remote embedding
	// provider without its credential.
	Validate(settings domain.Settings) error

	// Keys lists every recognised config key.
	Keys() []string

	// Values formats settings by config key, masking secrets.
	Values(settings domain.Settings) map[string]string
}
