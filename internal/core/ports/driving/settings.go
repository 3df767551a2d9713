package driving

import "github.com/custodia-labs/lexharvest/internal/core/domain"

// SettingsService reads and updates the application configuration.
type SettingsService interface {
	// Get resolves every setting, applying defaults for absent keys.
	Get() (*domain.AppSettings, error)

	// Set parses and stores one setting by dotted key. The value is only
	// persisted if the resulting settings validate.
	Set(key, value string) error

	// Keys lists the settable keys in display order.
	Keys() []string
}
