package driven

import "time"

// ConfigStore provides access to configuration values by dotted key,
// e.g. "api.requests_per_second".
type ConfigStore interface {
	// Get retrieves a raw configuration value.
	Get(key string) (any, bool)
	// GetString retrieves a string value, or "" if absent.
	GetString(key string) string
	// GetInt retrieves an integer value, or 0 if absent.
	GetInt(key string) int
	// GetFloat retrieves a float value, or 0 if absent.
	GetFloat(key string) float64
	// GetBool retrieves a boolean value, or false if absent.
	GetBool(key string) bool
	// GetDuration retrieves a duration written as "30s" or a number of seconds.
	GetDuration(key string) time.Duration
	// Set stores a configuration value.
	Set(key string, value any) error
	// Save persists the configuration.
	Save() error
	// Load reads configuration from storage.
	Load() error
	// Path returns the configuration file path.
	Path() string
}
