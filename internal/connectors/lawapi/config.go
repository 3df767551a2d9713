package lawapi

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

const (
	// DefaultBaseURL is the registry host. API and document pages share it.
	DefaultBaseURL = "https://www.law.go.kr"

	// DefaultRequestsPerSecond is the proactive throttle rate.
	DefaultRequestsPerSecond = 2.0

	// DefaultDailyLimit is the upstream daily call ceiling.
	DefaultDailyLimit = 10000

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the default number of retries for transient errors.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries.
	RetryDelay = 500 * time.Millisecond

	// MaxRetryDelay caps the exponential backoff.
	MaxRetryDelay = 30 * time.Second

	// MaxBodySize bounds how much of a response body is read.
	MaxBodySize = 32 << 20
)

// Upstream paths, relative to the base URL.
const (
	listingPath = "/DRF/lawSearch.do"
	detailPath  = "/DRF/lawService.do"
)

// Config holds the settings of the registry client.
type Config struct {
	// BaseURL is the scheme and host of the registry.
	BaseURL string

	// APIKey is the OC parameter identifying the caller.
	APIKey string

	// RequestsPerSecond is the token bucket rate; burst is always 1.
	RequestsPerSecond float64

	// DailyLimit is the daily call ceiling. Zero disables the check.
	DailyLimit int

	Timeout time.Duration

	// MaxRetries bounds retries after the first attempt.
	MaxRetries int

	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// UserAgent is sent with every request when set.
	UserAgent string
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		RequestsPerSecond: DefaultRequestsPerSecond,
		DailyLimit:        DefaultDailyLimit,
		Timeout:           DefaultTimeout,
		MaxRetries:        MaxRetries,
		RetryDelay:        RetryDelay,
		MaxRetryDelay:     MaxRetryDelay,
	}
}

// withDefaults fills zero values from DefaultConfig.
// Negative retry counts are treated as zero.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = d.RequestsPerSecond
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = d.MaxRetryDelay
	}
	return c
}

// Validate checks that the client can be built from the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	u, err := url.Parse(c.BaseURL)
	if c.BaseURL != "" && (err != nil || u.Scheme == "" || u.Host == "") {
		return fmt.Errorf("%w: base url %q", domain.ErrInvalidInput, c.BaseURL)
	}
	return nil
}
