package provider

import (
	"strings"
	"time"
)

// DefaultProvider is selected when mailer.provider is not set.
const DefaultProvider = "sendgrid"

const defaultTimeout = 30 * time.Second

// Config holds the credentials and endpoint of one ESP. It is loaded once at
// startup and not modified afterwards.
type Config struct {
	// APIKey is the authentication credential (the access key ID for SES).
	APIKey string `mapstructure:"api_key"`

	// APISecret is the secondary credential (the secret access key for SES).
	APISecret string `mapstructure:"api_secret"`

	// APIURL overrides the default send endpoint (useful for testing).
	APIURL string `mapstructure:"api_url"`

	// Region is used for AWS SES.
	Region string `mapstructure:"region"`

	// Domain is the Mailgun sending domain.
	Domain string `mapstructure:"domain"`

	// Timeout is the maximum duration for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Validate checks that required fields are set for the named provider.
// Names without a known shape require api_key only.
func (c Config) Validate(name string) error {
	switch name {
	case "stdout":
		// No configuration required.
	case "ses", "amazon_ses":
		if c.APIKey == "" {
			return &ConfigurationError{Provider: name, Field: "api_key"}
		}
		if c.APISecret == "" {
			return &ConfigurationError{Provider: name, Field: "api_secret"}
		}
	case "mailgun":
		if c.APIKey == "" {
			return &ConfigurationError{Provider: name, Field: "api_key"}
		}
		if c.Domain == "" {
			return &ConfigurationError{Provider: name, Field: "domain"}
		}
	default:
		if c.APIKey == "" {
			return &ConfigurationError{Provider: name, Field: "api_key"}
		}
	}
	return nil
}

// TimeoutOrDefault returns the configured timeout, or 30s when unset.
func (c Config) TimeoutOrDefault() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

// Settings is the mailer section of the configuration: the active provider
// and the per-provider credential map.
type Settings struct {
	Provider   string            `mapstructure:"provider"`
	Providers  map[string]Config `mapstructure:"providers"`
	WebhookURL string            `mapstructure:"webhook_url"`
}

// NormalizeName trims and lower-cases a provider name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Active returns the normalized active provider name and its config.
func (s Settings) Active() (string, Config) {
	name := NormalizeName(s.Provider)
	if name == "" {
		name = DefaultProvider
	}
	for k, cfg := range s.Providers {
		if NormalizeName(k) == name {
			return name, cfg
		}
	}
	return name, Config{}
}
