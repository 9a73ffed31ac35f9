// Package config loads the process configuration once at startup.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sungwon/esp-mailer/internal/archive"
	"github.com/sungwon/esp-mailer/internal/auth"
	"github.com/sungwon/esp-mailer/internal/logger"
	"github.com/sungwon/esp-mailer/internal/provider"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "MAILER"

// Config holds all application configuration.
type Config struct {
	Mailer        provider.Settings   `mapstructure:"mailer"`
	SMTP          SMTPConfig          `mapstructure:"smtp"`
	API           APIConfig           `mapstructure:"api"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	TLS           TLSConfig           `mapstructure:"tls"`
	Auth          auth.JWTConfig      `mapstructure:"auth"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Archive       archive.Config      `mapstructure:"archive"`
}

// SMTPConfig holds SMTP front door configuration.
type SMTPConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Domain            string        `mapstructure:"domain"`
	Username          string        `mapstructure:"username"`
	PasswordHash      string        `mapstructure:"password_hash"`
	MaxConnections    int           `mapstructure:"max_connections"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	AllowInsecureAuth bool          `mapstructure:"allow_insecure_auth"`
}

// APIConfig holds HTTP server configuration.
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	PoolMin        int32         `mapstructure:"pool_min"`
	PoolMax        int32         `mapstructure:"pool_max"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Output    string `mapstructure:"output"`
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// Logger converts the section into logger.Config.
func (c LoggingConfig) Logger() logger.Config {
	return logger.Config{
		Level:     c.Level,
		Output:    c.Output,
		FilePath:  c.FilePath,
		MaxSizeMB: c.MaxSizeMB,
		MaxFiles:  c.MaxFiles,
	}
}

// TLSConfig holds TLS certificate configuration for the SMTP front door.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// NotificationsConfig selects where typed notifications are published.
type NotificationsConfig struct {
	Sinks         []string `mapstructure:"sinks"` // log, redis, sqs
	RedisAddr     string   `mapstructure:"redis_addr"`
	RedisPassword string   `mapstructure:"redis_password"`
	RedisDB       int      `mapstructure:"redis_db"`
	RedisStream   string   `mapstructure:"redis_stream"`
	RedisMaxLen   int64    `mapstructure:"redis_max_len"`
	SQSQueueURL   string   `mapstructure:"sqs_queue_url"`
	SQSRegion     string   `mapstructure:"sqs_region"`
}

// HasSink reports whether name is among the configured sinks.
func (c NotificationsConfig) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// knownProviders get explicit env bindings, since viper cannot discover
// nested map keys from the environment alone.
var knownProviders = []string{"sendgrid", "mailgun", "ses", "amazon_ses", "stdout"}

var providerFields = []string{"api_key", "api_secret", "api_url", "region", "domain", "timeout"}

// Load reads configuration from the given config directory path.
// It looks for a file named "config.yaml" in that directory.
// Environment variables with prefix MAILER_ override file values.
// For example, MAILER_DATABASE_URL overrides database.url and
// MAILER_MAILER_PROVIDERS_SENDGRID_API_KEY overrides the SendGrid key.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for _, name := range knownProviders {
		for _, field := range providerFields {
			key := fmt.Sprintf("mailer.providers.%s.%s", name, field)
			if err := v.BindEnv(key); err != nil {
				return nil, fmt.Errorf("bind env %s: %w", key, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	pruneEmptyProviders(&cfg.Mailer)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mailer.provider", provider.DefaultProvider)
	v.SetDefault("mailer.webhook_url", "/mailer/webhook")

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", 10*time.Second)
	v.SetDefault("api.write_timeout", 30*time.Second)

	v.SetDefault("smtp.host", "0.0.0.0")
	v.SetDefault("smtp.port", 2525)
	v.SetDefault("smtp.domain", "esp-mailer")
	v.SetDefault("smtp.max_connections", 100)
	v.SetDefault("smtp.read_timeout", 30*time.Second)
	v.SetDefault("smtp.write_timeout", 30*time.Second)
	v.SetDefault("smtp.max_message_size", 26214400)

	v.SetDefault("database.pool_min", 2)
	v.SetDefault("database.pool_max", 10)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("auth.token_expiry", 24*time.Hour)
	v.SetDefault("auth.issuer", "esp-mailer")
	v.SetDefault("auth.audience", "esp-mailer-api")

	v.SetDefault("notifications.sinks", []string{"log"})
	v.SetDefault("notifications.redis_stream", "mailer:notifications")
	v.SetDefault("notifications.redis_max_len", 10000)

	v.SetDefault("archive.type", "none")
}

// pruneEmptyProviders drops provider entries that only exist because of the
// env bindings and carry no value.
func pruneEmptyProviders(s *provider.Settings) {
	for name, cfg := range s.Providers {
		if cfg == (provider.Config{}) {
			delete(s.Providers, name)
		}
	}
}
