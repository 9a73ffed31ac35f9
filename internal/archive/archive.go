// Package archive keeps raw inbound webhook bodies for later inspection.
package archive

import (
	"context"
	"path"
	"time"

	"github.com/rs/zerolog"
)

// Store writes one archived body under key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Config selects the archive backend.
type Config struct {
	Type       string `mapstructure:"type"` // "none" (default), "local" or "s3"
	Path       string `mapstructure:"path"` // base directory for local archive
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Prefix   string `mapstructure:"s3_prefix"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	S3Region   string `mapstructure:"s3_region"`
}

// New creates a Store from cfg. It returns a nil Store when archiving is
// disabled.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (Store, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocalStore(cfg.Path)
	case "s3":
		return NewS3StoreFromConfig(ctx, cfg)
	default:
		log.Warn().
			Str("type", cfg.Type).
			Msg("unsupported archive type, archiving disabled")
		return nil, nil
	}
}

// Key builds the object key for a webhook body: provider/YYYY/MM/DD/id.json.
func Key(provider string, at time.Time, id string) string {
	return path.Join(provider, at.UTC().Format("2006/01/02"), id+".json")
}
