package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SQSHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SQSHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (SQSHOP_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Images       ImagesConfig
	RateLimit    RateLimitConfig
	Graceful     GracefulConfig
}

// Image storage backends.
const (
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// ImagesConfig selects where item pictures live and how they are processed.
type ImagesConfig struct {
	Backend        string `default:"postgres" usage:"Image store: postgres or s3"`
	Bucket         string `usage:"S3 bucket for item images"`
	Region         string `default:"us-east-1" usage:"S3 region"`
	Prefix         string `default:"items/" usage:"S3 key prefix"`
	Workers        int    `default:"0" usage:"Concurrent image compressions (0 = GOMAXPROCS)"`
	ThumbnailWidth int    `default:"300" usage:"Thumbnail width in pixels" flag:"thumbnail-width"`
	MaxUploadBytes int64  `default:"10485760" usage:"Maximum image upload size" flag:"max-upload-bytes"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max          int           `default:"100" usage:"Max requests per window for one API key"`
	AnonymousMax int           `default:"20"  usage:"Max requests per window for one IP without an API key"`
	Window       time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SQSHOP",
		Files:     []string{"config.yaml", "/etc/sqshop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set SQSHOP_DATABASE_URL or DATABASE_URL")
	}
	switch c.Images.Backend {
	case BackendPostgres:
	case BackendS3:
		if c.Images.Bucket == "" {
			return errors.New("images bucket is required for the s3 backend")
		}
	default:
		return errors.Errorf("unknown images backend %q", c.Images.Backend)
	}
	if c.Images.ThumbnailWidth <= 0 {
		return errors.New("thumbnail width must be positive")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SQSHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.DatabaseURL == "" {
		if v := getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
