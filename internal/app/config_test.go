package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:        defaultAddr,
		DatabaseURL: "postgres://localhost/sqshop",
		Images:      ImagesConfig{Backend: BackendPostgres, ThumbnailWidth: 300},
		RateLimit:   RateLimitConfig{Max: 100, Window: time.Minute},
	}
}

func TestApplyPlatformDefaults(t *testing.T) {
	env := map[string]string{"DATABASE_URL": "postgres://platform/db", "PORT": "9090"}
	getenv := func(k string) string { return env[k] }

	cfg := Config{Addr: defaultAddr}
	cfg.applyPlatformDefaults(getenv)
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	// Explicit settings win.
	cfg = Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/db"}
	cfg.applyPlatformDefaults(getenv)
	assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"Valid", func(*Config) {}, ""},
		{"NoDatabase", func(c *Config) { c.DatabaseURL = "" }, "database URL is required"},
		{"S3WithoutBucket", func(c *Config) { c.Images.Backend = BackendS3 }, "bucket is required"},
		{"S3WithBucket", func(c *Config) { c.Images.Backend = BackendS3; c.Images.Bucket = "pics" }, ""},
		{"UnknownBackend", func(c *Config) { c.Images.Backend = "ftp" }, "unknown images backend"},
		{"ZeroThumbnail", func(c *Config) { c.Images.ThumbnailWidth = 0 }, "thumbnail width"},
		{"NoRateWindow", func(c *Config) { c.RateLimit.Window = 0 }, "rate limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
