package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer      string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL     string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience    string   `mapstructure:"AUTH_AUDIENCE"`
	AuthDevSecret   string   `mapstructure:"AUTH_DEV_SECRET"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	BlobDir         string   `mapstructure:"BLOB_DIR"`
	MaxArchiveMB    int      `mapstructure:"MAX_ARCHIVE_MB"`
	IngestWorkers   int      `mapstructure:"INGEST_WORKERS"`
	EventSinkURL    string   `mapstructure:"EVENT_SINK_URL"`
	EventSinkSecret string   `mapstructure:"EVENT_SINK_SECRET"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BLOB_DIR", "./data/blobs")
	v.SetDefault("MAX_ARCHIVE_MB", 100)
	v.SetDefault("INGEST_WORKERS", 4)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_DEV_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("BLOB_DIR")
	v.BindEnv("MAX_ARCHIVE_MB")
	v.BindEnv("INGEST_WORKERS")
	v.BindEnv("EVENT_SINK_URL")
	v.BindEnv("EVENT_SINK_SECRET")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active; all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure AUTH_ISSUER for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// mode either AUTH_ISSUER or AUTH_DEV_SECRET must be set so that real JWT
// authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthDevSecret == "" {
		return fmt.Errorf(
			"AUTH_ISSUER (or AUTH_DEV_SECRET) must be set when ENV=%q. "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if c.MaxArchiveMB <= 0 {
		return fmt.Errorf("MAX_ARCHIVE_MB must be positive, got %d", c.MaxArchiveMB)
	}
	if c.IngestWorkers <= 0 {
		return fmt.Errorf("INGEST_WORKERS must be positive, got %d", c.IngestWorkers)
	}
	if c.EventSinkURL != "" && c.EventSinkSecret == "" && c.IsProduction() {
		return fmt.Errorf("EVENT_SINK_SECRET is required when EVENT_SINK_URL is set in production")
	}
	return nil
}

// MaxArchiveBytes returns the archive upload limit in bytes.
func (c *Config) MaxArchiveBytes() int64 {
	return int64(c.MaxArchiveMB) * 1024 * 1024
}
