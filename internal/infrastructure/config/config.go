package config

import (
	"fmt"
	"os"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/shared/paths"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// FileEnv names the environment variable pointing at an optional TOML file.
const FileEnv = "TEXTNEXUS_CONFIG"

// Config holds all application configuration.
//
// Values are layered: Default(), then the optional TOML file, then
// environment variables.
type Config struct {
	Server        ServerConfig       `toml:"server"`
	Logging       LogConfig          `toml:"logging"`
	RateLimit     RateLimitConfig    `toml:"rate_limit"`
	Storage       StorageConfig      `toml:"storage"`
	Notifications NotificationConfig `toml:"notifications"`
	Sessions      SessionConfig      `toml:"sessions"`
	Catalog       CatalogConfig      `toml:"catalog"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" toml:"port"`
	Host string `envconfig:"HOST" toml:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development"`
	File        string `envconfig:"LOG_FILE" toml:"file"`
	MaxSizeMB   int    `envconfig:"LOG_MAX_SIZE_MB" toml:"max_size_mb"`
	MaxBackups  int    `envconfig:"LOG_MAX_BACKUPS" toml:"max_backups"`
	MaxAgeDays  int    `envconfig:"LOG_MAX_AGE_DAYS" toml:"max_age_days"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled"`
}

// StorageConfig holds the backend slots of the storage coordinator.
// An empty DSN (or "none") disables the slot. Relative file paths are
// resolved against DataDir.
type StorageConfig struct {
	DataDir         string   `envconfig:"DATA_DIR" toml:"data_dir"`
	DurableDSN      string   `envconfig:"STORAGE_DURABLE_DSN" toml:"durable_dsn"`
	DocumentDSN     string   `envconfig:"STORAGE_DOCUMENT_DSN" toml:"document_dsn"`
	LocalDSN        string   `envconfig:"STORAGE_LOCAL_DSN" toml:"local_dsn"`
	SessionDSN      string   `envconfig:"STORAGE_SESSION_DSN" toml:"session_dsn"`
	EncryptionKey   string   `envconfig:"STORAGE_ENCRYPTION_KEY" toml:"encryption_key"`
	KeyPrefix       string   `envconfig:"STORAGE_KEY_PREFIX" toml:"key_prefix"`
	QuotaBytes      int      `envconfig:"STORAGE_QUOTA_BYTES" toml:"quota_bytes"`
	OpTimeout       Duration `envconfig:"STORAGE_OP_TIMEOUT" toml:"op_timeout"`
	BreakerFailures int      `envconfig:"STORAGE_BREAKER_FAILURES" toml:"breaker_failures"`
	BreakerTimeout  Duration `envconfig:"STORAGE_BREAKER_TIMEOUT" toml:"breaker_timeout"`
	Watch           bool     `envconfig:"STORAGE_WATCH" toml:"watch"`
}

// NotificationConfig holds notification router and sink configuration.
type NotificationConfig struct {
	AppName          string   `envconfig:"NOTIFY_APP_NAME" toml:"app_name"`
	DefaultIcon      string   `envconfig:"NOTIFY_DEFAULT_ICON" toml:"default_icon"`
	RestoreDelay     Duration `envconfig:"NOTIFY_RESTORE_DELAY" toml:"restore_delay"`
	ConfirmTTL       Duration `envconfig:"NOTIFY_CONFIRM_TTL" toml:"confirm_ttl"`
	QueueSpacing     Duration `envconfig:"NOTIFY_QUEUE_SPACING" toml:"queue_spacing"`
	QueueLimit       int      `envconfig:"NOTIFY_QUEUE_LIMIT" toml:"queue_limit"`
	BackgroundNotice bool     `envconfig:"NOTIFY_BACKGROUND_NOTICE" toml:"background_notice"`
	DetectorScript   string   `envconfig:"NOTIFY_DETECTOR_SCRIPT" toml:"detector_script"`
	WebhookURL       string   `envconfig:"NOTIFY_WEBHOOK_URL" toml:"webhook_url"`
	WebhookRetries   int      `envconfig:"NOTIFY_WEBHOOK_RETRIES" toml:"webhook_retries"`

	WebPush WebPushConfig `toml:"webpush"`
}

// WebPushConfig holds VAPID settings for the Web Push sink.
type WebPushConfig struct {
	Enabled    bool   `envconfig:"WEBPUSH_ENABLED" toml:"enabled"`
	PublicKey  string `envconfig:"WEBPUSH_VAPID_PUBLIC_KEY" toml:"vapid_public_key"`
	PrivateKey string `envconfig:"WEBPUSH_VAPID_PRIVATE_KEY" toml:"vapid_private_key"`
	Subscriber string `envconfig:"WEBPUSH_SUBSCRIBER" toml:"subscriber"`
	TTL        int    `envconfig:"WEBPUSH_TTL" toml:"ttl"`
	Retries    int    `envconfig:"WEBPUSH_RETRIES" toml:"retries"`
}

// SessionConfig holds session snapshot configuration.
type SessionConfig struct {
	SnapshotInterval Duration `envconfig:"SESSION_SNAPSHOT_INTERVAL" toml:"snapshot_interval"`
}

// CatalogConfig holds service catalog configuration.
type CatalogConfig struct {
	OverridesPath string `envconfig:"CATALOG_OVERRIDES" toml:"overrides"`
}

// Duration is a time.Duration that decodes from strings like "500ms" in
// both environment variables and TOML.
type Duration struct {
	time.Duration
}

// D is shorthand for building a Duration.
func D(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load loads configuration from the optional TOML file and environment
// variables on top of Default().
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// MergeFile overlays the TOML file at path onto cfg. Keys absent from the
// file keep their current values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ResolvePath joins relative paths onto the data directory.
func (s StorageConfig) ResolvePath(path string) string {
	return paths.Resolve(s.DataDir, path)
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "127.0.0.1",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			MaxSizeMB:   10,
			MaxBackups:  3,
			MaxAgeDays:  28,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Storage: StorageConfig{
			DataDir:         paths.DataDir(),
			DurableDSN:      "secure://" + paths.DurableFile,
			DocumentDSN:     "sqlite://" + paths.DocumentDB,
			LocalDSN:        "file://" + paths.LocalFile,
			SessionDSN:      "memory://",
			EncryptionKey:   "textnexus-secure-key-2024",
			KeyPrefix:       "textnexus-",
			QuotaBytes:      5 << 20,
			OpTimeout:       D(5 * time.Second),
			BreakerFailures: 5,
			BreakerTimeout:  D(30 * time.Second),
			Watch:           true,
		},
		Notifications: NotificationConfig{
			AppName:          "TextNexus",
			RestoreDelay:     D(500 * time.Millisecond),
			ConfirmTTL:       D(2 * time.Second),
			QueueSpacing:     D(time.Second),
			QueueLimit:       50,
			BackgroundNotice: true,
			WebhookRetries:   2,
			WebPush: WebPushConfig{
				Subscriber: "mailto:notifications@textnexus.local",
				TTL:        60,
				Retries:    2,
			},
		},
		Sessions: SessionConfig{
			SnapshotInterval: D(30 * time.Second),
		},
	}
}
