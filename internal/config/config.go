// Package config provides configuration management for the CAS API.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables with standard names (DATABASE_URL, SERVER_PORT, ...)
// 3. Default values
//
// Import Path: approvedpremises.io/cas/internal/config
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the root configuration structure.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Log          LogConfig          `mapstructure:"log"`
	River        RiverConfig        `mapstructure:"river"`
	Security     SecurityConfig     `mapstructure:"security"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Messaging    MessagingConfig    `mapstructure:"messaging"`
	DomainEvents DomainEventsConfig `mapstructure:"domain_events"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Seed         SeedConfig         `mapstructure:"seed"`
	CAS2         CAS2Config         `mapstructure:"cas2"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// ValidateResponses turns on OpenAPI response validation (test/dev only).
	ValidateResponses bool `mapstructure:"validate_responses"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// One pgx pool is shared by repositories, River and the database/sql handle.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RiverConfig contains River queue settings.
type RiverConfig struct {
	MaxWorkers                  int           `mapstructure:"max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
}

// SecurityConfig contains token settings.
type SecurityConfig struct {
	// JWTSigningKey signs tokens issued by the dev token helper and is the
	// first key tried when verifying.
	JWTSigningKey       string        `mapstructure:"jwt_signing_key"`
	JWTVerificationKeys []string      `mapstructure:"jwt_verification_keys"`
	JWTIssuer           string        `mapstructure:"jwt_issuer"`
	TokenLifetime       time.Duration `mapstructure:"token_lifetime"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize int `mapstructure:"general_pool_size"`
	SeedPoolSize    int `mapstructure:"seed_pool_size"`
}

// MessagingConfig contains RabbitMQ settings. An empty URL disables the broker.
type MessagingConfig struct {
	URL              string        `mapstructure:"url"`
	DomainExchange   string        `mapstructure:"domain_exchange"`
	InboundExchange  string        `mapstructure:"inbound_exchange"`
	InboundQueue     string        `mapstructure:"inbound_queue"`
	InboundKeys      []string      `mapstructure:"inbound_keys"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
}

// Enabled reports whether a broker is configured.
func (c MessagingConfig) Enabled() bool { return strings.TrimSpace(c.URL) != "" }

// DomainEventsConfig controls external publication of domain events.
type DomainEventsConfig struct {
	PublishEnabled bool   `mapstructure:"publish_enabled"`
	DetailURLBase  string `mapstructure:"detail_url_base"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
}

// NotifyConfig contains email settings.
type NotifyConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	SendGridAPIKey       string `mapstructure:"sendgrid_api_key"`
	FromAddress          string `mapstructure:"from_address"`
	FromName             string `mapstructure:"from_name"`
	CAS2ReferralsAddress string `mapstructure:"cas2_referrals_address"`
	FrontendURL          string `mapstructure:"frontend_url"`
}

// RedisConfig contains cache settings. An empty URL disables caching.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	TTL          time.Duration `mapstructure:"ttl"`
}

// SeedConfig contains CSV seeding settings.
type SeedConfig struct {
	Directory string `mapstructure:"directory"`
}

// CAS2Config contains CAS2 housekeeping settings.
type CAS2Config struct {
	// AbandonAfter marks unsubmitted applications abandoned once they are this old.
	AbandonAfter time.Duration `mapstructure:"abandon_after"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cas-api")

	// database.max_conns → DATABASE_MAX_CONNS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.ensureSecrets(); err != nil {
		return nil, fmt.Errorf("ensure secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if len(c.Security.JWTSigningKey) < 32 {
		return fmt.Errorf("security.jwt_signing_key must be at least 32 characters")
	}
	if c.DomainEvents.PublishEnabled && !c.Messaging.Enabled() {
		return fmt.Errorf("domain_events.publish_enabled requires messaging.url")
	}
	if c.DomainEvents.PublishEnabled && strings.TrimSpace(c.Messaging.DomainExchange) == "" {
		return fmt.Errorf("domain_events.publish_enabled requires messaging.domain_exchange")
	}
	if c.Notify.Enabled && strings.TrimSpace(c.Notify.SendGridAPIKey) == "" {
		return fmt.Errorf("notify.enabled requires notify.sendgrid_api_key")
	}
	if c.Worker.SeedPoolSize < 1 {
		return fmt.Errorf("worker.seed_pool_size must be positive")
	}
	return nil
}

// ensureSecrets generates a signing key when none is configured.
func (c *Config) ensureSecrets() error {
	if c.Security.JWTSigningKey == "" {
		secret, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate jwt signing key: %w", err)
		}
		c.Security.JWTSigningKey = secret
		logBootstrapWarn(
			"auto-generated jwt_signing_key; set SECURITY_JWT_SIGNING_KEY to keep tokens valid across restarts",
			zap.Int("length", len(secret)),
		)
	}
	return nil
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

// generateSecureRandomHex produces a hex-encoded string of n random bytes.
func generateSecureRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.validate_responses", false)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "cas")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "cas")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 30)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// River
	v.SetDefault("river.max_workers", 10)
	v.SetDefault("river.completed_job_retention_period", "24h")

	// Security
	v.SetDefault("security.jwt_verification_keys", []string{})
	v.SetDefault("security.jwt_issuer", "cas-api")
	v.SetDefault("security.token_lifetime", "1h")

	// Worker pools
	v.SetDefault("worker.general_pool_size", 100)
	v.SetDefault("worker.seed_pool_size", 2)

	// Messaging
	v.SetDefault("messaging.url", "")
	v.SetDefault("messaging.domain_exchange", "cas.domain-events")
	v.SetDefault("messaging.inbound_exchange", "hmpps.domain-events")
	v.SetDefault("messaging.inbound_queue", "cas.inbound-events")
	v.SetDefault("messaging.inbound_keys", []string{"offender-management.allocation.changed"})
	v.SetDefault("messaging.reconnect_backoff", "5s")

	// Domain events
	v.SetDefault("domain_events.publish_enabled", false)
	v.SetDefault("domain_events.detail_url_base", "http://localhost:8080/events")
	v.SetDefault("domain_events.max_attempts", 5)

	// Notify
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.from_address", "no-reply@cas.local")
	v.SetDefault("notify.from_name", "Community Accommodation Services")
	v.SetDefault("notify.cas2_referrals_address", "referrals@cas.local")
	v.SetDefault("notify.frontend_url", "http://localhost:3000")

	// Redis
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 1)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.ttl", "10m")

	// Seed
	v.SetDefault("seed.directory", "./seed")

	// CAS2
	v.SetDefault("cas2.abandon_after", "2160h")
}
