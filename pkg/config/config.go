package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/skillforge-io/course-builder/pkg/llm"
)

// Config holds all configuration for course-builder.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr    string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port        string `yaml:"port" env:"PORT" env-default:"8080"`
	Env         string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME" env-default:"course-builder"`
	Version     string `yaml:"-"` // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Course store (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Build lock store. An empty host disables it.
	Redis RedisConfig `yaml:"redis"`

	// Completion service used for query synthesis and lesson grouping
	LLM LLMConfig `yaml:"llm"`

	// Peer service endpoints
	Peers PeersConfig `yaml:"peers"`

	// Canned peer data used when a peer is unreachable
	Fallback FallbackConfig `yaml:"fallback"`

	// MigrationsPath overrides the embedded migrations when set.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:""`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"course_builder"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"course_builder"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds the optional Redis connection used for build locks.
type RedisConfig struct {
	Host                string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port                int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password            string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB                  int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	BuildLockTTLSeconds int    `yaml:"build_lock_ttl_seconds" env:"REDIS_BUILD_LOCK_TTL_SECONDS" env-default:"300"`
}

// Enabled reports whether a Redis host is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// BuildLockTTL returns the build lock expiry.
func (c *RedisConfig) BuildLockTTL() time.Duration {
	return time.Duration(c.BuildLockTTLSeconds) * time.Second
}

// LLMConfig selects the completion provider and its tuning.
type LLMConfig struct {
	Provider             string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL              string  `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model                string  `yaml:"model" env:"LLM_MODEL" env-default:""`
	APIKey               string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	MaxTokens            int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"2048"`
	SynthesisTemperature float64 `yaml:"synthesis_temperature" env:"LLM_SYNTHESIS_TEMPERATURE" env-default:"0.1"`
	GroupingTemperature  float64 `yaml:"grouping_temperature" env:"LLM_GROUPING_TEMPERATURE" env-default:"0.2"`
	// BreakerThreshold is the number of consecutive failures that opens the circuit.
	BreakerThreshold    int `yaml:"breaker_threshold" env:"LLM_BREAKER_THRESHOLD" env-default:"5"`
	BreakerResetSeconds int `yaml:"breaker_reset_seconds" env:"LLM_BREAKER_RESET_SECONDS" env-default:"30"`
}

// BreakerResetAfter returns how long an open circuit waits before a probe.
func (c *LLMConfig) BreakerResetAfter() time.Duration {
	return time.Duration(c.BreakerResetSeconds) * time.Second
}

// PeersConfig holds the base URLs of the peer services this engine calls.
// An empty URL leaves that peer unconfigured; calls to it fall back or fail.
type PeersConfig struct {
	LearnerAIURL     string `yaml:"learner_ai_url" env:"PEER_LEARNER_AI_URL" env-default:""`
	ContentStudioURL string `yaml:"content_studio_url" env:"PEER_CONTENT_STUDIO_URL" env-default:""`
	AssessmentURL    string `yaml:"assessment_url" env:"PEER_ASSESSMENT_URL" env-default:""`
	TimeoutSeconds   int    `yaml:"timeout_seconds" env:"PEER_TIMEOUT_SECONDS" env-default:"30"`
}

// Timeout returns the per-exchange peer timeout.
func (c *PeersConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FallbackConfig controls canned peer data.
type FallbackConfig struct {
	Enabled bool `yaml:"enabled" env:"FALLBACK_ENABLED" env-default:"true"`
	// DataFile replaces the embedded fallback document when set.
	DataFile string `yaml:"data_file" env:"FALLBACK_DATA_FILE" env-default:""`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, REDIS_PASSWORD, LLM_API_KEY) must come from environment
// variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Local services are reachable from a container only through the host gateway.
	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	cfg.Redis.Host = ResolveHostForDocker(cfg.Redis.Host)
	cfg.Peers.LearnerAIURL = ResolveURLForDocker(cfg.Peers.LearnerAIURL)
	cfg.Peers.ContentStudioURL = ResolveURLForDocker(cfg.Peers.ContentStudioURL)
	cfg.Peers.AssessmentURL = ResolveURLForDocker(cfg.Peers.AssessmentURL)

	return cfg, nil
}

// Validate checks values cleanenv cannot express as defaults.
func (c *Config) Validate() error {
	if !llm.IsValidProvider(c.LLM.Provider) {
		return fmt.Errorf("unknown llm provider %q (want one of %v)", c.LLM.Provider, llm.ValidProviders)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Peers.TimeoutSeconds <= 0 {
		return fmt.Errorf("peers timeout_seconds must be positive")
	}
	for name, raw := range map[string]string{
		"learner_ai_url":     c.Peers.LearnerAIURL,
		"content_studio_url": c.Peers.ContentStudioURL,
		"assessment_url":     c.Peers.AssessmentURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("peers %s must be an absolute URL", name)
		}
	}
	if err := c.validateTLS(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist and be readable.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	// Both must be provided together or both empty
	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// If both provided, verify files exist (actual readability checked by tls.LoadX509KeyPair at startup)
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// ListenAddr returns the host:port the server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}

// URL returns a PostgreSQL connection URL.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}
