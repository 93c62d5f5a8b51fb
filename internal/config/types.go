// Package config hydrates the admission pipeline's runtime configuration,
// grounded on the pack's koanf env>file>default precedence loader, with
// the schema replaced to match the rate_limit.*/auth.*/validation.*/
// threat_detection.*/monitoring.* namespaces.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds every configuration namespace the pipeline depends on.
type Config struct {
	Server          ServerConfig          `koanf:"server"`
	RateLimit       RateLimitConfig       `koanf:"rate_limit"`
	Auth            AuthConfig            `koanf:"auth"`
	Validation      ValidationConfig      `koanf:"validation"`
	ThreatDetection ThreatDetectionConfig `koanf:"threat_detection"`
	Monitoring      MonitoringConfig      `koanf:"monitoring"`
	Messages        MessagesConfig        `koanf:"messages"`
}

// ServerConfig collects the bootstrap knobs: listen address and logging.
type ServerConfig struct {
	Listen  ListenConfig  `koanf:"listen"`
	Logging LoggingConfig `koanf:"logging"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level, format, and correlation ID wiring.
type LoggingConfig struct {
	Level             string `koanf:"level"`
	Format            string `koanf:"format"`
	CorrelationHeader string `koanf:"correlationHeader"`
}

// RateLimitConfig is the rate_limit.* namespace backing the Rate Limiter
// (C4).
type RateLimitConfig struct {
	Enabled           bool        `koanf:"enabled"`
	RequestsPerSecond float64     `koanf:"requests_per_second"`
	Burst             int         `koanf:"burst"`
	CleanupInterval   int         `koanf:"cleanup_interval_seconds"`
	Backend           string      `koanf:"backend"` // "memory" or "redis"
	Redis             RedisConfig `koanf:"redis"`
}

// AuthConfig is the auth.* namespace backing the Authenticator (C5).
type AuthConfig struct {
	Enabled     bool            `koanf:"enabled"`
	RequireAuth bool            `koanf:"require_auth"`
	HeaderName  string          `koanf:"header_name"`
	QueryName   string          `koanf:"query_name"`
	Principals  []PrincipalSpec `koanf:"principals"`
}

// PrincipalSpec mirrors internal/authcheck.PrincipalSpec for koanf
// unmarshalling; the authcheck package owns the authoritative type, this
// is the config-layer copy converted at bootstrap.
type PrincipalSpec struct {
	UserID   string   `koanf:"user_id"`
	Roles    []string `koanf:"roles"`
	Bearer   []string `koanf:"bearer"`
	Username []string `koanf:"username"`
	Password []string `koanf:"password"`
	Header   []string `koanf:"header"`
	Query    []string `koanf:"query"`
}

// ValidationConfig is the validation.* namespace backing the Input
// Validator (C6).
type ValidationConfig struct {
	Enabled        bool     `koanf:"enabled"`
	MaxBodyBytes   int64    `koanf:"max_body_bytes"`
	MaxHeaderBytes int      `koanf:"max_header_bytes"`
	AllowedMethods []string `koanf:"allowed_methods"`
}

// ThreatDetectionConfig is the threat_detection.* namespace backing the
// Threat Scorer (C7).
type ThreatDetectionConfig struct {
	Enabled            bool   `koanf:"enabled"`
	BlockSuspicious    bool   `koanf:"block_suspicious"`
	CategoryThreshold  uint32 `koanf:"category_threshold"`
	AggregateThreshold uint32 `koanf:"aggregate_threshold"`
	OverlayFile        string `koanf:"overlay_file"` // optional hot-reloaded rule overlay
}

// MonitoringConfig is the monitoring.* namespace backing the Observation
// Sink (C9) and Prometheus exposition.
type MonitoringConfig struct {
	LogCapacity    int               `koanf:"log_capacity"`
	MetricsEnabled bool              `koanf:"metrics_enabled"`
	RedisMirror    RedisMirrorConfig `koanf:"redis_mirror"`
}

// RedisMirrorConfig configures the Sink's optional best-effort Redis
// mirror.
type RedisMirrorConfig struct {
	Enabled  bool        `koanf:"enabled"`
	Key      string      `koanf:"key"`
	Capacity int64       `koanf:"capacity"`
	Redis    RedisConfig `koanf:"redis"`
}

// RedisConfig is the shared Redis connection shape used by both the
// distributed rate limiter and the Sink's mirror.
type RedisConfig struct {
	Address  string         `koanf:"address"`
	Username string         `koanf:"username"`
	Password string         `koanf:"password"`
	DB       int            `koanf:"db"`
	TLS      RedisTLSConfig `koanf:"tls"`
}

// RedisTLSConfig optionally enables TLS for a Redis connection.
type RedisTLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// MessagesConfig is the messages.* namespace backing rejection-message
// templating. Disabled by default, in which case rejections surface the
// taxonomy's own Safe() strings unmodified.
type MessagesConfig struct {
	Enabled    bool              `koanf:"enabled"`
	SandboxDir string            `koanf:"sandbox_dir"` // optional; required when allow_env is set
	AllowEnv   bool              `koanf:"allow_env"`
	AllowedEnv []string          `koanf:"allowed_env"`
	Templates  map[string]string `koanf:"templates"` // Safe() reason (or "default") -> inline template source
}

// Validate enforces invariants that keep the runtime predictable before
// serving traffic.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.Server.Listen.Port <= 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen.port invalid: %d", c.Server.Listen.Port)
	}

	if c.RateLimit.Enabled {
		backend := strings.ToLower(strings.TrimSpace(c.RateLimit.Backend))
		switch backend {
		case "", "memory":
		case "redis":
			if strings.TrimSpace(c.RateLimit.Redis.Address) == "" {
				return errors.New("config: rate_limit.redis.address required for redis backend")
			}
		default:
			return fmt.Errorf("config: rate_limit.backend unsupported: %s", c.RateLimit.Backend)
		}
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("config: rate_limit.requests_per_second invalid: %v", c.RateLimit.RequestsPerSecond)
		}
	}

	if c.ThreatDetection.Enabled {
		if c.ThreatDetection.CategoryThreshold == 0 {
			return errors.New("config: threat_detection.category_threshold must be nonzero")
		}
		if c.ThreatDetection.AggregateThreshold == 0 {
			return errors.New("config: threat_detection.aggregate_threshold must be nonzero")
		}
	}

	if c.Monitoring.RedisMirror.Enabled && strings.TrimSpace(c.Monitoring.RedisMirror.Redis.Address) == "" {
		return errors.New("config: monitoring.redis_mirror.redis.address required when enabled")
	}

	if c.Messages.Enabled && c.Messages.AllowEnv && strings.TrimSpace(c.Messages.SandboxDir) == "" {
		return errors.New("config: messages.sandbox_dir required when messages.allow_env is set")
	}

	return nil
}

// DefaultConfig returns the baseline values matching §4 thresholds and the
// pack's conservative defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: ListenConfig{Address: "0.0.0.0", Port: 8080},
			Logging: LoggingConfig{
				Level:             "info",
				Format:            "json",
				CorrelationHeader: "X-Request-ID",
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 50,
			Burst:             100,
			CleanupInterval:   300,
			Backend:           "memory",
		},
		Auth: AuthConfig{
			Enabled:     true,
			RequireAuth: false,
			HeaderName:  "X-Api-Key",
		},
		Validation: ValidationConfig{
			Enabled:        true,
			MaxBodyBytes:   10 << 20,
			MaxHeaderBytes: 1 << 20,
		},
		ThreatDetection: ThreatDetectionConfig{
			Enabled:            true,
			BlockSuspicious:    false,
			CategoryThreshold:  40,
			AggregateThreshold: 100,
		},
		Monitoring: MonitoringConfig{
			LogCapacity:    1024,
			MetricsEnabled: true,
		},
	}
}
