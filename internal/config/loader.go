package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the runtime configuration while respecting env > file >
// default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator that honors the env-first contract
// before touching files or defaults.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Load assembles the effective configuration snapshot.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	defaultCfg := DefaultConfig()
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(defaultCfg), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		canonical := map[string]string{
			"server.logging.correlationheader":         "server.logging.correlationHeader",
			"rate_limit.redis.tls.cafile":              "rate_limit.redis.tls.caFile",
			"monitoring.redis_mirror.redis.tls.cafile": "monitoring.redis_mirror.redis.tls.caFile",
		}
		transform := func(s string) string {
			// Double underscores signal a nested path
			// (RATE_LIMIT__REDIS__ADDRESS -> rate_limit.redis.address).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			lower := strings.ToLower(key)
			if mapped, ok := canonical[lower]; ok {
				return mapped
			}
			return lower
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// structToMap converts DefaultConfig into a map for the koanf confmap
// provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"listen": map[string]any{
				"address": cfg.Server.Listen.Address,
				"port":    cfg.Server.Listen.Port,
			},
			"logging": map[string]any{
				"level":             cfg.Server.Logging.Level,
				"format":            cfg.Server.Logging.Format,
				"correlationHeader": cfg.Server.Logging.CorrelationHeader,
			},
		},
		"rate_limit": map[string]any{
			"enabled":                  cfg.RateLimit.Enabled,
			"requests_per_second":      cfg.RateLimit.RequestsPerSecond,
			"burst":                    cfg.RateLimit.Burst,
			"cleanup_interval_seconds": cfg.RateLimit.CleanupInterval,
			"backend":                  cfg.RateLimit.Backend,
		},
		"auth": map[string]any{
			"enabled":      cfg.Auth.Enabled,
			"require_auth": cfg.Auth.RequireAuth,
			"header_name":  cfg.Auth.HeaderName,
			"query_name":   cfg.Auth.QueryName,
		},
		"validation": map[string]any{
			"enabled":          cfg.Validation.Enabled,
			"max_body_bytes":   cfg.Validation.MaxBodyBytes,
			"max_header_bytes": cfg.Validation.MaxHeaderBytes,
		},
		"threat_detection": map[string]any{
			"enabled":             cfg.ThreatDetection.Enabled,
			"block_suspicious":    cfg.ThreatDetection.BlockSuspicious,
			"category_threshold":  cfg.ThreatDetection.CategoryThreshold,
			"aggregate_threshold": cfg.ThreatDetection.AggregateThreshold,
		},
		"monitoring": map[string]any{
			"log_capacity":    cfg.Monitoring.LogCapacity,
			"metrics_enabled": cfg.Monitoring.MetricsEnabled,
		},
	}
}
