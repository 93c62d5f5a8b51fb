package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/l0p7/admitgate/internal/authcheck"
	"github.com/l0p7/admitgate/internal/checker"
	"github.com/l0p7/admitgate/internal/config"
	"github.com/l0p7/admitgate/internal/expr"
	"github.com/l0p7/admitgate/internal/logging"
	"github.com/l0p7/admitgate/internal/metrics"
	"github.com/l0p7/admitgate/internal/pipeline"
	"github.com/l0p7/admitgate/internal/ratelimit"
	"github.com/l0p7/admitgate/internal/redisconn"
	"github.com/l0p7/admitgate/internal/scorer"
	"github.com/l0p7/admitgate/internal/server"
	"github.com/l0p7/admitgate/internal/sink"
	"github.com/l0p7/admitgate/internal/templates"
	"github.com/l0p7/admitgate/internal/validation"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "ADMITGATE", "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	var metricsRecorder *metrics.Recorder
	if cfg.Monitoring.MetricsEnabled {
		metricsRecorder = metrics.NewRecorder(promRegistry)
	}

	limiter := buildRateLimiter(logger, cfg.RateLimit)
	defer func() {
		if err := limiter.Close(); err != nil {
			logger.Error("rate limiter shutdown failed", slog.Any("error", err))
		}
	}()
	rateLimitChecker := ratelimit.NewChecker(limiter, cfg.RateLimit.Enabled)

	principals, err := authcheck.CompilePrincipals(toAuthPrincipalSpecs(cfg.Auth.Principals))
	if err != nil {
		log.Fatalf("failed to compile auth principals: %v", err)
	}
	authChecker := authcheck.NewChecker(authcheck.Config{
		Enabled:     cfg.Auth.Enabled,
		RequireAuth: cfg.Auth.RequireAuth,
		HeaderName:  cfg.Auth.HeaderName,
		QueryName:   cfg.Auth.QueryName,
	}, principals)

	validationChecker := validation.NewChecker(validation.Config{
		Enabled:        cfg.Validation.Enabled,
		MaxBodyBytes:   cfg.Validation.MaxBodyBytes,
		MaxHeaderBytes: cfg.Validation.MaxHeaderBytes,
		AllowedMethods: cfg.Validation.AllowedMethods,
	})

	threatScorer := scorer.New(scorer.Config{
		Enabled:            cfg.ThreatDetection.Enabled,
		BlockSuspicious:    cfg.ThreatDetection.BlockSuspicious,
		CategoryThreshold:  cfg.ThreatDetection.CategoryThreshold,
		AggregateThreshold: cfg.ThreatDetection.AggregateThreshold,
	}, nil)
	if cfg.ThreatDetection.OverlayFile != "" {
		env, err := expr.NewEnvironment()
		if err != nil {
			log.Fatalf("failed to build threat detection expression environment: %v", err)
		}
		watcher, err := scorer.WatchOverlay(ctx, threatScorer, env, cfg.ThreatDetection.OverlayFile, func(err error) {
			logger.Error("threat detection overlay reload failed", slog.Any("error", err))
		})
		if err != nil {
			log.Fatalf("failed to load threat detection overlay: %v", err)
		}
		defer watcher.Stop()
	}
	threatChecker := scorer.NewChecker(threatScorer)

	obsSink := buildSink(logger, cfg.Monitoring)

	pipe := pipeline.New([]checker.Checker{
		checker.Instrument(rateLimitChecker, logger),
		checker.Instrument(authChecker, logger),
		checker.Instrument(validationChecker, logger),
		checker.Instrument(threatChecker, logger),
	}, obsSink)
	pipe.SetMetricsRecorder(metricsRecorder)

	if mt, err := buildMessageTemplates(cfg.Messages); err != nil {
		log.Fatalf("failed to compile rejection message templates: %v", err)
	} else if mt != nil {
		pipe.SetMessageTemplates(mt)
	}

	var metricsHandler http.Handler
	if metricsRecorder != nil {
		metricsHandler = metricsRecorder.Handler()
	}
	mux := server.NewRouter(pipe, metricsHandler)

	srv, err := server.New(cfg, logger, mux)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

func buildRateLimiter(logger *slog.Logger, cfg config.RateLimitConfig) ratelimit.Limiter {
	backend := cfg.Backend
	if backend == "" {
		backend = "memory"
	}
	rlCfg := ratelimit.Config{
		Enabled:           cfg.Enabled,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		CleanupInterval:   cfg.CleanupInterval,
		Backend:           backend,
	}
	switch backend {
	case "redis":
		redisLimiter, err := ratelimit.NewRedisLimiter(rlCfg, ratelimit.RedisConfig{
			Redis: redisconn.Config{
				Address:  cfg.Redis.Address,
				Username: cfg.Redis.Username,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				TLS: redisconn.TLSConfig{
					Enabled: cfg.Redis.TLS.Enabled,
					CAFile:  cfg.Redis.TLS.CAFile,
				},
			},
		})
		if err != nil {
			logger.Error("redis rate limiter initialization failed", slog.Any("error", err))
			logger.Info("falling back to in-memory rate limiter")
			return ratelimit.NewMemoryLimiter(rlCfg)
		}
		logger.Info("using redis rate limiter", slog.String("address", cfg.Redis.Address))
		return redisLimiter
	default:
		logger.Info("using in-memory rate limiter")
		return ratelimit.NewMemoryLimiter(rlCfg)
	}
}

func buildSink(logger *slog.Logger, cfg config.MonitoringConfig) *sink.Sink {
	var mirror sink.Mirror
	if cfg.RedisMirror.Enabled {
		client, err := redisconn.New(redisconn.Config{
			Address:  cfg.RedisMirror.Redis.Address,
			Username: cfg.RedisMirror.Redis.Username,
			Password: cfg.RedisMirror.Redis.Password,
			DB:       cfg.RedisMirror.Redis.DB,
			TLS: redisconn.TLSConfig{
				Enabled: cfg.RedisMirror.Redis.TLS.Enabled,
				CAFile:  cfg.RedisMirror.Redis.TLS.CAFile,
			},
		})
		if err != nil {
			logger.Error("redis observation mirror initialization failed", slog.Any("error", err))
		} else {
			key := cfg.RedisMirror.Key
			if key == "" {
				key = "admitgate:observations"
			}
			mirror = sink.NewRedisMirror(client, key, cfg.RedisMirror.Capacity)
		}
	}
	return sink.New(cfg.LogCapacity, mirror, func(err error) {
		logger.Warn("observation mirror write failed", slog.Any("error", err))
	})
}

// buildMessageTemplates compiles the operator's rejection-message
// templates, if configured. It returns (nil, nil) when messaging is
// disabled, leaving the pipeline to surface the taxonomy's default Safe()
// strings.
func buildMessageTemplates(cfg config.MessagesConfig) (*pipeline.MessageTemplates, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	var sandbox *templates.Sandbox
	if cfg.SandboxDir != "" {
		var err error
		sandbox, err = templates.NewSandbox(cfg.SandboxDir, cfg.AllowEnv, cfg.AllowedEnv)
		if err != nil {
			return nil, fmt.Errorf("messages: sandbox: %w", err)
		}
	}
	renderer := templates.NewRenderer(sandbox)
	mt := pipeline.NewMessageTemplates(renderer)
	for reason, source := range cfg.Templates {
		if err := mt.Compile(reason, source); err != nil {
			return nil, fmt.Errorf("messages: template %q: %w", reason, err)
		}
	}
	return mt, nil
}

func toAuthPrincipalSpecs(specs []config.PrincipalSpec) []authcheck.PrincipalSpec {
	out := make([]authcheck.PrincipalSpec, len(specs))
	for i, s := range specs {
		out[i] = authcheck.PrincipalSpec{
			UserID:   s.UserID,
			Roles:    s.Roles,
			Bearer:   s.Bearer,
			Username: s.Username,
			Password: s.Password,
			Header:   s.Header,
			Query:    s.Query,
		}
	}
	return out
}
