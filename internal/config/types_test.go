package config

import "testing"

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}

	invalidPort := cfg
	invalidPort.Server.Listen.Port = -1
	if err := invalidPort.Validate(); err == nil {
		t.Fatalf("expected failure when port is invalid")
	}

	missingRedisAddr := cfg
	missingRedisAddr.RateLimit.Backend = "redis"
	if err := missingRedisAddr.Validate(); err == nil {
		t.Fatalf("expected failure when redis backend has no address")
	}

	zeroThreshold := cfg
	zeroThreshold.ThreatDetection.CategoryThreshold = 0
	if err := zeroThreshold.Validate(); err == nil {
		t.Fatalf("expected failure when category threshold is zero")
	}

	missingSandbox := cfg
	missingSandbox.Messages.Enabled = true
	missingSandbox.Messages.AllowEnv = true
	if err := missingSandbox.Validate(); err == nil {
		t.Fatalf("expected failure when messages.allow_env is set without a sandbox_dir")
	}

	withSandbox := cfg
	withSandbox.Messages.Enabled = true
	withSandbox.Messages.AllowEnv = true
	withSandbox.Messages.SandboxDir = "/tmp/templates"
	if err := withSandbox.Validate(); err != nil {
		t.Fatalf("expected success when messages.sandbox_dir is set, got %v", err)
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.Listen.Address != "0.0.0.0" {
		t.Errorf("expected listen address 0.0.0.0, got %q", cfg.Server.Listen.Address)
	}
	if cfg.Server.Listen.Port != 8080 {
		t.Errorf("expected listen port 8080, got %d", cfg.Server.Listen.Port)
	}
	if cfg.Server.Logging.Level != "info" {
		t.Errorf("expected logging level info, got %q", cfg.Server.Logging.Level)
	}
	if cfg.RateLimit.RequestsPerSecond != 50 {
		t.Errorf("expected 50 requests per second, got %v", cfg.RateLimit.RequestsPerSecond)
	}
	if cfg.ThreatDetection.CategoryThreshold != 40 {
		t.Errorf("expected category threshold 40, got %d", cfg.ThreatDetection.CategoryThreshold)
	}
	if cfg.ThreatDetection.AggregateThreshold != 100 {
		t.Errorf("expected aggregate threshold 100, got %d", cfg.ThreatDetection.AggregateThreshold)
	}
	if cfg.Monitoring.LogCapacity != 1024 {
		t.Errorf("expected log capacity 1024, got %d", cfg.Monitoring.LogCapacity)
	}
}
