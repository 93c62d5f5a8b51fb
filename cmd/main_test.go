package main

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/l0p7/admitgate/internal/authcheck"
	"github.com/l0p7/admitgate/internal/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestBuildRateLimiterDefaultsToMemory(t *testing.T) {
	limiter := buildRateLimiter(newTestLogger(), config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 5,
		Burst:             5,
	})
	t.Cleanup(func() { require.NoError(t, limiter.Close()) })
	require.NotNil(t, limiter)
}

func TestBuildRateLimiterRedisBackend(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("miniredis unavailable in sandbox")
		}
		require.NoError(t, err)
	}
	t.Cleanup(server.Close)

	limiter := buildRateLimiter(newTestLogger(), config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 5,
		Burst:             5,
		Backend:           "redis",
		Redis:             config.RedisConfig{Address: server.Addr()},
	})
	t.Cleanup(func() { require.NoError(t, limiter.Close()) })
	require.NotNil(t, limiter)
}

func TestBuildRateLimiterFallsBackOnRedisFailure(t *testing.T) {
	limiter := buildRateLimiter(newTestLogger(), config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 5,
		Burst:             5,
		Backend:           "redis",
		Redis:             config.RedisConfig{Address: "127.0.0.1:1"},
	})
	t.Cleanup(func() { require.NoError(t, limiter.Close()) })
	require.NotNil(t, limiter)
}

func TestBuildSinkDefaultsToNoMirror(t *testing.T) {
	s := buildSink(newTestLogger(), config.MonitoringConfig{LogCapacity: 10})
	require.NotNil(t, s)
	counters := s.SnapshotCounters()
	require.Equal(t, uint64(0), counters.Total)
}

func TestBuildMessageTemplatesDisabledByDefault(t *testing.T) {
	mt, err := buildMessageTemplates(config.MessagesConfig{})
	require.NoError(t, err)
	require.Nil(t, mt)
}

func TestBuildMessageTemplatesCompilesInline(t *testing.T) {
	mt, err := buildMessageTemplates(config.MessagesConfig{
		Enabled: true,
		Templates: map[string]string{
			"default": "blocked: {{.Reason}}",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, mt)
}

func TestToAuthPrincipalSpecs(t *testing.T) {
	specs := toAuthPrincipalSpecs([]config.PrincipalSpec{
		{UserID: "svc-a", Roles: []string{"reader"}, Bearer: []string{"token-a"}},
	})
	require.Len(t, specs, 1)
	require.Equal(t, "svc-a", specs[0].UserID)

	principals, err := authcheck.CompilePrincipals(specs)
	require.NoError(t, err)
	require.Len(t, principals, 1)
}
