package checker

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/l0p7/admitgate/internal/admiterr"
	"github.com/l0p7/admitgate/internal/seccontext"
)

func TestInstrumentLogsPass(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	wrapped := Instrument(&fakeChecker{name: "rate_limit"}, logger)
	require.Equal(t, "rate_limit", wrapped.Name())

	sc := seccontext.New("req-1", "10.0.0.5")
	err := wrapped.Evaluate(context.Background(), newTestRequest(), sc)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "checker evaluated")
	require.Contains(t, buf.String(), "outcome=pass")
	require.Contains(t, buf.String(), "client_ip=10.0.0.x")
}

func TestInstrumentLogsRejection(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	wrapped := Instrument(&fakeChecker{name: "authentication", err: admiterr.AuthenticationFailed{Msg: "no credential"}}, logger)
	sc := seccontext.New("req-2", "10.0.0.6")
	err := wrapped.Evaluate(context.Background(), newTestRequest(), sc)
	require.Error(t, err)
	require.Contains(t, buf.String(), "status=401")
}

func TestInstrumentForwardsInnerTimeout(t *testing.T) {
	inner := &fakeChecker{name: "slow", timeout: 10 * time.Millisecond}
	wrapped := Instrument(inner, slog.New(slog.NewTextHandler(io.Discard, nil)))

	timeoutAware, ok := wrapped.(Timeout)
	require.True(t, ok)
	require.Equal(t, 10*time.Millisecond, timeoutAware.Timeout())
}

func TestTruncateIP(t *testing.T) {
	require.Equal(t, "10.0.0.x", truncateIP("10.0.0.5"))
	require.Equal(t, "2001:db8:.x", truncateIP("2001:db8::1"))
	require.Equal(t, "not-an-ip", truncateIP("not-an-ip"))
}
