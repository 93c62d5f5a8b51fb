package checker

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/l0p7/admitgate/internal/admiterr"
	"github.com/l0p7/admitgate/internal/seccontext"
)

// Instrumented wraps a Checker with structured logging around Evaluate,
// modeled on the teacher's instrumentedAgent: latency, outcome, a
// cardinality-truncated client IP, and the request's correlation ID are
// logged at Info level after every stage invocation.
type Instrumented struct {
	inner  Checker
	logger *slog.Logger
}

// Instrument wraps c with a logger scoped to its checker name. Pass the
// result to the Pipeline in place of the bare checker.
func Instrument(c Checker, logger *slog.Logger) Checker {
	return &Instrumented{inner: c, logger: logger.With(slog.String("checker", c.Name()))}
}

func (i *Instrumented) Name() string { return i.inner.Name() }

// Timeout forwards the wrapped checker's own declared timeout, if any, so
// Invoke still bounds the inner Evaluate call the same as if it weren't
// wrapped.
func (i *Instrumented) Timeout() time.Duration {
	if t, ok := i.inner.(Timeout); ok {
		return t.Timeout()
	}
	return 0
}

func (i *Instrumented) Evaluate(ctx context.Context, r *http.Request, sc *seccontext.Context) error {
	start := time.Now()
	err := i.inner.Evaluate(ctx, r, sc)
	duration := time.Since(start)

	attrs := []slog.Attr{
		slog.Float64("latency_ms", float64(duration)/float64(time.Millisecond)),
		slog.String("client_ip", truncateIP(sc.ClientIP)),
		slog.String("request_id", sc.RequestID),
	}
	if err != nil {
		attrs = append(attrs,
			slog.Int("status", admiterr.StatusCode(err)),
			slog.String("outcome", admiterr.SafeMessage(err)),
		)
	} else {
		attrs = append(attrs, slog.String("outcome", "pass"))
	}
	i.logger.LogAttrs(ctx, slog.LevelInfo, "checker evaluated", attrs...)
	return err
}

// truncateIP drops the last address component (the IPv4 host octet or the
// final IPv6 hextet) so per-client addresses don't blow up log cardinality,
// the way the teacher truncates endpoint identifiers before logging them.
func truncateIP(ip string) string {
	idx := strings.LastIndex(ip, ".")
	if idx == -1 {
		idx = strings.LastIndex(ip, ":")
	}
	if idx == -1 {
		return ip
	}
	return ip[:idx] + ".x"
}
