package ratelimit

import (
	"context"
	"net/http"

	"github.com/l0p7/admitgate/internal/admiterr"
	"github.com/l0p7/admitgate/internal/seccontext"
)

// Checker adapts a Limiter to the pipeline's first fixed stage. retry_after
// defaults to 60 seconds unless the limiter reports its own hint (§4.1).
type Checker struct {
	limiter Limiter
	enabled bool
}

// NewChecker wraps limiter as the rate-limit stage. enabled mirrors
// rate_limit.enabled; when false the checker is still constructed (for a
// uniform pipeline) but always allows.
func NewChecker(limiter Limiter, enabled bool) *Checker {
	return &Checker{limiter: limiter, enabled: enabled}
}

func (c *Checker) Name() string { return "rate_limit" }

func (c *Checker) Evaluate(ctx context.Context, r *http.Request, sc *seccontext.Context) error {
	if !c.enabled {
		return nil
	}
	result, err := c.limiter.Allow(ctx, sc.ClientIP)
	if err != nil {
		return admiterr.InternalError{Msg: "rate limiter: " + err.Error()}
	}
	if result.Allowed {
		return nil
	}
	retryAfter := result.RetryAfter
	if retryAfter <= 0 {
		retryAfter = 60
	}
	return admiterr.RateLimitExceeded{RetryAfter: retryAfter}
}
