// Package checker defines the uniform contract every pipeline stage
// satisfies, modeled on the teacher's pipeline.Agent interface but narrowed
// to the admission chain's read-only-request, mutate-Context shape.
package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/l0p7/admitgate/internal/admiterr"
	"github.com/l0p7/admitgate/internal/seccontext"
)

// Checker is satisfied by every stage the Pipeline Orchestrator composes.
// Implementations may read the request, never mutate it; they may append
// to sc.ThreatScore, call sc.WithUser (authenticator only), and annotate
// sc.Metadata. Implementations must be safe for concurrent invocation from
// many admissions.
type Checker interface {
	Name() string
	Evaluate(ctx context.Context, r *http.Request, sc *seccontext.Context) error
}

// Timeout is implemented by checkers with a blocking dependency; the
// timeout is read by Invoke and bounds the checker's own context.
type Timeout interface {
	Timeout() time.Duration
}

// Invoke runs a checker with panic recovery and (if the checker declares
// one) a bounded timeout, converting either into the appropriate taxonomy
// member rather than letting it escape the stage boundary.
func Invoke(ctx context.Context, c Checker, r *http.Request, sc *seccontext.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = admiterr.InternalError{Msg: fmt.Sprintf("%s: panic: %v", c.Name(), rec)}
		}
	}()

	runCtx := ctx
	var cancel context.CancelFunc
	if t, ok := c.(Timeout); ok && t.Timeout() > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t.Timeout())
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- admiterr.InternalError{Msg: fmt.Sprintf("%s: panic: %v", c.Name(), rec)}
				return
			}
		}()
		done <- c.Evaluate(runCtx, r, sc)
	}()

	select {
	case err = <-done:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			if runCtx.Err() != nil {
				return admiterr.RequestTimeout{Msg: c.Name() + " exceeded its configured timeout"}
			}
			// An opaque deadline from the checker's own dependency.
			return admiterr.InternalError{Msg: c.Name() + ": " + err.Error()}
		}
		return err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			// Cancellation came from the caller, not our own timeout; let
			// the orchestrator observe ctx.Err() itself.
			return ctx.Err()
		}
		return admiterr.RequestTimeout{Msg: c.Name() + " exceeded its configured timeout"}
	}
}
