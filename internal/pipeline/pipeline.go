// Package pipeline implements the Pipeline Orchestrator (C8): composition
// of the fixed-order checker stages behind a single Admit call, grounded
// on the pack's agent-chain runtime but replacing its dynamic agent
// registry with a fixed, spec-ordered slice since SPEC_FULL.md's stage
// order is not configurable per request.
package pipeline

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/l0p7/admitgate/internal/admiterr"
	"github.com/l0p7/admitgate/internal/checker"
	"github.com/l0p7/admitgate/internal/clientip"
	"github.com/l0p7/admitgate/internal/metrics"
	"github.com/l0p7/admitgate/internal/seccontext"
	"github.com/l0p7/admitgate/internal/sink"
)

// Stage names the fixed pipeline positions. Admit does not consult it:
// checkers are invoked strictly in slice order, and a failing checker is
// classified for the Sink's dedicated counters by its Name() (see
// outcomeFor).
type Stage int

const (
	StageRateLimit Stage = iota
	StageAuthentication
	StageValidation
	StageThreatDetection
	StageOther
)

// Pipeline composes the fixed admission stages and records an Observation
// for every admission, admitted or blocked.
type Pipeline struct {
	stages   []checker.Checker
	sink     *sink.Sink
	messages *MessageTemplates
	metrics  *metrics.Recorder
}

// New builds a Pipeline from stages in the exact order they must run.
// Passing stages out of §4.1 order changes which rejection wins a request
// that trips more than one check; callers are expected to pass
// rate-limit, authentication, validation, threat-detection in that order.
func New(stages []checker.Checker, s *sink.Sink) *Pipeline {
	return &Pipeline{stages: stages, sink: s}
}

// SetMessageTemplates installs operator-configured rejection message
// templates. Leaving it unset (the default) means every rejection
// surfaces the taxonomy's own Safe() string.
func (p *Pipeline) SetMessageTemplates(mt *MessageTemplates) {
	p.messages = mt
}

// SetMetricsRecorder installs the Prometheus recorder admissions report
// to. Leaving it unset (the default) means Admit runs without emitting
// admitgate_admission_* observations.
func (p *Pipeline) SetMetricsRecorder(r *metrics.Recorder) {
	p.metrics = r
}

// renderReason returns the message to surface to a requester for a
// rejection: an operator template if one applies, otherwise the
// taxonomy's default Safe() string.
func (p *Pipeline) renderReason(err error, requestID string) string {
	if p.messages == nil {
		return admiterr.SafeMessage(err)
	}
	return p.messages.Render(err, requestID)
}

// Admit runs every stage in order against r, short-circuiting on the
// first failing stage. It never panics: checker.Invoke recovers panics
// inside each stage and converts them to admiterr.InternalError.
func (p *Pipeline) Admit(ctx context.Context, r *http.Request) (*seccontext.Context, error) {
	start := time.Now()
	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	sc := seccontext.New(requestID, clientip.From(r))

	var failErr error
	var failedOutcome sink.Outcome = sink.OutcomeOther
	for _, c := range p.stages {
		if err := checker.Invoke(ctx, c, r, sc); err != nil {
			failErr = err
			failedOutcome = outcomeFor(c.Name())
			break
		}
	}

	rec := sink.Record{
		ID:          requestID,
		Timestamp:   start,
		Method:      r.Method,
		Path:        r.URL.Path,
		ClientIP:    sc.ClientIP,
		UserAgent:   r.Header.Get("User-Agent"),
		UserID:      sc.UserID,
		ThreatScore: float64(sc.ThreatScore),
		Headers:     flattenHeaders(r.Header),
	}

	if failErr != nil {
		if errors.Is(failErr, context.Canceled) || errors.Is(failErr, context.DeadlineExceeded) {
			rec.Blocked = true
			rec.StatusCode = 499
			rec.Reason = "cancelled"
			p.sink.Record(rec, sink.OutcomeOther)
			p.metrics.ObserveAdmission("cancelled", time.Since(start))
			p.metrics.ObserveThreatScore(float64(sc.ThreatScore))
			return sc, failErr
		}
		rec.Blocked = true
		rec.StatusCode = admiterr.StatusCode(failErr)
		rec.Reason = p.renderReason(failErr, requestID)
		p.sink.Record(rec, failedOutcome)
		p.metrics.ObserveAdmission(metricOutcome(failErr), time.Since(start))
		p.metrics.ObserveThreatScore(float64(sc.ThreatScore))
		return sc, failErr
	}

	rec.Blocked = false
	rec.StatusCode = 200
	p.sink.Record(rec, sink.OutcomeAdmitted)
	p.metrics.ObserveAdmission("admitted", time.Since(start))
	p.metrics.ObserveThreatScore(float64(sc.ThreatScore))
	return sc, nil
}

// AdmitBlocking is the synchronous facade over Admit for transport
// bindings that have no async boundary of their own; it is identical to
// Admit but documents that the caller accepts blocking for the full
// duration of the slowest stage (§5 async-boundary design note).
func (p *Pipeline) AdmitBlocking(ctx context.Context, r *http.Request) (*seccontext.Context, error) {
	return p.Admit(ctx, r)
}

// Finalize forwards to the Sink so a transport binding can report the
// true downstream status and latency once the request completes
// (§9 Open Question b).
func (p *Pipeline) Finalize(requestID string, status int, latency time.Duration) {
	p.sink.Finalize(requestID, status, latency)
}

// metricOutcome maps a rejection to the outcome label ObserveAdmission
// expects, independent of sink.Outcome's narrower counter set.
func metricOutcome(err error) string {
	switch err.(type) {
	case admiterr.RateLimitExceeded:
		return "rate_limited"
	case admiterr.AuthenticationFailed:
		return "auth_failed"
	case admiterr.InvalidInput:
		return "invalid_input"
	case admiterr.ThreatDetected:
		return "threat_detected"
	default:
		return "internal_error"
	}
}

func outcomeFor(checkerName string) sink.Outcome {
	switch checkerName {
	case "rate_limit":
		return sink.OutcomeRateLimited
	case "authentication":
		return sink.OutcomeAuthFailure
	case "input_validation":
		return sink.OutcomeValidationFailure
	default:
		return sink.OutcomeOther
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}
