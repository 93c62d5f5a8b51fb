// Package scorer implements the Threat Scorer (C7): a heuristic pattern
// matcher producing a cumulative score with a block decision, expressed as
// a data-driven rule table per the extensibility design note rather than
// hard-coded branches.
package scorer

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/l0p7/admitgate/internal/admiterr"
	"github.com/l0p7/admitgate/internal/seccontext"
)

// Config holds the block-decision thresholds and the enable/block-suspicious
// flags from the threat_detection.* configuration namespace.
type Config struct {
	Enabled            bool
	BlockSuspicious    bool
	CategoryThreshold  uint32 // default 40
	AggregateThreshold uint32 // default 100
}

// DefaultConfig matches the thresholds fixed in §4.2.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		BlockSuspicious:    false,
		CategoryThreshold:  40,
		AggregateThreshold: 100,
	}
}

// Outcome is the result of scoring one request, independent of whether the
// configured thresholds decide to block it.
type Outcome struct {
	Score             uint32
	HasSQL            bool
	HasXSS            bool
	HasPathTraversal  bool
	MatchedCategories []Category
}

// Scorer evaluates every rule in its table against a request and decides
// whether to block per Config. The rule table is held behind an
// atomic.Pointer so an on-disk overlay can be hot-reloaded without
// disturbing in-flight admissions or requiring a new Scorer (§9: "a fresh
// orchestrator is built to adopt new policy" applies to the pipeline's
// checker wiring, not to this narrower, explicitly-hot-reloadable table).
type Scorer struct {
	cfg   Config
	rules atomic.Pointer[[]Rule]
}

// New builds a Scorer with the fixed built-in table plus any overlay rules
// supplied at construction.
func New(cfg Config, overlay []Rule) *Scorer {
	s := &Scorer{cfg: cfg}
	combined := append(append([]Rule(nil), DefaultRules()...), overlay...)
	s.rules.Store(&combined)
	return s
}

// ReplaceOverlay swaps in a new set of overlay rules atop the fixed
// built-in table. Safe to call concurrently with Score.
func (s *Scorer) ReplaceOverlay(overlay []Rule) {
	combined := append(append([]Rule(nil), DefaultRules()...), overlay...)
	s.rules.Store(&combined)
}

// Score evaluates every rule in the table against sig and returns the
// cumulative outcome. It never mutates external state.
func (s *Scorer) Score(sig Signals) Outcome {
	var out Outcome
	seen := make(map[Category]bool)
	rules := *s.rules.Load()
	for _, rule := range rules {
		if !rule.Predicate(sig) {
			continue
		}
		out.Score += rule.Score
		switch rule.Category {
		case CategorySQL:
			out.HasSQL = true
		case CategoryXSS:
			out.HasXSS = true
		case CategoryPathTraversal:
			out.HasPathTraversal = true
		}
		if rule.Category != CategoryNone && !seen[rule.Category] {
			seen[rule.Category] = true
			out.MatchedCategories = append(out.MatchedCategories, rule.Category)
		}
	}
	return out
}

// hasCategory reports whether the block decision's "any category boolean
// is set" condition holds for this outcome.
func (o Outcome) hasCategory() bool {
	return o.HasSQL || o.HasXSS || o.HasPathTraversal
}

// Decide applies the §4.2 block-decision policy to a scoring outcome.
func (s *Scorer) Decide(o Outcome) error {
	if !s.cfg.BlockSuspicious {
		return nil
	}
	if o.hasCategory() && o.Score >= s.cfg.CategoryThreshold {
		return admiterr.ThreatDetected{ThreatType: "suspicious request pattern", Severity: admiterr.SeverityHigh}
	}
	if o.Score >= s.cfg.AggregateThreshold {
		return admiterr.ThreatDetected{ThreatType: "suspicious request pattern", Severity: admiterr.SeverityHigh}
	}
	return nil
}

// Checker adapts a Scorer to the pipeline's checker.Checker contract: the
// fourth fixed stage. It is pure with respect to the request and only
// accumulates into sc.ThreatScore and sc.Metadata.
type Checker struct {
	scorer *Scorer
}

// NewChecker wraps a Scorer as the threat-detection stage.
func NewChecker(s *Scorer) *Checker { return &Checker{scorer: s} }

func (c *Checker) Name() string { return "threat_detection" }

func (c *Checker) Evaluate(_ context.Context, r *http.Request, sc *seccontext.Context) error {
	if !c.scorer.cfg.Enabled {
		return nil
	}
	sig := NewSignals(r.URL.RequestURI(), r.Header)
	outcome := c.scorer.Score(sig)
	sc.AddThreatScore(outcome.Score)
	if outcome.HasSQL {
		sc.Annotate("threat.category.sql", "true")
	}
	if outcome.HasXSS {
		sc.Annotate("threat.category.xss", "true")
	}
	if outcome.HasPathTraversal {
		sc.Annotate("threat.category.path_traversal", "true")
	}
	return c.scorer.Decide(outcome)
}
