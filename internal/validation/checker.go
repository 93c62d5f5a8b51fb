// Package validation implements the Input Validator (C6): structural
// validation of request shape, grounded on the admission agent's
// method/header structural checks, generalized into a standalone checker.
package validation

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/l0p7/admitgate/internal/admiterr"
	"github.com/l0p7/admitgate/internal/seccontext"
)

// Config is the validation.* configuration namespace.
type Config struct {
	Enabled        bool
	MaxBodyBytes   int64
	MaxHeaderBytes int
	AllowedMethods []string // empty means any method is structurally valid
}

// DefaultConfig matches the pack's conservative defaults for request-shape
// limits.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		MaxBodyBytes:   10 << 20, // 10MiB
		MaxHeaderBytes: 1 << 20,  // 1MiB total across all header values
		AllowedMethods: nil,
	}
}

// Checker adapts Config to the pipeline's third fixed stage. A validation
// failure always maps to InvalidInput per §4.1 stage 3; it never reaches
// the scorer for the same request (Open Question a, resolved in
// DESIGN.md: the validator short-circuits before threat detection runs).
type Checker struct {
	cfg Config
}

// NewChecker wraps cfg as the validation stage.
func NewChecker(cfg Config) *Checker { return &Checker{cfg: cfg} }

func (c *Checker) Name() string { return "input_validation" }

func (c *Checker) Evaluate(_ context.Context, r *http.Request, sc *seccontext.Context) error {
	if !c.cfg.Enabled {
		return nil
	}

	if len(c.cfg.AllowedMethods) > 0 && !slices.Contains(c.cfg.AllowedMethods, r.Method) {
		return admiterr.InvalidInput{Reason: fmt.Sprintf("method %s not allowed", r.Method), Field: "method"}
	}

	if c.cfg.MaxBodyBytes > 0 && r.ContentLength > c.cfg.MaxBodyBytes {
		sc.Annotate("validation.body_too_large", "true")
		return admiterr.InvalidInput{Reason: "request body exceeds maximum size", Field: "body"}
	}

	if c.cfg.MaxHeaderBytes > 0 {
		total := 0
		for _, values := range r.Header {
			for _, v := range values {
				total += len(v)
			}
		}
		if total > c.cfg.MaxHeaderBytes {
			sc.Annotate("validation.headers_too_large", "true")
			return admiterr.InvalidInput{Reason: "request headers exceed maximum size", Field: "headers"}
		}
	}

	return nil
}
