package authcheck

import (
	"context"
	"net/http"

	"github.com/l0p7/admitgate/internal/admiterr"
	"github.com/l0p7/admitgate/internal/seccontext"
)

// Config is the auth.* configuration namespace.
type Config struct {
	Enabled     bool
	RequireAuth bool
	HeaderName  string // named header credential, e.g. "X-Api-Key"
	QueryName   string // named query credential, e.g. "api_key"
}

// Checker adapts the credential extraction and principal table to the
// pipeline's second fixed stage.
type Checker struct {
	cfg        Config
	principals []Principal
}

// NewChecker wraps a compiled principal table as the authentication
// stage.
func NewChecker(cfg Config, principals []Principal) *Checker {
	return &Checker{cfg: cfg, principals: principals}
}

func (c *Checker) Name() string { return "authentication" }

func (c *Checker) Evaluate(_ context.Context, r *http.Request, sc *seccontext.Context) error {
	if !c.cfg.Enabled {
		return nil
	}

	cred, present := extract(r, c.cfg.HeaderName, c.cfg.QueryName)
	if !present {
		if c.cfg.RequireAuth {
			return admiterr.AuthenticationFailed{Msg: "no credentials presented"}
		}
		// S6: auth optional, no credential header — admitted,
		// unauthenticated.
		return nil
	}

	for _, p := range c.principals {
		if p.Matches(cred) {
			sc.WithUser(p.UserID, p.Roles)
			return nil
		}
	}
	// A credential was presented but matched no configured principal:
	// AuthenticationFailed regardless of require_auth (§4.1 stage 2).
	return admiterr.AuthenticationFailed{Msg: "credentials did not match any configured principal"}
}
