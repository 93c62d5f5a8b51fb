// Package seccontext defines the per-admission mutable record that flows
// through the checker chain.
package seccontext

import (
	"math"
	"sort"
)

// Context is owned exclusively by the admitting goroutine for the lifetime
// of one admission. Checkers may append to ThreatScore, set UserID/Roles
// (authenticator only), and annotate Metadata; they must never mutate the
// inbound request.
type Context struct {
	RequestID string
	ClientIP  string

	UserID        string
	authenticated bool
	Roles         []string

	ThreatScore uint32
	Metadata    map[string]string
}

// New builds an unauthenticated Context with a zero threat score.
func New(requestID, clientIP string) *Context {
	return &Context{
		RequestID: requestID,
		ClientIP:  clientIP,
		Metadata:  make(map[string]string),
	}
}

// WithUser merges a principal into the Context. authenticated mirrors
// UserID being present; roles are kept in the order the authenticator
// supplied them.
func (c *Context) WithUser(userID string, roles []string) {
	c.UserID = userID
	c.authenticated = userID != ""
	c.Roles = roles
}

// Authenticated reports whether a principal has been merged into the
// Context. Invariant: Authenticated() == (UserID != "").
func (c *Context) Authenticated() bool {
	return c.authenticated
}

// AddThreatScore saturates at math.MaxUint32 rather than wrapping, keeping
// ThreatScore monotonically non-decreasing for the lifetime of the
// admission.
func (c *Context) AddThreatScore(score uint32) {
	if score == 0 {
		return
	}
	sum := uint64(c.ThreatScore) + uint64(score)
	if sum > math.MaxUint32 {
		c.ThreatScore = math.MaxUint32
		return
	}
	c.ThreatScore = uint32(sum)
}

// IsHighRisk reports whether the accumulated score crosses the fixed
// high-risk threshold. It does not depend on configuration: block
// decisions live in the scorer, this is a read-only classification.
func (c *Context) IsHighRisk() bool {
	return c.ThreatScore > 100
}

// Annotate sets a metadata key, initializing the map lazily so a
// zero-value Context built outside New remains usable.
func (c *Context) Annotate(key, value string) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]string)
	}
	c.Metadata[key] = value
}

// SortedRoles returns a defensive, sorted copy of Roles for callers (tests,
// log lines) that need a stable representation; the Context's own Roles
// field keeps authenticator-supplied order.
func (c *Context) SortedRoles() []string {
	out := make([]string, len(c.Roles))
	copy(out, c.Roles)
	sort.Strings(out)
	return out
}
