package authcheck

import (
	"fmt"
	"regexp"
	"strings"
)

// ValueMatcher matches a literal string or, when the configured value is
// wrapped in slashes, a regular expression — grounded on the pack's
// compileValueMatcher literal-or-/regex/ detection.
type ValueMatcher interface {
	Matches(input string) bool
}

type valueMatcher struct {
	literal string
	regex   *regexp.Regexp
}

func (vm valueMatcher) Matches(input string) bool {
	if vm.regex != nil {
		return vm.regex.MatchString(input)
	}
	return vm.literal == input
}

func compileValueMatcher(value string) (ValueMatcher, error) {
	if strings.HasPrefix(value, "/") && strings.HasSuffix(value, "/") && len(value) > 2 {
		pattern := value[1 : len(value)-1]
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("authcheck: invalid regex %q: %w", value, err)
		}
		return valueMatcher{regex: re}, nil
	}
	return valueMatcher{literal: value}, nil
}

// PrincipalSpec is the declarative form of one principal entry: a set of
// matchers against the extracted credential, and the principal it
// resolves to when all configured matchers for its type hold.
type PrincipalSpec struct {
	UserID   string   `koanf:"user_id" yaml:"user_id"`
	Roles    []string `koanf:"roles" yaml:"roles"`
	Bearer   []string `koanf:"bearer" yaml:"bearer"`     // token value matchers
	Username []string `koanf:"username" yaml:"username"` // basic auth
	Password []string `koanf:"password" yaml:"password"` // basic auth
	Header   []string `koanf:"header" yaml:"header"`     // named header value matchers
	Query    []string `koanf:"query" yaml:"query"`       // named query value matchers
}

// Principal is the compiled, matchable form of one PrincipalSpec.
type Principal struct {
	UserID   string
	Roles    []string
	bearer   []ValueMatcher
	username []ValueMatcher
	password []ValueMatcher
	header   []ValueMatcher
	query    []ValueMatcher
}

// Matches reports whether cred resolves to this principal, checking only
// the matcher lists configured for the credential's own type.
func (p Principal) Matches(cred Credential) bool {
	switch cred.Type {
	case "bearer":
		return matchesAny(p.bearer, cred.Token)
	case "basic":
		if len(p.username) == 0 && len(p.password) == 0 {
			return false
		}
		return matchesAll(p.username, cred.Username) && matchesAll(p.password, cred.Password)
	case "header":
		return matchesAny(p.header, cred.Value)
	case "query":
		return matchesAny(p.query, cred.Value)
	default:
		return false
	}
}

func matchesAny(matchers []ValueMatcher, input string) bool {
	if len(matchers) == 0 {
		return false
	}
	for _, m := range matchers {
		if m.Matches(input) {
			return true
		}
	}
	return false
}

func matchesAll(matchers []ValueMatcher, input string) bool {
	if len(matchers) == 0 {
		// No constraint configured for this sub-field: it is not part of
		// the match decision (lets username-only matching work without
		// requiring a password matcher).
		return true
	}
	return matchesAny(matchers, input)
}

// CompilePrincipals compiles a table of PrincipalSpecs, grounded on the
// pack's compileAuthDirectives/compileAuthMatcher compilation pass.
func CompilePrincipals(specs []PrincipalSpec) ([]Principal, error) {
	out := make([]Principal, 0, len(specs))
	for i, spec := range specs {
		p := Principal{UserID: spec.UserID, Roles: spec.Roles}
		var err error
		if p.bearer, err = compileAll(spec.Bearer); err != nil {
			return nil, fmt.Errorf("authcheck: principal[%d] bearer: %w", i, err)
		}
		if p.username, err = compileAll(spec.Username); err != nil {
			return nil, fmt.Errorf("authcheck: principal[%d] username: %w", i, err)
		}
		if p.password, err = compileAll(spec.Password); err != nil {
			return nil, fmt.Errorf("authcheck: principal[%d] password: %w", i, err)
		}
		if p.header, err = compileAll(spec.Header); err != nil {
			return nil, fmt.Errorf("authcheck: principal[%d] header: %w", i, err)
		}
		if p.query, err = compileAll(spec.Query); err != nil {
			return nil, fmt.Errorf("authcheck: principal[%d] query: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func compileAll(values []string) ([]ValueMatcher, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]ValueMatcher, len(values))
	for i, v := range values {
		m, err := compileValueMatcher(v)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}
