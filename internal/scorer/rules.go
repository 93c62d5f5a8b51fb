package scorer

import "strings"

// Category names a recognized attack family. A scored Observation sets at
// most the categories whose rules matched.
type Category string

const (
	CategoryNone          Category = ""
	CategoryPathTraversal Category = "path-traversal"
	CategoryXSS           Category = "xss"
	CategorySQL           Category = "sql"
	CategoryCmdInjection  Category = "cmd-injection"
	CategoryOversize      Category = "oversize"
	CategoryScanner       Category = "scanner"
)

// Locus names which part of the request a rule's predicate inspects.
type Locus int

const (
	LocusURIRaw Locus = iota
	LocusURILower
	LocusHeaderValue
	LocusUserAgentLower
)

// Signals is the precomputed view of a request a Rule's Predicate runs
// against, built once per admission so every rule reuses the same
// lower-cased strings instead of recomputing them.
type Signals struct {
	URIRaw         string
	URILower       string
	Headers        map[string][]string // header name -> values, as received
	HeaderValues   []string            // every header value, flattened, any casing
	UserAgentLower string
}

// NewSignals precomputes the fields every built-in rule and every
// CEL-compiled overlay rule reads from.
func NewSignals(uriRaw string, headers map[string][]string) Signals {
	s := Signals{
		URIRaw:   uriRaw,
		URILower: strings.ToLower(uriRaw),
		Headers:  headers,
	}
	for name, values := range headers {
		for _, v := range values {
			s.HeaderValues = append(s.HeaderValues, v)
			if strings.EqualFold(name, "user-agent") {
				s.UserAgentLower = strings.ToLower(v)
			}
		}
	}
	return s
}

// Rule is one row of the data-driven scoring table: a locus, a predicate
// over the precomputed Signals, a score contribution, and the category it
// marks when it fires. Every rule is evaluated independently; all rules
// run regardless of whether an earlier rule already matched (§4.2: "all
// rules evaluated").
type Rule struct {
	Name      string
	Locus     Locus
	Predicate func(Signals) bool
	Score     uint32
	Category  Category
}

// DefaultRules is the fixed table from §4.2, expressed as data instead of
// branches per the extensibility design note.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "path-traversal-raw",
			Locus:    LocusURIRaw,
			Score:    40,
			Category: CategoryPathTraversal,
			Predicate: func(s Signals) bool {
				return strings.Contains(s.URIRaw, "../../../") || strings.Contains(s.URIRaw, `..\..\..\`)
			},
		},
		{
			Name:     "path-traversal-encoded",
			Locus:    LocusURIRaw,
			Score:    50,
			Category: CategoryPathTraversal,
			Predicate: func(s Signals) bool {
				return strings.Contains(s.URIRaw, "..%2f") || strings.Contains(s.URIRaw, "..%5c")
			},
		},
		{
			Name:     "xss-script-or-js-uri",
			Locus:    LocusURILower,
			Score:    60,
			Category: CategoryXSS,
			Predicate: func(s Signals) bool {
				return strings.Contains(s.URILower, "<script") || strings.Contains(s.URILower, "javascript:alert")
			},
		},
		{
			Name:     "xss-event-handler",
			Locus:    LocusURILower,
			Score:    50,
			Category: CategoryXSS,
			Predicate: func(s Signals) bool {
				onerror := strings.Contains(s.URILower, "onerror=") && !strings.Contains(s.URILower, "onerror_")
				onload := strings.Contains(s.URILower, "onload=") && !strings.Contains(s.URILower, "onload_")
				return onerror || onload
			},
		},
		{
			Name:     "sql-union-select",
			Locus:    LocusURILower,
			Score:    60,
			Category: CategorySQL,
			Predicate: func(s Signals) bool {
				return strings.Contains(s.URILower, "union") && strings.Contains(s.URILower, "select")
			},
		},
		{
			Name:     "sql-stacked-query",
			Locus:    LocusURILower,
			Score:    60,
			Category: CategorySQL,
			Predicate: func(s Signals) bool {
				return strings.Contains(s.URILower, "'; drop") || strings.Contains(s.URILower, "'; delete")
			},
		},
		{
			Name:     "sql-tautology",
			Locus:    LocusURILower,
			Score:    60,
			Category: CategorySQL,
			Predicate: func(s Signals) bool {
				return strings.Contains(s.URILower, "' or '1'='1") || strings.Contains(s.URILower, "1'or'1'='1")
			},
		},
		{
			Name:     "cmd-injection-shell-metachar",
			Locus:    LocusURIRaw,
			Score:    50,
			Category: CategoryCmdInjection,
			Predicate: func(s Signals) bool {
				hasMeta := strings.Contains(s.URIRaw, "`;") || strings.Contains(s.URIRaw, "`|")
				return hasMeta && strings.Contains(s.URIRaw, "/api/")
			},
		},
		{
			Name:     "oversize-header",
			Locus:    LocusHeaderValue,
			Score:    30,
			Category: CategoryOversize,
			Predicate: func(s Signals) bool {
				for _, v := range s.HeaderValues {
					if len(v) > 8192 {
						return true
					}
				}
				return false
			},
		},
		{
			Name:     "scanner-user-agent",
			Locus:    LocusUserAgentLower,
			Score:    70,
			Category: CategoryScanner,
			Predicate: func(s Signals) bool {
				for _, tool := range []string{"sqlmap", "nikto", "nmap", "masscan", "burp"} {
					if strings.Contains(s.UserAgentLower, tool) {
						return true
					}
				}
				return false
			},
		},
	}
}
