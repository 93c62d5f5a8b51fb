package scorer

import (
	"fmt"

	"github.com/l0p7/admitgate/internal/expr"
)

// OverlaySpec is the declarative form of one overlay rule as loaded from
// the optional YAML rules file.
type OverlaySpec struct {
	Name      string `koanf:"name" yaml:"name"`
	Predicate string `koanf:"predicate" yaml:"predicate"`
	Score     uint32 `koanf:"score" yaml:"score"`
	Category  string `koanf:"category" yaml:"category"`
}

// CompileOverlay compiles each OverlaySpec into a Rule whose Predicate
// evaluates the CEL expression against the scorer's signal variables
// (uri, uri_lower, user_agent_lower, headers). Compiled once at
// construction or reload, never per admission.
func CompileOverlay(env *expr.Environment, specs []OverlaySpec) ([]Rule, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		program, err := env.Compile(spec.Predicate)
		if err != nil {
			return nil, fmt.Errorf("scorer: overlay[%d] %q: %w", i, spec.Name, err)
		}
		out = append(out, Rule{
			Name:     spec.Name,
			Category: Category(spec.Category),
			Score:    spec.Score,
			Predicate: func(s Signals) bool {
				headers := make(map[string]any, len(s.Headers))
				for name, values := range s.Headers {
					if len(values) > 0 {
						headers[name] = values[0]
					}
				}
				ok, evalErr := program.EvalBool(map[string]any{
					"uri":              s.URIRaw,
					"uri_lower":        s.URILower,
					"user_agent_lower": s.UserAgentLower,
					"headers":          headers,
				})
				if evalErr != nil {
					return false
				}
				return ok
			},
		})
	}
	return out, nil
}
