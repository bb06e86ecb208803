package subsys

import "fmt"

// Plan is a frozen, verified description of what a build will install:
// resolved context, topologically ordered facet kinds, and the facets by
// kind. Plans are produced by verification and must not be mutated.
type Plan struct {
	// ResolvedCtx is the subsystem context deep-merged with any extra
	// context supplied to the builder.
	ResolvedCtx Ctx

	// OrderedKinds lists every facet kind in dependency order.
	OrderedKinds []string

	// FacetsByKind maps each ordered kind to its facet.
	FacetsByKind map[string]*Facet

	// Fingerprint is the hook-set digest keying the graph cache.
	Fingerprint string
}

// validate checks the plan's structural invariants before execution.
func (p *Plan) validate() error {
	if p == nil {
		return InvalidPlanError{Message: "plan cannot be nil"}
	}
	if p.OrderedKinds == nil {
		return InvalidPlanError{Message: "plan is missing ordered kinds"}
	}
	if p.FacetsByKind == nil {
		return InvalidPlanError{Message: "plan is missing facets"}
	}
	if len(p.OrderedKinds) != len(p.FacetsByKind) {
		return InvalidPlanError{
			Message: fmt.Sprintf("plan has %d ordered kinds but %d facets", len(p.OrderedKinds), len(p.FacetsByKind)),
		}
	}
	for _, kind := range p.OrderedKinds {
		if _, ok := p.FacetsByKind[kind]; !ok {
			return InvalidPlanError{Message: fmt.Sprintf("ordered kind %q has no facet", kind)}
		}
	}

	return nil
}
