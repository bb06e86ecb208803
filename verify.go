package subsys

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/facetworks/subsys/internal/graph"
)

// KernelServicesKind is the dependency kind provided out-of-band by an
// initialized kernel. The verifier strips it from every facet and hook when
// the subsystem's kernel reports it has initialized.
const KernelServicesKind = "kernelServices"

// Kernel is the ambient message system a subsystem may be embedded in. The
// runtime treats it as an opaque collaborator and only consults its
// initialization state.
type Kernel interface {
	// IsKernelInit reports whether the kernel has completed its own
	// initialization and provides kernel services out-of-band.
	IsKernelInit() bool
}

// hookEntry pairs a hook with the facet its factory produced. The required
// list is a private copy so kernel-services stripping never mutates shared
// hook metadata.
type hookEntry struct {
	hook     *Hook
	facet    *Facet
	required []string
}

// verifyBuild merges and validates the subsystem's hooks, executes their
// factories, enforces contracts, validates dependencies, and resolves the
// dependency order into a frozen plan. Verification performs no side effects
// on the subsystem.
func verifyBuild(ctx context.Context, sub *Subsystem, extra Ctx, cache *GraphCache) (*Plan, error) {
	log := sub.logger()

	// Step 1: resolve the configuration context.
	resolved := mergeCtx(sub.snapshotCtx(), extra)

	// Step 2: merge default hooks followed by user hooks, re-verifying
	// metadata invariants.
	hooks := sub.mergedHooks()
	for _, h := range hooks {
		if err := h.validate(); err != nil {
			return nil, err
		}
	}

	// Step 3: execute factories in encounter order. A nil facet opts the
	// hook out.
	entries := make([]*hookEntry, 0, len(hooks))
	for _, h := range hooks {
		facet, err := h.invoke(ctx, resolved, sub.API(), sub)
		if err != nil {
			return nil, err
		}
		if facet == nil {
			log.Debug("hook opted out", zap.String("kind", h.Kind()), zap.String("source", h.Source()))
			continue
		}
		if facet.Kind() != h.Kind() {
			return nil, FacetShapeError{Kind: h.Kind(), Source: h.Source(), Got: fmt.Sprintf("kind %q", facet.Kind())}
		}

		entries = append(entries, &hookEntry{
			hook:     h,
			facet:    facet,
			required: h.Required(),
		})
	}

	// Step 4: kernel-services stripping. An initialized kernel provides
	// kernelServices out-of-band.
	if sub.kernelInitialized() {
		for _, e := range entries {
			e.facet.stripDependency(KernelServicesKind)
			e.required = removeKind(e.required, KernelServicesKind)
		}
	}

	// Step 5: overwrite resolution. Replacement needs consent from both the
	// replacing hook and its facet; the replacement keeps the original
	// encounter position.
	byKind := make(map[string]*hookEntry, len(entries))
	ordered := make([]*hookEntry, 0, len(entries))
	for _, e := range entries {
		existing, seen := byKind[e.facet.Kind()]
		if !seen {
			byKind[e.facet.Kind()] = e
			ordered = append(ordered, e)
			continue
		}

		if !e.hook.Overwrite() || !e.facet.ShouldOverwrite() {
			return nil, DuplicateKindError{
				Kind:         e.facet.Kind(),
				FirstSource:  existing.hook.Source(),
				SecondSource: e.hook.Source(),
			}
		}

		*existing = *e
		log.Debug("facet overwritten",
			zap.String("kind", e.facet.Kind()),
			zap.String("source", e.hook.Source()),
		)
	}

	// Step 6: contract enforcement. Precedes dependency validation so a
	// malformed facet is reported before its wiring.
	registry := sub.contractRegistry()
	for _, e := range ordered {
		name := e.facet.Contract()
		if name == "" {
			continue
		}

		if !registry.Has(name) {
			return nil, UnknownContractError{Kind: e.facet.Kind(), Source: e.facet.Source(), Contract: name}
		}
		if err := registry.Enforce(name, resolved, sub.API(), sub, e.facet); err != nil {
			return nil, ContractValidationError{
				Kind:     e.facet.Kind(),
				Source:   e.facet.Source(),
				Contract: name,
				Cause:    err,
			}
		}
	}

	// Step 7: dependency validation over the union of hook requirements and
	// facet dependencies.
	for _, e := range ordered {
		for _, dep := range unionKinds(e.required, e.facet.Dependencies()) {
			if _, ok := byKind[dep]; !ok {
				return nil, MissingDependencyError{Kind: e.facet.Kind(), Source: e.facet.Source(), Dependency: dep}
			}
		}
	}

	// Step 8: topological sort, consulting the advisory graph cache first.
	fingerprint := fingerprintHooks(hooks)
	orderedKinds, err := resolveOrder(ordered, byKind, fingerprint, cache, log)
	if err != nil {
		return nil, err
	}

	// Step 9: freeze the plan.
	facetsByKind := make(map[string]*Facet, len(ordered))
	for _, e := range ordered {
		facetsByKind[e.facet.Kind()] = e.facet
	}

	return &Plan{
		ResolvedCtx:  resolved,
		OrderedKinds: orderedKinds,
		FacetsByKind: facetsByKind,
		Fingerprint:  fingerprint,
	}, nil
}

// resolveOrder returns the dependency order for the entries, reusing a cached
// order when its kind set still matches and recomputing otherwise.
func resolveOrder(ordered []*hookEntry, byKind map[string]*hookEntry, fingerprint string, cache *GraphCache, log *zap.Logger) ([]string, error) {
	if cache != nil {
		if cached, ok := cache.Get(fingerprint); ok && coversKinds(cached, byKind) {
			log.Debug("graph cache hit", zap.String("fingerprint", fingerprint[:12]))
			return cached, nil
		}
	}

	g := graph.New()
	for _, e := range ordered {
		if err := g.Add(e.facet.Kind(), unionKinds(e.required, e.facet.Dependencies())); err != nil {
			return nil, err
		}
	}

	orderedKinds, err := g.TopologicalSort()
	if err != nil {
		var cycleErr *graph.CycleError
		if errors.As(err, &cycleErr) {
			return nil, DependencyCycleError{Path: cycleErr.Path}
		}
		return nil, err
	}

	if cache != nil {
		cache.Put(fingerprint, orderedKinds)
	}

	return orderedKinds, nil
}

// coversKinds reports whether a cached order contains exactly the kinds of
// the current facet set.
func coversKinds(order []string, byKind map[string]*hookEntry) bool {
	if len(order) != len(byKind) {
		return false
	}
	for _, kind := range order {
		if _, ok := byKind[kind]; !ok {
			return false
		}
	}
	return true
}

// unionKinds merges two kind lists, preserving first-seen order.
func unionKinds(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, kind := range list {
			if _, ok := seen[kind]; ok {
				continue
			}
			seen[kind] = struct{}{}
			out = append(out, kind)
		}
	}
	return out
}

func removeKind(kinds []string, kind string) []string {
	out := kinds[:0]
	for _, k := range kinds {
		if k != kind {
			out = append(out, k)
		}
	}
	return out
}
