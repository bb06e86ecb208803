// Package subsys provides a subsystem composition runtime for Go applications.
// A Subsystem is assembled from declarative hooks, each of which produces one
// typed facet (a named bundle of methods and properties). The runtime resolves
// hook dependencies into a deterministic build plan, enforces structural
// contracts on the resulting facets, and executes a transactional build with
// compensating rollback.
//
// # Overview
//
// The library provides:
//   - Metadata-carrying hook factories with dependency declarations
//   - Deterministic topological planning with cycle detection
//   - A content-addressed graph cache keyed by the shape of the hook set
//   - Named structural contracts enforced before graph construction
//   - Transactional build execution: install, init, attach, recursive
//     child builds, and reverse-order rollback on any failure
//   - Hierarchical parent/child subsystems with context propagation
//
// # Basic Usage
//
// Construct a subsystem, append hooks, then build:
//
//	sub := subsys.New("app")
//	sub.Use(storeHook).Use(routerHook)
//
//	if err := sub.Build(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer sub.Dispose(ctx)
//
// A hook is created with its metadata and a factory that returns a facet:
//
//	hook, err := subsys.NewHook(subsys.HookConfig{
//	    Kind:   "store",
//	    Source: "example/store",
//	    Attach: true,
//	    Fn: func(ctx context.Context, cfg subsys.Ctx, api *subsys.API, sub *subsys.Subsystem) (*subsys.Facet, error) {
//	        f, err := subsys.NewFacet("store", subsys.FacetOptions{Source: "example/store", Attach: true})
//	        if err != nil {
//	            return nil, err
//	        }
//	        f.Add(subsys.Members{"get": func(key string) any { return nil }})
//	        return f, nil
//	    },
//	})
//
// # Contracts
//
// Facets may name a contract; the default registry is seeded with the
// standard set (router, queue, processor, listeners, hierarchy, scheduler).
// Contracts are enforced during verification, before any facet is installed.
//
// # Transactional Builds
//
// Build runs in two phases. Planning is pure: factories execute, contracts
// are enforced, and the dependency order is resolved into a frozen plan.
// Execution is transactional: facets are installed and initialized in
// dependency order, children are built sequentially, and any failure rolls
// back everything already initialized in exact reverse order, leaving the
// subsystem indistinguishable from its pre-build state.
package subsys
