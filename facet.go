package subsys

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
)

// Members maps member names to functions or values carried by a facet.
type Members map[string]any

// LifecycleFunc is an init or dispose callback registered on a facet.
// Callbacks may block; the runtime awaits each one sequentially.
type LifecycleFunc func(ctx context.Context, cfg Ctx, api *API, sub *Subsystem) error

// FacetOptions configures a new facet.
type FacetOptions struct {
	// Source identifies the facet's origin for diagnostics. Informational.
	Source string

	// Attach exposes the facet's members on the subsystem API after init.
	Attach bool

	// Overwrite permits this facet to displace a same-kind facet, provided
	// the replacing hook also consents.
	Overwrite bool

	// Contract optionally names a structural contract enforced during
	// verification.
	Contract string
}

// Facet is a named bundle of methods and properties installed into a
// subsystem. A facet is mutable until Init succeeds, after which its members,
// dependencies, contract, and policies are frozen.
//
// Facet is NOT thread-safe for mutation. It is configured by a single hook
// factory before being handed to the runtime; only the lifecycle flags are
// guarded for concurrent observation.
type Facet struct {
	kind      string
	source    string
	contract  string
	attach    bool
	overwrite bool

	members      Members
	dependencies map[string]struct{}
	initFns      []LifecycleFunc
	disposeFns   []LifecycleFunc

	mu          sync.RWMutex
	initialized bool
	disposed    bool
}

// NewFacet creates a facet of the given kind.
func NewFacet(kind string, opts FacetOptions) (*Facet, error) {
	if strings.TrimSpace(kind) == "" {
		return nil, InvalidArgumentError{Argument: "kind", Message: "must be a non-empty string"}
	}

	contract := strings.TrimSpace(opts.Contract)
	if opts.Contract != "" && contract == "" {
		return nil, InvalidArgumentError{Argument: "contract", Message: "must be a non-empty string when set"}
	}

	return &Facet{
		kind:         kind,
		source:       opts.Source,
		contract:     contract,
		attach:       opts.Attach,
		overwrite:    opts.Overwrite,
		members:      make(Members),
		dependencies: make(map[string]struct{}),
	}, nil
}

// Add merges members into the facet. Pre-init only.
func (f *Facet) Add(members Members) error {
	if err := f.mutable("add members"); err != nil {
		return err
	}

	for name, member := range members {
		f.members[name] = member
	}
	return nil
}

// AddDependency declares that this facet depends on another kind. Pre-init only.
func (f *Facet) AddDependency(kind string) error {
	if err := f.mutable("add dependency"); err != nil {
		return err
	}
	if strings.TrimSpace(kind) == "" {
		return InvalidArgumentError{Argument: "kind", Message: "must be a non-empty string"}
	}

	f.dependencies[kind] = struct{}{}
	return nil
}

// OnInit appends an init callback. Pre-init only.
func (f *Facet) OnInit(fn LifecycleFunc) error {
	if err := f.mutable("register init callback"); err != nil {
		return err
	}
	if fn == nil {
		return ErrNilCallback
	}

	f.initFns = append(f.initFns, fn)
	return nil
}

// OnDispose appends a dispose callback. Pre-init only.
func (f *Facet) OnDispose(fn LifecycleFunc) error {
	if err := f.mutable("register dispose callback"); err != nil {
		return err
	}
	if fn == nil {
		return ErrNilCallback
	}

	f.disposeFns = append(f.disposeFns, fn)
	return nil
}

// SetContract sets or updates the facet's contract name. Pre-init only.
func (f *Facet) SetContract(name string) error {
	if err := f.mutable("set contract"); err != nil {
		return err
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return InvalidArgumentError{Argument: "contract", Message: "must be a non-empty string"}
	}

	f.contract = trimmed
	return nil
}

// Kind returns the facet's kind. Immutable from construction.
func (f *Facet) Kind() string { return f.kind }

// Source returns the facet's origin identifier.
func (f *Facet) Source() string { return f.source }

// Contract returns the facet's contract name, or "" when unset.
func (f *Facet) Contract() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.contract
}

// Dependencies returns a sorted snapshot of the facet's dependency kinds.
func (f *Facet) Dependencies() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, 0, len(f.dependencies))
	for kind := range f.dependencies {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}

// HasDependency reports whether the facet depends on the given kind.
func (f *Facet) HasDependency(kind string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, ok := f.dependencies[kind]
	return ok
}

// ShouldAttach reports whether the facet's members are exposed on the API.
func (f *Facet) ShouldAttach() bool { return f.attach }

// ShouldOverwrite reports whether the facet consents to displacing a
// same-kind facet.
func (f *Facet) ShouldOverwrite() bool { return f.overwrite }

// Initialized reports whether Init has completed successfully.
func (f *Facet) Initialized() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.initialized
}

// Disposed reports whether Dispose has completed.
func (f *Facet) Disposed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.disposed
}

// Member returns the named member and whether it exists.
func (f *Facet) Member(name string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	member, ok := f.members[name]
	return member, ok
}

// MemberNames returns a sorted snapshot of the facet's member names.
func (f *Facet) MemberNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, 0, len(f.members))
	for name := range f.members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Init runs all init callbacks in registration order. On success the facet is
// marked initialized and frozen. A callback error aborts immediately: later
// callbacks do not run and the facet remains uninitialized.
func (f *Facet) Init(ctx context.Context, cfg Ctx, api *API, sub *Subsystem) error {
	f.mu.RLock()
	if f.initialized {
		f.mu.RUnlock()
		return StateError{Op: fmt.Sprintf("init facet %q", f.kind), Message: ErrAlreadyInitialized.Error()}
	}
	f.mu.RUnlock()

	for _, fn := range f.initFns {
		if err := fn(ctx, cfg, api, sub); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.initialized = true
	f.mu.Unlock()
	return nil
}

// Dispose marks the facet disposed, then runs all dispose callbacks in
// registration order. A failing callback never prevents later callbacks from
// running; errors are aggregated and returned after all callbacks complete.
func (f *Facet) Dispose(ctx context.Context, cfg Ctx, api *API, sub *Subsystem) error {
	f.mu.Lock()
	if !f.initialized {
		f.mu.Unlock()
		return StateError{Op: fmt.Sprintf("dispose facet %q", f.kind), Message: ErrNotInitialized.Error()}
	}
	if f.disposed {
		f.mu.Unlock()
		return StateError{Op: fmt.Sprintf("dispose facet %q", f.kind), Message: ErrAlreadyDisposed.Error()}
	}
	f.disposed = true
	f.mu.Unlock()

	var errs error
	for _, fn := range f.disposeFns {
		if err := fn(ctx, cfg, api, sub); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("facet %q dispose: %w", f.kind, err))
		}
	}

	return errs
}

// mutable returns a StateError when the facet is already initialized.
func (f *Facet) mutable(op string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.initialized {
		return StateError{Op: op, Message: fmt.Sprintf("facet %q is initialized and frozen", f.kind)}
	}
	return nil
}

// stripDependency removes a dependency without the pre-init gate. Used by the
// verifier for kernel-services stripping on freshly built facets.
func (f *Facet) stripDependency(kind string) {
	delete(f.dependencies, kind)
}
