// Package testutil provides builders and fixtures shared by the subsys test
// suites.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facetworks/subsys"
)

// HookBuilder provides a fluent interface for building test hooks.
type HookBuilder struct {
	t         *testing.T
	kind      string
	required  []string
	overwrite bool
	attach    bool
	source    string
	members   subsys.Members
	contract  string
	onInit    []subsys.LifecycleFunc
	onDispose []subsys.LifecycleFunc
	optOut    bool
}

// NewHookBuilder creates a builder for a hook producing the given kind.
func NewHookBuilder(t *testing.T, kind string) *HookBuilder {
	return &HookBuilder{
		t:       t,
		kind:    kind,
		source:  "testutil/" + kind,
		members: subsys.Members{},
	}
}

// Requires declares dependencies on other kinds.
func (b *HookBuilder) Requires(kinds ...string) *HookBuilder {
	b.required = append(b.required, kinds...)
	return b
}

// Overwrite marks both the hook and its facet as overwrite-consenting.
func (b *HookBuilder) Overwrite() *HookBuilder {
	b.overwrite = true
	return b
}

// Attach marks the facet's members for attachment to the subsystem API.
func (b *HookBuilder) Attach() *HookBuilder {
	b.attach = true
	return b
}

// Source overrides the hook's source identifier.
func (b *HookBuilder) Source(source string) *HookBuilder {
	b.source = source
	return b
}

// WithMember adds a member to the produced facet.
func (b *HookBuilder) WithMember(name string, member any) *HookBuilder {
	b.members[name] = member
	return b
}

// WithContract names the facet's contract.
func (b *HookBuilder) WithContract(name string) *HookBuilder {
	b.contract = name
	return b
}

// OnInit appends an init callback to the produced facet.
func (b *HookBuilder) OnInit(fn subsys.LifecycleFunc) *HookBuilder {
	b.onInit = append(b.onInit, fn)
	return b
}

// OnDispose appends a dispose callback to the produced facet.
func (b *HookBuilder) OnDispose(fn subsys.LifecycleFunc) *HookBuilder {
	b.onDispose = append(b.onDispose, fn)
	return b
}

// OptOut makes the factory return a nil facet.
func (b *HookBuilder) OptOut() *HookBuilder {
	b.optOut = true
	return b
}

// Build creates the hook.
func (b *HookBuilder) Build() *subsys.Hook {
	hook, err := subsys.NewHook(subsys.HookConfig{
		Kind:      b.kind,
		Required:  b.required,
		Overwrite: b.overwrite,
		Attach:    b.attach,
		Source:    b.source,
		Fn: func(ctx context.Context, cfg subsys.Ctx, api *subsys.API, sub *subsys.Subsystem) (*subsys.Facet, error) {
			if b.optOut {
				return nil, nil
			}

			f, err := subsys.NewFacet(b.kind, subsys.FacetOptions{
				Source:    b.source,
				Attach:    b.attach,
				Overwrite: b.overwrite,
				Contract:  b.contract,
			})
			if err != nil {
				return nil, err
			}

			for _, dep := range b.required {
				if err := f.AddDependency(dep); err != nil {
					return nil, err
				}
			}
			if err := f.Add(b.members); err != nil {
				return nil, err
			}
			for _, fn := range b.onInit {
				if err := f.OnInit(fn); err != nil {
					return nil, err
				}
			}
			for _, fn := range b.onDispose {
				if err := f.OnDispose(fn); err != nil {
					return nil, err
				}
			}

			return f, nil
		},
	})
	require.NoError(b.t, err)
	return hook
}

// LifecycleRecorder records the order of init and dispose events across
// facets, for asserting ordering and rollback properties.
type LifecycleRecorder struct {
	mu     sync.Mutex
	events []string
}

// NewLifecycleRecorder creates an empty recorder.
func NewLifecycleRecorder() *LifecycleRecorder {
	return &LifecycleRecorder{}
}

// Record appends an event label.
func (r *LifecycleRecorder) Record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Init returns an init callback recording "init:<kind>".
func (r *LifecycleRecorder) Init(kind string) subsys.LifecycleFunc {
	return func(ctx context.Context, cfg subsys.Ctx, api *subsys.API, sub *subsys.Subsystem) error {
		r.Record("init:" + kind)
		return nil
	}
}

// Dispose returns a dispose callback recording "dispose:<kind>".
func (r *LifecycleRecorder) Dispose(kind string) subsys.LifecycleFunc {
	return func(ctx context.Context, cfg subsys.Ctx, api *subsys.API, sub *subsys.Subsystem) error {
		r.Record("dispose:" + kind)
		return nil
	}
}

// Events returns a snapshot of the recorded events.
func (r *LifecycleRecorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}
