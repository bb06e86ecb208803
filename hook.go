package subsys

import (
	"context"
	"fmt"
	"strings"
)

// FactoryFunc produces a facet for a hook. Returning (nil, nil) opts the hook
// out of the build. The returned facet's kind must equal the hook's kind.
type FactoryFunc func(ctx context.Context, cfg Ctx, api *API, sub *Subsystem) (*Facet, error)

// HookConfig carries the metadata and factory for a new hook.
type HookConfig struct {
	// Kind names the facet this hook produces. Must be non-empty.
	Kind string

	// Required lists kinds that must be present before this facet.
	Required []string

	// Overwrite permits the hook to displace an earlier same-kind hook,
	// provided the produced facet also consents.
	Overwrite bool

	// Attach exposes the produced facet's members on the subsystem API.
	Attach bool

	// Source identifies the hook's origin for diagnostics. Must be non-empty.
	Source string

	// Fn is the facet factory. Must be non-nil.
	Fn FactoryFunc
}

// Hook is a metadata-carrying facet factory. Hooks are immutable after
// creation and may be appended to any number of subsystems.
type Hook struct {
	kind      string
	required  []string
	overwrite bool
	attach    bool
	source    string
	fn        FactoryFunc
}

// NewHook creates a hook, validating its metadata invariants.
func NewHook(cfg HookConfig) (*Hook, error) {
	h := &Hook{
		kind:      cfg.Kind,
		required:  append([]string(nil), cfg.Required...),
		overwrite: cfg.Overwrite,
		attach:    cfg.Attach,
		source:    cfg.Source,
		fn:        cfg.Fn,
	}

	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// MustHook creates a hook and panics on invalid metadata. Intended for
// package-level hook declarations.
func MustHook(cfg HookConfig) *Hook {
	h, err := NewHook(cfg)
	if err != nil {
		panic(err)
	}
	return h
}

// Kind returns the facet kind this hook produces.
func (h *Hook) Kind() string { return h.kind }

// Required returns a snapshot of the hook's declared dependencies.
func (h *Hook) Required() []string {
	return append([]string(nil), h.required...)
}

// Overwrite reports whether the hook consents to displacing an earlier
// same-kind hook.
func (h *Hook) Overwrite() bool { return h.overwrite }

// Attach reports whether the produced facet's members are exposed on the API.
func (h *Hook) Attach() bool { return h.attach }

// Source returns the hook's origin identifier.
func (h *Hook) Source() string { return h.source }

// validate re-checks the metadata invariants. The verifier calls this for
// every hook at the start of each build.
func (h *Hook) validate() error {
	if h == nil {
		return HookShapeError{Message: ErrNilHook.Error()}
	}
	if strings.TrimSpace(h.kind) == "" {
		return HookShapeError{Source: h.source, Message: "kind must be a non-empty string"}
	}
	if strings.TrimSpace(h.source) == "" {
		return HookShapeError{Message: fmt.Sprintf("hook %q: source must be a non-empty string", h.kind)}
	}
	if h.fn == nil {
		return HookShapeError{Source: h.source, Message: fmt.Sprintf("hook %q: %s", h.kind, ErrHookNotFunction.Error())}
	}
	for _, dep := range h.required {
		if strings.TrimSpace(dep) == "" {
			return HookShapeError{Source: h.source, Message: fmt.Sprintf("hook %q: required kinds must be non-empty strings", h.kind)}
		}
	}

	return nil
}

// invoke executes the factory, wrapping any error with the hook's identity.
func (h *Hook) invoke(ctx context.Context, cfg Ctx, api *API, sub *Subsystem) (*Facet, error) {
	facet, err := h.fn(ctx, cfg, api, sub)
	if err != nil {
		return nil, HookExecutionError{Kind: h.kind, Source: h.source, Cause: err}
	}
	return facet, nil
}
