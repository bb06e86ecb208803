package subsys

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Subsystem is a container composed from a set of facets plus optional
// children. It is configured with hooks and lifecycle callbacks, then built.
//
// Configuration (Use, OnInit, OnDispose) is fluent and must happen before the
// first build; configuration errors are deferred and surfaced by Build. After
// Dispose, a subsystem may be rebuilt from scratch.
type Subsystem struct {
	name     string
	id       string
	log      *zap.Logger
	kernel   Kernel
	registry *ContractRegistry

	defaultHooks []*Hook
	api          *API
	facets       *Manager
	builder      *Builder

	mu               sync.RWMutex
	ctx              Ctx
	hooks            []*Hook
	initCallbacks    []LifecycleFunc
	disposeCallbacks []LifecycleFunc
	configErr        error
	builtOnce        bool
	builtNow         bool
	parent           *Subsystem
	children         []*Subsystem
}

// Option configures a subsystem at construction.
type Option func(*Subsystem)

// WithContext sets the subsystem's initial configuration context.
func WithContext(ctx Ctx) Option {
	return func(s *Subsystem) {
		s.ctx = ctx.Clone()
	}
}

// WithKernel attaches the ambient kernel collaborator.
func WithKernel(k Kernel) Option {
	return func(s *Subsystem) {
		s.kernel = k
	}
}

// WithDefaultHooks sets the hooks applied before any user hooks.
func WithDefaultHooks(hooks ...*Hook) Option {
	return func(s *Subsystem) {
		s.defaultHooks = append([]*Hook(nil), hooks...)
	}
}

// WithRegistry overrides the contract registry used during verification.
// Defaults to the process-wide DefaultRegistry.
func WithRegistry(r *ContractRegistry) Option {
	return func(s *Subsystem) {
		s.registry = r
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Subsystem) {
		s.log = log
	}
}

// WithGraphCache sets the builder's graph cache. A cache carried in the
// subsystem context under CtxKeyGraphCache takes precedence.
func WithGraphCache(cache *GraphCache) Option {
	return func(s *Subsystem) {
		s.builder = newBuilder(s, cache)
	}
}

// New creates a subsystem with the given name.
func New(name string, opts ...Option) *Subsystem {
	s := &Subsystem{
		name: name,
		id:   uuid.NewString(),
		ctx:  Ctx{},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.ctx == nil {
		s.ctx = Ctx{}
	}
	if s.builder == nil {
		s.builder = newBuilder(s, nil)
	}
	s.api = newAPI(name)
	s.facets = newManager(s, s.log)

	return s
}

// Name returns the subsystem's name.
func (s *Subsystem) Name() string { return s.name }

// ID returns the subsystem's unique instance identifier.
func (s *Subsystem) ID() string { return s.id }

// API returns the subsystem's public attachment surface.
func (s *Subsystem) API() *API { return s.api }

// Builder returns the subsystem's builder for two-phase planning.
func (s *Subsystem) Builder() *Builder { return s.builder }

// Facets returns the subsystem's facet manager.
func (s *Subsystem) Facets() *Manager { return s.facets }

// Use appends a hook. Rejected once the subsystem has been built for the
// current cycle; the error is deferred: Err reports it, and Build returns it
// once the subsystem is no longer built.
func (s *Subsystem) Use(h *Hook) *Subsystem {
	s.mu.Lock()
	if s.builtOnce {
		s.deferErr(StateError{Op: "use", Message: ErrHookAfterBuild.Error()})
		s.mu.Unlock()
		return s
	}
	if h == nil {
		s.deferErr(InvalidArgumentError{Argument: "hook", Message: ErrHookNotFunction.Error()})
		s.mu.Unlock()
		return s
	}

	s.hooks = append(s.hooks, h)
	s.mu.Unlock()

	s.builder.Invalidate()
	return s
}

// OnInit appends a subsystem-level init callback, run after a successful
// facet installation.
func (s *Subsystem) OnInit(fn LifecycleFunc) *Subsystem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.builtOnce {
		s.deferErr(StateError{Op: "onInit", Message: ErrHookAfterBuild.Error()})
		return s
	}
	if fn == nil {
		s.deferErr(InvalidArgumentError{Argument: "fn", Message: ErrNilCallback.Error()})
		return s
	}

	s.initCallbacks = append(s.initCallbacks, fn)
	return s
}

// OnDispose appends a subsystem-level dispose callback, run in reverse
// registration order during Dispose.
func (s *Subsystem) OnDispose(fn LifecycleFunc) *Subsystem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.builtOnce {
		s.deferErr(StateError{Op: "onDispose", Message: ErrHookAfterBuild.Error()})
		return s
	}
	if fn == nil {
		s.deferErr(InvalidArgumentError{Argument: "fn", Message: ErrNilCallback.Error()})
		return s
	}

	s.disposeCallbacks = append(s.disposeCallbacks, fn)
	return s
}

// Err returns the first deferred configuration error, if any.
func (s *Subsystem) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.configErr
}

// Build verifies and executes the subsystem's build plan. Idempotent while
// built; a disposed subsystem may be rebuilt.
func (s *Subsystem) Build(ctx context.Context) error {
	s.mu.RLock()
	if s.builtNow {
		s.mu.RUnlock()
		return nil
	}
	configErr := s.configErr
	s.mu.RUnlock()

	if configErr != nil {
		return configErr
	}

	return s.builder.Build(ctx)
}

// Dispose runs the subsystem's dispose callbacks in reverse registration
// order, disposes children in reverse order, then disposes the installed
// facets. Errors are aggregated; disposal never short-circuits. After
// Dispose, the subsystem may be configured and built again.
func (s *Subsystem) Dispose(ctx context.Context) error {
	s.mu.Lock()
	if !s.builtNow {
		s.mu.Unlock()
		return nil
	}
	s.builtNow = false
	callbacks := append([]LifecycleFunc(nil), s.disposeCallbacks...)
	children := append([]*Subsystem(nil), s.children...)
	cfg := s.ctx
	s.mu.Unlock()

	var errs error
	for i := len(callbacks) - 1; i >= 0; i-- {
		if err := callbacks[i](ctx, cfg, s.api, s); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Dispose(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	errs = multierr.Append(errs, s.facets.Dispose(ctx, cfg))

	// Allow reconfiguration before a rebuild. The memoized plan holds
	// already-disposed facets, so a rebuild must re-verify.
	s.mu.Lock()
	s.builtOnce = false
	s.mu.Unlock()
	s.builder.Invalidate()

	s.log.Debug("subsystem disposed", zap.String("subsystem", s.name))
	return errs
}

// Find returns the installed facet of the given kind, or nil.
func (s *Subsystem) Find(kind string) *Facet {
	return s.facets.Find(kind)
}

// Built reports whether the subsystem is currently built.
func (s *Subsystem) Built() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.builtNow
}

// Ctx returns the subsystem's current configuration context.
func (s *Subsystem) Ctx() Ctx {
	return s.snapshotCtx()
}

// AddChild registers a child subsystem and sets its parent back-reference.
// The parent owns the child's lifecycle; the child holds a non-owning
// reference for context propagation.
func (s *Subsystem) AddChild(child *Subsystem) *Subsystem {
	if child == nil {
		return s
	}

	s.mu.Lock()
	s.children = append(s.children, child)
	s.mu.Unlock()

	child.mu.Lock()
	child.parent = s
	child.mu.Unlock()
	return s
}

// RemoveChild detaches a child, clearing its parent back-reference. The child
// is not disposed.
func (s *Subsystem) RemoveChild(child *Subsystem) bool {
	if child == nil {
		return false
	}

	s.mu.Lock()
	removed := false
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()

	if removed {
		child.mu.Lock()
		child.parent = nil
		child.mu.Unlock()
	}
	return removed
}

// Children returns a snapshot of the registered children, in order.
func (s *Subsystem) Children() []*Subsystem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Subsystem, len(s.children))
	copy(out, s.children)
	return out
}

// Parent returns the parent subsystem, or nil for a root.
func (s *Subsystem) Parent() *Subsystem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.parent
}

// Root walks the parent chain to the top of the hierarchy.
func (s *Subsystem) Root() *Subsystem {
	current := s
	for {
		parent := current.Parent()
		if parent == nil {
			return current
		}
		current = parent
	}
}

// Lineage returns the chain of names from the root down to this subsystem.
func (s *Subsystem) Lineage() []string {
	var names []string
	for current := s; current != nil; current = current.Parent() {
		names = append([]string{current.name}, names...)
	}
	return names
}

// ========================================
// Internal accessors used by the pipeline
// ========================================

func (s *Subsystem) logger() *zap.Logger { return s.log }

func (s *Subsystem) contractRegistry() *ContractRegistry {
	if s.registry != nil {
		return s.registry
	}
	return DefaultRegistry()
}

func (s *Subsystem) kernelInitialized() bool {
	return s.kernel != nil && s.kernel.IsKernelInit()
}

func (s *Subsystem) mergedHooks() []*Hook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Hook, 0, len(s.defaultHooks)+len(s.hooks))
	out = append(out, s.defaultHooks...)
	out = append(out, s.hooks...)
	return out
}

func (s *Subsystem) snapshotCtx() Ctx {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ctx
}

func (s *Subsystem) setCtx(ctx Ctx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx = ctx
}

func (s *Subsystem) setCtxValue(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		s.ctx = Ctx{}
	}
	s.ctx[key] = value
}

func (s *Subsystem) runInitCallbacks(ctx context.Context, cfg Ctx) error {
	s.mu.RLock()
	callbacks := append([]LifecycleFunc(nil), s.initCallbacks...)
	s.mu.RUnlock()

	for _, fn := range callbacks {
		if err := fn(ctx, cfg, s.api, s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Subsystem) markBuilt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.builtOnce = true
	s.builtNow = true
}

func (s *Subsystem) deferErr(err error) {
	if s.configErr == nil {
		s.configErr = err
	}
}
