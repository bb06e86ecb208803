package subsys

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// AddOptions configures a Manager.AddMany call.
type AddOptions struct {
	// Cfg is the resolved configuration context passed to lifecycle callbacks.
	Cfg Ctx

	// Init runs each facet's init callbacks after insertion.
	Init bool

	// Attach exposes attach-policy facets on the subsystem API after init.
	Attach bool
}

// Manager holds the facets installed on a subsystem, in insertion order.
// Installation through AddMany is transactional: a failure at any point rolls
// back every facet added by that call, in reverse order.
type Manager struct {
	sub *Subsystem
	log *zap.Logger

	mu     sync.RWMutex
	facets map[string]*Facet
	order  []string
}

func newManager(sub *Subsystem, log *zap.Logger) *Manager {
	return &Manager{
		sub:    sub,
		log:    log,
		facets: make(map[string]*Facet),
	}
}

// Add inserts a single facet without running its lifecycle. The kind must not
// already be installed.
func (m *Manager) Add(f *Facet) error {
	if f == nil {
		return InvalidArgumentError{Argument: "facet", Message: "cannot be nil"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.facets[f.Kind()]; exists {
		return StateError{Op: "add facet", Message: fmt.Sprintf("kind %q is already installed", f.Kind())}
	}

	m.facets[f.Kind()] = f
	m.order = append(m.order, f.Kind())
	return nil
}

// AddMany installs the plan's facets in order: insert, init, attach. If any
// step fails, every facet added by this call is rolled back in reverse order
// (best-effort dispose with aggregated errors, then removal) and the original
// error is returned with any rollback errors appended.
func (m *Manager) AddMany(ctx context.Context, plan *Plan, opts AddOptions) error {
	if plan == nil {
		return InvalidPlanError{Message: "plan cannot be nil"}
	}

	api := m.sub.API()
	added := make([]string, 0, len(plan.OrderedKinds))

	install := func() error {
		for _, kind := range plan.OrderedKinds {
			facet, ok := plan.FacetsByKind[kind]
			if !ok {
				return InvalidPlanError{Message: fmt.Sprintf("ordered kind %q has no facet", kind)}
			}

			if err := m.Add(facet); err != nil {
				return err
			}
			added = append(added, kind)

			if opts.Init {
				if err := facet.Init(ctx, opts.Cfg, api, m.sub); err != nil {
					return err
				}
			}

			if opts.Attach && facet.ShouldAttach() {
				api.attach(facet)
			}

			m.log.Debug("facet installed",
				zap.String("subsystem", m.sub.Name()),
				zap.String("kind", kind),
			)
		}
		return nil
	}

	if err := install(); err != nil {
		rollbackErr := m.rollback(ctx, added, opts.Cfg)
		return multierr.Append(err, rollbackErr)
	}

	return nil
}

// rollback disposes and removes the named facets in reverse order. Dispose
// errors are aggregated; removal always proceeds.
func (m *Manager) rollback(ctx context.Context, added []string, cfg Ctx) error {
	api := m.sub.API()

	var errs error
	for i := len(added) - 1; i >= 0; i-- {
		kind := added[i]

		m.mu.RLock()
		facet := m.facets[kind]
		m.mu.RUnlock()
		if facet == nil {
			continue
		}

		if facet.Initialized() && !facet.Disposed() {
			if err := facet.Dispose(ctx, cfg, api, m.sub); err != nil {
				errs = multierr.Append(errs, err)
			}
		}

		api.detach(facet)
		m.remove(kind)

		m.log.Debug("facet rolled back",
			zap.String("subsystem", m.sub.Name()),
			zap.String("kind", kind),
		)
	}

	return errs
}

// Find returns the installed facet of the given kind, or nil.
func (m *Manager) Find(kind string) *Facet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.facets[kind]
}

// Kinds returns the installed kinds in insertion order.
func (m *Manager) Kinds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of installed facets.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.facets)
}

// Dispose disposes all installed facets in reverse insertion order, detaches
// them from the API, and empties the manager. Errors are aggregated; one
// failing facet never prevents the rest from disposing.
func (m *Manager) Dispose(ctx context.Context, cfg Ctx) error {
	m.mu.Lock()
	order := m.order
	facets := m.facets
	m.order = nil
	m.facets = make(map[string]*Facet)
	m.mu.Unlock()

	api := m.sub.API()

	var errs error
	for i := len(order) - 1; i >= 0; i-- {
		facet := facets[order[i]]
		if facet == nil || !facet.Initialized() || facet.Disposed() {
			continue
		}

		if err := facet.Dispose(ctx, cfg, api, m.sub); err != nil {
			errs = multierr.Append(errs, err)
		}
		api.detach(facet)
	}

	return errs
}

func (m *Manager) remove(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.facets, kind)
	for i, k := range m.order {
		if k == kind {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
