package subsys

import (
	"context"
	"sync"
)

// standaloneSource identifies the standalone system's default hooks in
// diagnostics.
const standaloneSource = "subsys/standalone"

// ListenerFunc handles an event emitted through a listener manager.
type ListenerFunc func(payload any)

// listenerManager is the minimal event surface backing the standalone
// system's listeners facet.
type listenerManager struct {
	mu        sync.RWMutex
	enabled   bool
	listeners map[string][]ListenerFunc
}

func newListenerManager() *listenerManager {
	return &listenerManager{
		enabled:   true,
		listeners: make(map[string][]ListenerFunc),
	}
}

func (m *listenerManager) on(event string, fn ListenerFunc) {
	if event == "" || fn == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[event] = append(m.listeners[event], fn)
}

func (m *listenerManager) off(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, event)
}

func (m *listenerManager) hasListeners(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners[event]) > 0
}

func (m *listenerManager) setEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// emit invokes the event's listeners in registration order and returns how
// many ran. Disabled managers emit nothing.
func (m *listenerManager) emit(event string, payload any) int {
	m.mu.RLock()
	enabled := m.enabled
	fns := append([]ListenerFunc(nil), m.listeners[event]...)
	m.mu.RUnlock()

	if !enabled {
		return 0
	}

	for _, fn := range fns {
		fn(payload)
	}
	return len(fns)
}

func (m *listenerManager) snapshot() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int, len(m.listeners))
	for event, fns := range m.listeners {
		out[event] = len(fns)
	}
	return out
}

// ListenersHook returns a hook producing a listeners facet backed by an
// in-memory listener manager. The facet satisfies the standard listeners
// contract and attaches its event surface to the subsystem API.
func ListenersHook() *Hook {
	return MustHook(HookConfig{
		Kind:   ContractListeners,
		Attach: true,
		Source: standaloneSource,
		Fn: func(ctx context.Context, cfg Ctx, api *API, sub *Subsystem) (*Facet, error) {
			f, err := NewFacet(ContractListeners, FacetOptions{
				Source:   standaloneSource,
				Attach:   true,
				Contract: ContractListeners,
			})
			if err != nil {
				return nil, err
			}

			manager := newListenerManager()
			if err := f.Add(Members{
				"on":               manager.on,
				"off":              manager.off,
				"emit":             manager.emit,
				"hasListeners":     manager.hasListeners,
				"enableListeners":  func() { manager.setEnabled(true) },
				"disableListeners": func() { manager.setEnabled(false) },
				"listeners":        manager.snapshot,
				"_listenerManager": func() any { return manager },
			}); err != nil {
				return nil, err
			}

			return f, nil
		},
	})
}

// NewStandalone creates a minimal pre-configured host: a subsystem whose
// default hooks enable listeners. Plugins are appended with Use before Build.
func NewStandalone(name string, opts ...Option) *Subsystem {
	merged := append([]Option{WithDefaultHooks(ListenersHook())}, opts...)
	return New(name, merged...)
}
