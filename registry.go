package subsys

import (
	"strings"
	"sync"
)

// ContractRegistry is an insertion-ordered collection of named contracts.
// The registry is safe for concurrent reads; mutation should happen during
// application bootstrap, before any build.
type ContractRegistry struct {
	mu        sync.RWMutex
	contracts map[string]*Contract
	order     []string
}

// NewContractRegistry creates an empty registry.
func NewContractRegistry() *ContractRegistry {
	return &ContractRegistry{
		contracts: make(map[string]*Contract),
	}
}

// Register adds a contract. Nil contracts, empty names, and duplicate names
// are rejected.
func (r *ContractRegistry) Register(c *Contract) error {
	if c == nil {
		return ErrNilContract
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrContractUnnamed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contracts[c.Name]; exists {
		return InvalidArgumentError{Argument: "contract", Message: ErrContractDuplicate.Error() + ": " + c.Name}
	}

	r.contracts[c.Name] = c
	r.order = append(r.order, c.Name)
	return nil
}

// MustRegister registers a contract and panics on failure. Intended for
// bootstrap-time registration of well-known contracts.
func (r *ContractRegistry) MustRegister(c *Contract) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Has reports whether a contract with the given name is registered.
// Tolerant of empty names.
func (r *ContractRegistry) Has(name string) bool {
	if name == "" {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.contracts[name]
	return ok
}

// Get returns the named contract, or nil when absent. Tolerant of empty names.
func (r *ContractRegistry) Get(name string) *Contract {
	if name == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.contracts[name]
}

// Enforce looks up the named contract and enforces it against the facet.
// Missing contracts fail with UnknownContractError.
func (r *ContractRegistry) Enforce(name string, cfg Ctx, api *API, sub *Subsystem, f *Facet) error {
	c := r.Get(name)
	if c == nil {
		return UnknownContractError{Contract: name}
	}

	return c.Enforce(cfg, api, sub, f)
}

// Remove deletes the named contract, reporting whether it existed.
func (r *ContractRegistry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contracts[name]; !ok {
		return false
	}

	delete(r.contracts, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns contract names in insertion order.
func (r *ContractRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Size returns the number of registered contracts.
func (r *ContractRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.contracts)
}

// Clear removes all contracts.
func (r *ContractRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contracts = make(map[string]*Contract)
	r.order = nil
}

var (
	defaultRegistry     *ContractRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide contract registry, seeded with the
// standard contracts (router, queue, processor, listeners, hierarchy,
// scheduler). Mutations should occur only during application bootstrap.
func DefaultRegistry() *ContractRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewContractRegistry()
		for _, c := range standardContracts() {
			defaultRegistry.MustRegister(c)
		}
	})

	return defaultRegistry
}
