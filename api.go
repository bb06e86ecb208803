package subsys

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// API is a subsystem's public attachment surface. Facets built with the
// attach policy expose their non-underscore members here; entries resolve
// live against the owning facet, so reads observe the facet's current member
// values.
type API struct {
	name string

	mu      sync.RWMutex
	entries map[string]apiEntry
}

type apiEntry struct {
	facet  *Facet
	member string
}

func newAPI(name string) *API {
	return &API{
		name:    name,
		entries: make(map[string]apiEntry),
	}
}

// SubsystemName returns the name of the owning subsystem.
func (a *API) SubsystemName() string { return a.name }

// Get returns the attached member by name. The value is read from the owning
// facet at call time.
func (a *API) Get(name string) (any, bool) {
	a.mu.RLock()
	entry, ok := a.entries[name]
	a.mu.RUnlock()
	if !ok {
		return nil, false
	}

	return entry.facet.Member(entry.member)
}

// Has reports whether a member is attached under the given name.
func (a *API) Has(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, ok := a.entries[name]
	return ok
}

// Names returns the attached member names in sorted order.
func (a *API) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]string, 0, len(a.entries))
	for name := range a.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Invoke calls an attached function member with the given arguments. When the
// function's last return value is a non-nil error, it is returned as the
// error; the remaining results are returned as values.
func (a *API) Invoke(name string, args ...any) ([]any, error) {
	member, ok := a.Get(name)
	if !ok {
		return nil, InvalidArgumentError{Argument: "name", Message: fmt.Sprintf("no member %q attached to subsystem %q", name, a.name)}
	}

	fn := reflect.ValueOf(member)
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, InvalidArgumentError{Argument: "name", Message: fmt.Sprintf("member %q of subsystem %q is not a function", name, a.name)}
	}

	t := fn.Type()
	if !t.IsVariadic() && t.NumIn() != len(args) {
		return nil, InvalidArgumentError{
			Argument: "args",
			Message:  fmt.Sprintf("member %q expects %d arguments, got %d", name, t.NumIn(), len(args)),
		}
	}
	if t.IsVariadic() && len(args) < t.NumIn()-1 {
		return nil, InvalidArgumentError{
			Argument: "args",
			Message:  fmt.Sprintf("member %q expects at least %d arguments, got %d", name, t.NumIn()-1, len(args)),
		}
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		paramType := t.In(min(i, t.NumIn()-1))
		if t.IsVariadic() && i >= t.NumIn()-1 {
			paramType = t.In(t.NumIn() - 1).Elem()
		}

		if arg == nil {
			in[i] = reflect.Zero(paramType)
			continue
		}

		value := reflect.ValueOf(arg)
		if !value.Type().AssignableTo(paramType) {
			return nil, InvalidArgumentError{
				Argument: "args",
				Message:  fmt.Sprintf("member %q argument %d: cannot use %s as %s", name, i, value.Type(), paramType),
			}
		}
		in[i] = value
	}

	out := fn.Call(in)
	results := make([]any, 0, len(out))
	var callErr error
	for i, v := range out {
		if i == len(out)-1 && v.Type() == errorType {
			if !v.IsNil() {
				callErr = v.Interface().(error)
			}
			continue
		}
		results = append(results, v.Interface())
	}

	return results, callErr
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// attach exposes the facet's non-underscore members. Later attachments of the
// same name displace earlier ones; facets attach in dependency order.
func (a *API) attach(f *Facet) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, name := range f.MemberNames() {
		if strings.HasPrefix(name, "_") {
			continue
		}
		a.entries[name] = apiEntry{facet: f, member: name}
	}
}

// detach removes every entry owned by the facet.
func (a *API) detach(f *Facet) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for name, entry := range a.entries {
		if entry.facet == f {
			delete(a.entries, name)
		}
	}
}
