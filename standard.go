package subsys

import (
	"errors"
	"fmt"
	"reflect"
)

// Standard contract names seeded into the default registry.
const (
	ContractRouter    = "router"
	ContractQueue     = "queue"
	ContractProcessor = "processor"
	ContractListeners = "listeners"
	ContractHierarchy = "hierarchy"
	ContractScheduler = "scheduler"
)

// standardContracts returns the standard contract set in registration order.
func standardContracts() []*Contract {
	return []*Contract{
		{
			Name:               ContractRouter,
			RequiredMethods:    []string{"registerRoute", "match", "route", "unregisterRoute", "hasRoute", "getRoutes"},
			RequiredProperties: []string{"_routeRegistry"},
			Validate: func(cfg Ctx, api *API, sub *Subsystem, f *Facet) error {
				registry, _ := f.Member("_routeRegistry")
				if !isObject(registry) {
					return errors.New("_routeRegistry must be a plain object")
				}
				return nil
			},
		},
		{
			Name:               ContractQueue,
			RequiredMethods:    []string{"selectNextMessage", "hasMessagesToProcess", "getQueueStatus"},
			RequiredProperties: []string{"_queueManager", "queue"},
			Validate: func(cfg Ctx, api *API, sub *Subsystem, f *Facet) error {
				manager, _ := f.Member("_queueManager")
				if !isObject(manager) {
					return errors.New("_queueManager must be an object")
				}
				if !hasCallable(manager, "enqueue") {
					return errors.New("_queueManager must expose an enqueue method")
				}

				queue, _ := f.Member("queue")
				if !isObject(queue) {
					return errors.New("queue must be an object")
				}
				return nil
			},
		},
		{
			Name:            ContractProcessor,
			RequiredMethods: []string{"accept", "processMessage", "processTick", "processImmediately"},
		},
		{
			Name:               ContractListeners,
			RequiredMethods:    []string{"on", "off", "hasListeners", "enableListeners", "disableListeners"},
			RequiredProperties: []string{"listeners"},
			Validate: func(cfg Ctx, api *API, sub *Subsystem, f *Facet) error {
				manager, ok := f.Member("_listenerManager")
				if !ok || !isFunc(manager) {
					return errors.New("_listenerManager must be a function")
				}

				result, err := callGetter(manager, "_listenerManager")
				if err != nil {
					return err
				}
				if result != nil && !isObject(result) {
					return errors.New("_listenerManager must return an object or nil")
				}
				return nil
			},
		},
		{
			Name:               ContractHierarchy,
			RequiredMethods:    []string{"addChild", "removeChild", "getChild", "listChildren", "setParent", "getParent", "isRoot", "getRoot", "getLineage"},
			RequiredProperties: []string{"children"},
			Validate: func(cfg Ctx, api *API, sub *Subsystem, f *Facet) error {
				children, _ := f.Member("children")
				if isFunc(children) {
					var err error
					children, err = callGetter(children, "children")
					if err != nil {
						return err
					}
				}
				if !isObject(children) {
					return errors.New("children must be an object")
				}
				return nil
			},
		},
		{
			Name:               ContractScheduler,
			RequiredMethods:    []string{"process", "pauseProcessing", "resumeProcessing", "isPaused", "isProcessing", "getPriority", "setPriority", "configureScheduler", "getScheduler"},
			RequiredProperties: []string{"_scheduler"},
			Validate: func(cfg Ctx, api *API, sub *Subsystem, f *Facet) error {
				scheduler, _ := f.Member("_scheduler")
				if !isObject(scheduler) {
					return errors.New("_scheduler must be an object")
				}
				return nil
			},
		},
	}
}

// callGetter invokes a zero-argument member function and returns its single
// result.
func callGetter(member any, name string) (any, error) {
	v := reflect.ValueOf(member)
	t := v.Type()
	if t.Kind() != reflect.Func || t.NumIn() != 0 || t.NumOut() != 1 {
		return nil, fmt.Errorf("%s must be a zero-argument function returning a single value", name)
	}

	out := v.Call(nil)[0]
	if !out.IsValid() || (out.Kind() == reflect.Interface && out.IsNil()) || (out.Kind() == reflect.Pointer && out.IsNil()) || (out.Kind() == reflect.Map && out.IsNil()) {
		return nil, nil
	}
	return out.Interface(), nil
}

// hasCallable reports whether an object value exposes a function member or
// method with the given name.
func hasCallable(obj any, name string) bool {
	if obj == nil {
		return false
	}

	if m, ok := obj.(map[string]any); ok {
		return isFunc(m[name])
	}
	if m, ok := obj.(Members); ok {
		return isFunc(m[name])
	}

	v := reflect.ValueOf(obj)
	method := v.MethodByName(capitalize(name))
	if method.IsValid() {
		return true
	}
	return v.MethodByName(name).IsValid()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
