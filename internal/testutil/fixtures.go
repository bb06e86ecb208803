package testutil

import (
	"github.com/facetworks/subsys"
)

// RouterMembers returns a member set satisfying the standard router contract.
func RouterMembers() subsys.Members {
	registry := map[string]any{}
	return subsys.Members{
		"registerRoute":   func(pattern string) {},
		"match":           func(path string) bool { return false },
		"route":           func(path string) any { return nil },
		"unregisterRoute": func(pattern string) {},
		"hasRoute":        func(pattern string) bool { return false },
		"getRoutes":       func() []string { return nil },
		"_routeRegistry":  registry,
	}
}

// QueueMembers returns a member set satisfying the standard queue contract.
func QueueMembers() subsys.Members {
	manager := map[string]any{
		"enqueue": func(msg any) {},
	}
	return subsys.Members{
		"selectNextMessage":    func() any { return nil },
		"hasMessagesToProcess": func() bool { return false },
		"getQueueStatus":       func() string { return "idle" },
		"_queueManager":        manager,
		"queue":                map[string]any{},
	}
}

// ProcessorMembers returns a member set satisfying the standard processor
// contract.
func ProcessorMembers() subsys.Members {
	return subsys.Members{
		"accept":             func(msg any) bool { return true },
		"processMessage":     func(msg any) error { return nil },
		"processTick":        func() {},
		"processImmediately": func(msg any) error { return nil },
	}
}

// ListenersMembers returns a member set satisfying the standard listeners
// contract.
func ListenersMembers() subsys.Members {
	manager := map[string]any{}
	return subsys.Members{
		"on":               func(event string, fn func(any)) {},
		"off":              func(event string) {},
		"hasListeners":     func(event string) bool { return false },
		"enableListeners":  func() {},
		"disableListeners": func() {},
		"listeners":        map[string]any{},
		"_listenerManager": func() any { return manager },
	}
}

// HierarchyMembers returns a member set satisfying the standard hierarchy
// contract. The listChildren member reports the given children.
func HierarchyMembers(children ...*subsys.Subsystem) subsys.Members {
	byName := map[string]any{}
	for _, child := range children {
		byName[child.Name()] = child
	}

	return subsys.Members{
		"addChild":     func(child *subsys.Subsystem) {},
		"removeChild":  func(name string) {},
		"getChild":     func(name string) *subsys.Subsystem { return nil },
		"listChildren": func() []*subsys.Subsystem { return children },
		"setParent":    func(parent *subsys.Subsystem) {},
		"getParent":    func() *subsys.Subsystem { return nil },
		"isRoot":       func() bool { return true },
		"getRoot":      func() *subsys.Subsystem { return nil },
		"getLineage":   func() []string { return nil },
		"children":     byName,
	}
}

// SchedulerMembers returns a member set satisfying the standard scheduler
// contract.
func SchedulerMembers() subsys.Members {
	return subsys.Members{
		"process":            func() {},
		"pauseProcessing":    func() {},
		"resumeProcessing":   func() {},
		"isPaused":           func() bool { return false },
		"isProcessing":       func() bool { return false },
		"getPriority":        func() int { return 0 },
		"setPriority":        func(priority int) {},
		"configureScheduler": func(cfg map[string]any) {},
		"getScheduler":       func() any { return nil },
		"_scheduler":         map[string]any{},
	}
}
