package graph

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle. Path walks the cycle in dependency
// order, closed on the starting kind.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "dependency cycle detected"
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}
