package subsys

import (
	"fmt"
	"reflect"
	"strings"
)

// ValidateFunc is a contract's custom validator, invoked after the method and
// property checks pass.
type ValidateFunc func(cfg Ctx, api *API, sub *Subsystem, f *Facet) error

// Contract is a named structural specification applied to a facet before
// graph construction: required methods, required properties, and an optional
// custom validator.
type Contract struct {
	// Name identifies the contract in a registry. Must be non-empty.
	Name string

	// RequiredMethods lists member names that must be functions.
	RequiredMethods []string

	// RequiredProperties lists member names that must be present. A property
	// counts as present when the member exists, regardless of its value.
	RequiredProperties []string

	// Validate optionally performs custom checks. Any error it returns is
	// wrapped as a ContractViolationError preserving the cause.
	Validate ValidateFunc
}

// Enforce validates the facet against the contract. Checks run in fixed
// order: facet presence, required methods, required properties, custom
// validator. Each phase reports all of its offenders in a single error.
func (c *Contract) Enforce(cfg Ctx, api *API, sub *Subsystem, f *Facet) error {
	if f == nil {
		return ContractViolationError{Contract: c.Name, Message: "facet must be an object"}
	}

	var missingMethods []string
	for _, name := range c.RequiredMethods {
		member, ok := f.Member(name)
		if !ok || !isFunc(member) {
			missingMethods = append(missingMethods, name)
		}
	}
	if len(missingMethods) > 0 {
		return ContractViolationError{
			Contract: c.Name,
			Message:  fmt.Sprintf("facet is missing required methods: %s", strings.Join(missingMethods, ", ")),
		}
	}

	var missingProps []string
	for _, name := range c.RequiredProperties {
		if _, ok := f.Member(name); !ok {
			missingProps = append(missingProps, name)
		}
	}
	if len(missingProps) > 0 {
		return ContractViolationError{
			Contract: c.Name,
			Message:  fmt.Sprintf("facet is missing required properties: %s", strings.Join(missingProps, ", ")),
		}
	}

	if c.Validate != nil {
		if err := c.Validate(cfg, api, sub, f); err != nil {
			return ContractViolationError{
				Contract: c.Name,
				Message:  fmt.Sprintf("validation failed: %v", err),
				Cause:    err,
			}
		}
	}

	return nil
}

func isFunc(v any) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Kind() == reflect.Func
}

// isObject reports whether a member value is a map or struct-like value, the
// runtime's rendition of a plain object.
func isObject(v any) bool {
	if v == nil {
		return false
	}

	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Map, reflect.Struct:
		return true
	default:
		return false
	}
}
