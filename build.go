package subsys

import (
	"context"
	"reflect"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// buildSubsystem executes a verified plan transactionally: assign the
// resolved context, install the facets in order, run the subsystem's init
// callbacks, then build children sequentially. Any failure restores the
// subsystem to its pre-build state before propagating.
func buildSubsystem(ctx context.Context, sub *Subsystem, plan *Plan, cache *GraphCache) error {
	if err := plan.validate(); err != nil {
		return err
	}

	log := sub.logger()
	priorCtx := sub.snapshotCtx()

	// The resolved context replaces the subsystem context; it is restored
	// verbatim on any failure below.
	sub.setCtx(plan.ResolvedCtx)

	if err := sub.facets.AddMany(ctx, plan, AddOptions{Cfg: plan.ResolvedCtx, Init: true, Attach: true}); err != nil {
		sub.setCtx(priorCtx)
		return err
	}

	if err := sub.runInitCallbacks(ctx, plan.ResolvedCtx); err != nil {
		err = multierr.Append(err, sub.facets.Dispose(ctx, plan.ResolvedCtx))
		sub.setCtx(priorCtx)
		return err
	}

	// Build children sequentially, in collection order. Parallel sibling
	// builds would make rollback order indeterminate.
	built := make([]*Subsystem, 0)
	for _, child := range collectChildren(sub) {
		if child == nil || child.Built() {
			continue
		}

		child.setCtxValue(CtxKeyParent, sub.snapshotCtx())
		if cache != nil {
			child.setCtxValue(CtxKeyGraphCache, cache)
		}

		if err := child.Build(ctx); err != nil {
			var rollbackErr error
			for i := len(built) - 1; i >= 0; i-- {
				rollbackErr = multierr.Append(rollbackErr, built[i].Dispose(ctx))
			}
			rollbackErr = multierr.Append(rollbackErr, sub.facets.Dispose(ctx, plan.ResolvedCtx))
			sub.setCtx(priorCtx)

			log.Debug("child build failed",
				zap.String("subsystem", sub.Name()),
				zap.String("child", child.Name()),
				zap.Error(err),
			)
			return multierr.Append(ChildBuildError{Child: child.Name(), Cause: err}, rollbackErr)
		}
		built = append(built, child)
	}

	sub.markBuilt()
	log.Debug("subsystem built",
		zap.String("subsystem", sub.Name()),
		zap.Int("facets", len(plan.OrderedKinds)),
		zap.Int("children", len(built)),
	)
	return nil
}

// collectChildren discovers the subsystems to build after this one. The
// hierarchy facet is authoritative when installed; the subsystem's own child
// collection is the fallback.
func collectChildren(sub *Subsystem) []*Subsystem {
	if f := sub.Find(ContractHierarchy); f != nil {
		if member, ok := f.Member("listChildren"); ok && isFunc(member) {
			return childrenFromMember(member)
		}
		return nil
	}

	return sub.Children()
}

// childrenFromMember invokes a listChildren member and normalizes its result.
// Supported shapes: []*Subsystem, []any, and map[string]*Subsystem (sorted by
// key for determinism).
func childrenFromMember(member any) []*Subsystem {
	v := reflect.ValueOf(member)
	t := v.Type()
	if t.Kind() != reflect.Func || t.NumIn() != 0 || t.NumOut() != 1 {
		return nil
	}

	result := v.Call(nil)[0]
	if !result.IsValid() {
		return nil
	}

	switch value := result.Interface().(type) {
	case []*Subsystem:
		return value
	case []any:
		out := make([]*Subsystem, 0, len(value))
		for _, item := range value {
			if child, ok := item.(*Subsystem); ok {
				out = append(out, child)
			}
		}
		return out
	case map[string]*Subsystem:
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		out := make([]*Subsystem, 0, len(value))
		for _, key := range keys {
			out = append(out, value[key])
		}
		return out
	default:
		return nil
	}
}
