package subsys

// Well-known context keys used by the build pipeline.
const (
	// CtxKeyParent holds the parent subsystem's resolved context after a
	// hierarchical build.
	CtxKeyParent = "parent"

	// CtxKeyGraphCache holds a *GraphCache shared across a subsystem tree.
	CtxKeyGraphCache = "graphCache"
)

// Ctx is a subsystem's configuration context: a string-keyed tree of values.
// Nested maps merge recursively; everything else (including slices) replaces.
type Ctx map[string]any

// Clone returns a shallow copy of the context. Nested maps are shared.
func (c Ctx) Clone() Ctx {
	if c == nil {
		return nil
	}

	out := make(Ctx, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// GraphCache returns the shared graph cache carried in the context, if any.
func (c Ctx) GraphCache() *GraphCache {
	if c == nil {
		return nil
	}

	cache, _ := c[CtxKeyGraphCache].(*GraphCache)
	return cache
}

// mergeCtx deep-merges extra into base and returns a new context. Extra wins
// on leaf conflicts; arrays are replaced, not concatenated. Neither input is
// mutated.
func mergeCtx(base, extra Ctx) Ctx {
	if base == nil && extra == nil {
		return Ctx{}
	}

	out := make(Ctx, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}

	for k, v := range extra {
		existing, ok := out[k]
		if !ok {
			out[k] = v
			continue
		}

		existingMap, okExisting := asCtx(existing)
		extraMap, okExtra := asCtx(v)
		if okExisting && okExtra {
			out[k] = mergeCtx(existingMap, extraMap)
			continue
		}

		out[k] = v
	}

	return out
}

func asCtx(v any) (Ctx, bool) {
	switch m := v.(type) {
	case Ctx:
		return m, true
	case map[string]any:
		return Ctx(m), true
	default:
		return nil, false
	}
}
