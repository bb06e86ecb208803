package subsys

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Builder drives a subsystem's two-phase build. Plan is pure and memoized;
// Build executes the plan transactionally. A builder belongs to exactly one
// subsystem.
type Builder struct {
	sub *Subsystem

	mu         sync.Mutex
	extraCtx   Ctx
	cachedPlan *Plan
	graphCache *GraphCache
}

func newBuilder(sub *Subsystem, cache *GraphCache) *Builder {
	return &Builder{
		sub:        sub,
		graphCache: cache,
	}
}

// WithCtx deep-merges extra configuration into the context used by the next
// plan. Implicitly invalidates any memoized plan, so the next Plan call
// re-resolves with the new context.
func (b *Builder) WithCtx(extra Ctx) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.extraCtx = mergeCtx(b.extraCtx, extra)
	b.cachedPlan = nil
	return b
}

// ClearCtx drops all accumulated extra context and invalidates the memoized
// plan.
func (b *Builder) ClearCtx() *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.extraCtx = nil
	b.cachedPlan = nil
	return b
}

// Plan verifies the subsystem and returns its frozen build plan. The plan is
// memoized: repeated calls return the same plan until Invalidate, WithCtx, or
// ClearCtx. The graph cache is chosen in preference order: the subsystem
// context's cache, then the explicit argument, then the builder's own.
func (b *Builder) Plan(ctx context.Context, cache ...*GraphCache) (*Plan, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cachedPlan != nil {
		return b.cachedPlan, nil
	}

	selected := b.graphCache
	if len(cache) > 0 && cache[0] != nil {
		selected = cache[0]
	}
	if ctxCache := b.sub.snapshotCtx().GraphCache(); ctxCache != nil {
		selected = ctxCache
	}

	plan, err := verifyBuild(ctx, b.sub, b.extraCtx, selected)
	if err != nil {
		return nil, err
	}

	b.cachedPlan = plan
	b.sub.logger().Debug("plan resolved",
		zap.String("subsystem", b.sub.Name()),
		zap.Strings("order", plan.OrderedKinds),
	)
	return plan, nil
}

// DryRun is an alias of Plan: full verification with no side effects.
func (b *Builder) DryRun(ctx context.Context, cache ...*GraphCache) (*Plan, error) {
	return b.Plan(ctx, cache...)
}

// GetPlan returns the memoized plan, or nil when none has been resolved.
func (b *Builder) GetPlan() *Plan {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.cachedPlan
}

// Invalidate clears the memoized plan only. Accumulated extra context and the
// graph cache are kept.
func (b *Builder) Invalidate() *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cachedPlan = nil
	return b
}

// GraphCache returns the builder's own graph cache, which may be nil.
func (b *Builder) GraphCache() *GraphCache {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.graphCache
}

// Build plans (or reuses the memoized plan) and executes it transactionally.
func (b *Builder) Build(ctx context.Context) error {
	plan, err := b.Plan(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	selected := b.graphCache
	b.mu.Unlock()
	if ctxCache := b.sub.snapshotCtx().GraphCache(); ctxCache != nil {
		selected = ctxCache
	}

	if err := buildSubsystem(ctx, b.sub, plan, selected); err != nil {
		// The memoized plan's facets went through rollback; a retry must
		// re-run the factories.
		b.Invalidate()
		return err
	}
	return nil
}
