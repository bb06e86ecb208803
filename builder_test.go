package subsys_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facetworks/subsys"
	"github.com/facetworks/subsys/internal/testutil"
)

func TestBuilder_PlanMemoization(t *testing.T) {
	sub := subsys.New("memo").
		Use(testutil.NewHookBuilder(t, "a").Build())
	b := sub.Builder()

	assert.Nil(t, b.GetPlan())

	first, err := b.Plan(context.Background())
	require.NoError(t, err)

	second, err := b.Plan(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second, "repeated Plan calls return the same plan reference")
	assert.Same(t, first, b.GetPlan())
}

func TestBuilder_DryRunIsPlan(t *testing.T) {
	sub := subsys.New("dry").
		Use(testutil.NewHookBuilder(t, "a").Build())
	b := sub.Builder()

	plan, err := b.DryRun(context.Background())
	require.NoError(t, err)
	assert.Same(t, plan, b.GetPlan())
	assert.False(t, sub.Built())
	assert.Equal(t, 0, sub.Facets().Len())
}

func TestBuilder_Invalidate(t *testing.T) {
	sub := subsys.New("invalidate").
		Use(testutil.NewHookBuilder(t, "a").Build())
	b := sub.Builder()

	first, err := b.Plan(context.Background())
	require.NoError(t, err)

	b.Invalidate()
	assert.Nil(t, b.GetPlan())

	second, err := b.Plan(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestBuilder_WithCtxInvalidatesPlan(t *testing.T) {
	sub := subsys.New("ctx").
		Use(testutil.NewHookBuilder(t, "a").Build())
	b := sub.Builder()

	stale, err := b.Plan(context.Background())
	require.NoError(t, err)

	fresh, err := b.WithCtx(subsys.Ctx{"mode": "fast"}).Plan(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, stale, fresh, "WithCtx must implicitly invalidate the memoized plan")
	assert.Equal(t, "fast", fresh.ResolvedCtx["mode"])

	cleared, err := b.ClearCtx().Plan(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, fresh, cleared)
	_, hasMode := cleared.ResolvedCtx["mode"]
	assert.False(t, hasMode)
}

func TestBuilder_GraphCache(t *testing.T) {
	t.Run("builder cache populated", func(t *testing.T) {
		cache := subsys.NewGraphCache(8)
		sub := subsys.New("cached", subsys.WithGraphCache(cache)).
			Use(testutil.NewHookBuilder(t, "a").Build()).
			Use(testutil.NewHookBuilder(t, "b").Requires("a").Build())

		plan, err := sub.Builder().Plan(context.Background())
		require.NoError(t, err)

		cached, ok := cache.Get(plan.Fingerprint)
		require.True(t, ok)
		assert.Equal(t, plan.OrderedKinds, cached)
	})

	t.Run("cache shared across same-shaped subsystems", func(t *testing.T) {
		cache := subsys.NewGraphCache(8)

		build := func(name string) *subsys.Plan {
			sub := subsys.New(name, subsys.WithGraphCache(cache)).
				Use(testutil.NewHookBuilder(t, "a").Build()).
				Use(testutil.NewHookBuilder(t, "b").Requires("a").Build())
			plan, err := sub.Builder().Plan(context.Background())
			require.NoError(t, err)
			return plan
		}

		first := build("one")
		second := build("two")
		assert.Equal(t, first.Fingerprint, second.Fingerprint)
		assert.Equal(t, first.OrderedKinds, second.OrderedKinds)
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("ctx cache takes precedence", func(t *testing.T) {
		ctxCache := subsys.NewGraphCache(8)
		builderCache := subsys.NewGraphCache(8)

		sub := subsys.New("precedence",
			subsys.WithGraphCache(builderCache),
			subsys.WithContext(subsys.Ctx{subsys.CtxKeyGraphCache: ctxCache}),
		).Use(testutil.NewHookBuilder(t, "a").Build())

		_, err := sub.Builder().Plan(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, ctxCache.Len())
		assert.Equal(t, 0, builderCache.Len())
	})

	t.Run("cache is advisory", func(t *testing.T) {
		cache := subsys.NewGraphCache(8)
		sub := subsys.New("advisory", subsys.WithGraphCache(cache)).
			Use(testutil.NewHookBuilder(t, "a").Build())

		plan, err := sub.Builder().Plan(context.Background())
		require.NoError(t, err)

		// Poison the cache with an order that does not cover the kinds;
		// the next plan must recompute rather than trust it.
		cache.Put(plan.Fingerprint, []string{"ghost"})

		fresh, err := sub.Builder().Invalidate().Plan(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, fresh.OrderedKinds)
	})
}
