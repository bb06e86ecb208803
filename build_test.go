package subsys_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facetworks/subsys"
	"github.com/facetworks/subsys/internal/testutil"
)

func TestBuild_InstallsInDependencyOrder(t *testing.T) {
	recorder := testutil.NewLifecycleRecorder()
	sub := subsys.New("ordered").
		Use(testutil.NewHookBuilder(t, "c").Requires("b").OnInit(recorder.Init("c")).Build()).
		Use(testutil.NewHookBuilder(t, "a").OnInit(recorder.Init("a")).Build()).
		Use(testutil.NewHookBuilder(t, "b").Requires("a").OnInit(recorder.Init("b")).Build())

	require.NoError(t, sub.Build(context.Background()))

	assert.Equal(t, []string{"init:a", "init:b", "init:c"}, recorder.Events())
	assert.Equal(t, []string{"a", "b", "c"}, sub.Facets().Kinds())

	for _, kind := range []string{"a", "b", "c"} {
		facet := sub.Find(kind)
		require.NotNil(t, facet, "facet %q should be installed", kind)
		assert.True(t, facet.Initialized())
	}
}

func TestBuild_FindReturnsSameFacet(t *testing.T) {
	sub := subsys.New("stable").
		Use(testutil.NewHookBuilder(t, "store").Build())

	require.NoError(t, sub.Build(context.Background()))

	plan := sub.Builder().GetPlan()
	require.NotNil(t, plan)
	assert.Same(t, plan.FacetsByKind["store"], sub.Find("store"))
}

func TestBuild_AttachesMembers(t *testing.T) {
	sub := subsys.New("attached").
		Use(testutil.NewHookBuilder(t, "math").
			Attach().
			WithMember("double", func(x int) int { return x * 2 }).
			WithMember("answer", 42).
			WithMember("_hidden", func() {}).
			Build()).
		Use(testutil.NewHookBuilder(t, "silent").
			WithMember("whisper", func() {}).
			Build())

	require.NoError(t, sub.Build(context.Background()))

	api := sub.API()
	assert.True(t, api.Has("double"))
	assert.True(t, api.Has("answer"))
	assert.False(t, api.Has("_hidden"), "underscore members are never attached")
	assert.False(t, api.Has("whisper"), "facets without the attach policy are not attached")

	results, err := api.Invoke("double", 21)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 42, results[0])

	answer, ok := api.Get("answer")
	require.True(t, ok)
	assert.Equal(t, 42, answer)
}

func TestBuild_Idempotent(t *testing.T) {
	initCount := 0
	sub := subsys.New("idempotent").
		Use(testutil.NewHookBuilder(t, "a").
			OnInit(func(ctx context.Context, cfg subsys.Ctx, api *subsys.API, sub *subsys.Subsystem) error {
				initCount++
				return nil
			}).
			Build())

	require.NoError(t, sub.Build(context.Background()))
	require.NoError(t, sub.Build(context.Background()))

	assert.Equal(t, 1, initCount, "a second Build while built must be a no-op")
	assert.Equal(t, 1, sub.Facets().Len())
}

func TestBuild_RoundTrip(t *testing.T) {
	recorder := testutil.NewLifecycleRecorder()
	hookFor := func(kind string, deps ...string) *subsys.Hook {
		return testutil.NewHookBuilder(t, kind).
			Requires(deps...).
			OnInit(recorder.Init(kind)).
			OnDispose(recorder.Dispose(kind)).
			Build()
	}

	sub := subsys.New("roundtrip").
		Use(hookFor("a")).
		Use(hookFor("b", "a"))

	require.NoError(t, sub.Build(context.Background()))
	firstKinds := sub.Facets().Kinds()

	require.NoError(t, sub.Dispose(context.Background()))
	assert.False(t, sub.Built())
	assert.Equal(t, 0, sub.Facets().Len())

	require.NoError(t, sub.Build(context.Background()))
	assert.Equal(t, firstKinds, sub.Facets().Kinds(), "rebuild yields the same facet kinds")

	assert.Equal(t, []string{
		"init:a", "init:b",
		"dispose:b", "dispose:a",
		"init:a", "init:b",
	}, recorder.Events(), "disposal order is the exact reverse of initialization")
}

func TestBuild_InitFailureRollsBack(t *testing.T) {
	recorder := testutil.NewLifecycleRecorder()
	boom := errors.New("b init failed")

	sub := subsys.New("rollback", subsys.WithContext(subsys.Ctx{"stage": "before"})).
		Use(testutil.NewHookBuilder(t, "a").
			OnInit(recorder.Init("a")).
			OnDispose(recorder.Dispose("a")).
			Build()).
		Use(testutil.NewHookBuilder(t, "b").
			Requires("a").
			OnInit(func(ctx context.Context, cfg subsys.Ctx, api *subsys.API, sub *subsys.Subsystem) error {
				return boom
			}).
			Build()).
		Use(testutil.NewHookBuilder(t, "c").
			Requires("b").
			OnInit(recorder.Init("c")).
			Build())

	err := sub.Build(context.Background())
	require.ErrorIs(t, err, boom)

	// A was disposed before the error surfaced; C was never initialized.
	assert.Equal(t, []string{"init:a", "dispose:a"}, recorder.Events())
	assert.Nil(t, sub.Find("a"))
	assert.Nil(t, sub.Find("b"))
	assert.Nil(t, sub.Find("c"))
	assert.Equal(t, 0, sub.Facets().Len())
	assert.False(t, sub.Built())
	assert.Equal(t, "before", sub.Ctx()["stage"], "context is restored to its pre-build value")
}

func TestBuild_ContractFailureInstallsNothing(t *testing.T) {
	factoryRan := false
	aHook, err := subsys.NewHook(subsys.HookConfig{
		Kind:   "a",
		Source: "test/a",
		Fn: func(ctx context.Context, cfg subsys.Ctx, api *subsys.API, sub *subsys.Subsystem) (*subsys.Facet, error) {
			factoryRan = true
			return subsys.NewFacet("a", subsys.FacetOptions{Source: "test/a"})
		},
	})
	require.NoError(t, err)

	sub := subsys.New("contractual").
		Use(aHook).
		Use(testutil.NewHookBuilder(t, "processor").WithContract(subsys.ContractProcessor).Build())

	err = sub.Build(context.Background())
	require.Error(t, err)
	require.True(t, subsys.IsContractFailure(err))
	assert.Contains(t, err.Error(), `"processor"`)
	assert.Contains(t, err.Error(), "accept")

	assert.True(t, factoryRan, "verification executes factories before contract enforcement")
	assert.Nil(t, sub.Find("a"), "no facet is installed when verification fails")
	assert.Equal(t, 0, sub.Facets().Len())
	assert.False(t, sub.Built())
}

func TestBuild_SubsystemInitCallbackFailure(t *testing.T) {
	recorder := testutil.NewLifecycleRecorder()
	boom := errors.New("subsystem init failed")

	sub := subsys.New("subinit", subsys.WithContext(subsys.Ctx{"stage": "before"})).
		Use(testutil.NewHookBuilder(t, "a").
			OnInit(recorder.Init("a")).
			OnDispose(recorder.Dispose("a")).
			Build())
	sub.OnInit(func(ctx context.Context, cfg subsys.Ctx, api *subsys.API, s *subsys.Subsystem) error {
		return boom
	})

	err := sub.Build(context.Background())
	require.ErrorIs(t, err, boom)

	assert.Equal(t, []string{"init:a", "dispose:a"}, recorder.Events())
	assert.Equal(t, 0, sub.Facets().Len())
	assert.Equal(t, "before", sub.Ctx()["stage"])
	assert.False(t, sub.Built())
}

func TestBuild_AssignsResolvedCtx(t *testing.T) {
	sub := subsys.New("resolved", subsys.WithContext(subsys.Ctx{"region": "eu"}))
	sub.Builder().WithCtx(subsys.Ctx{"mode": "fast"})

	require.NoError(t, sub.Build(context.Background()))

	assert.Equal(t, "eu", sub.Ctx()["region"])
	assert.Equal(t, "fast", sub.Ctx()["mode"])
}
