package subsys_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facetworks/subsys"
)

func nopFactory(ctx context.Context, cfg subsys.Ctx, api *subsys.API, sub *subsys.Subsystem) (*subsys.Facet, error) {
	return nil, nil
}

func TestNewHook_Validation(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		h, err := subsys.NewHook(subsys.HookConfig{
			Kind:     "store",
			Required: []string{"queue", "router"},
			Attach:   true,
			Source:   "test/store",
			Fn:       nopFactory,
		})
		require.NoError(t, err)

		assert.Equal(t, "store", h.Kind())
		assert.Equal(t, []string{"queue", "router"}, h.Required())
		assert.True(t, h.Attach())
		assert.False(t, h.Overwrite())
		assert.Equal(t, "test/store", h.Source())
	})

	t.Run("rejects empty kind", func(t *testing.T) {
		_, err := subsys.NewHook(subsys.HookConfig{Source: "test", Fn: nopFactory})
		require.Error(t, err)

		var shapeErr subsys.HookShapeError
		require.ErrorAs(t, err, &shapeErr)
		assert.Contains(t, shapeErr.Error(), "kind")
	})

	t.Run("rejects empty source", func(t *testing.T) {
		_, err := subsys.NewHook(subsys.HookConfig{Kind: "store", Fn: nopFactory})
		require.Error(t, err)

		var shapeErr subsys.HookShapeError
		require.ErrorAs(t, err, &shapeErr)
		assert.Contains(t, shapeErr.Error(), "source")
	})

	t.Run("rejects nil factory", func(t *testing.T) {
		_, err := subsys.NewHook(subsys.HookConfig{Kind: "store", Source: "test"})
		require.Error(t, err)

		var shapeErr subsys.HookShapeError
		require.ErrorAs(t, err, &shapeErr)
		assert.Contains(t, shapeErr.Error(), "function")
	})

	t.Run("rejects blank required kinds", func(t *testing.T) {
		_, err := subsys.NewHook(subsys.HookConfig{
			Kind:     "store",
			Required: []string{"queue", "  "},
			Source:   "test",
			Fn:       nopFactory,
		})
		require.Error(t, err)
	})

	t.Run("required snapshot is independent", func(t *testing.T) {
		required := []string{"queue"}
		h, err := subsys.NewHook(subsys.HookConfig{Kind: "store", Required: required, Source: "test", Fn: nopFactory})
		require.NoError(t, err)

		required[0] = "mutated"
		assert.Equal(t, []string{"queue"}, h.Required())

		snapshot := h.Required()
		snapshot[0] = "mutated"
		assert.Equal(t, []string{"queue"}, h.Required())
	})
}

func TestMustHook(t *testing.T) {
	assert.NotPanics(t, func() {
		subsys.MustHook(subsys.HookConfig{Kind: "store", Source: "test", Fn: nopFactory})
	})
	assert.Panics(t, func() {
		subsys.MustHook(subsys.HookConfig{Kind: "", Source: "test", Fn: nopFactory})
	})
}
