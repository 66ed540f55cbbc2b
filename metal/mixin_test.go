package metal_test

import (
	"testing"

	"github.com/delaneyj/metal/metal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMixins(t *testing.T) {
	rt := metal.CreateRuntime()
	base := metal.NewMixin("Base", map[string]any{"greeting": "hi"})
	named := metal.NewMixin("Named", map[string]any{
		"name": metal.Tracked(func(*metal.Object) any { return "anon" }),
	}, base)

	p := metal.NewPrototype(nil, "Person", nil)
	require.NoError(t, rt.ApplyMixin(p, named))
	require.NoError(t, rt.ApplyMixin(p, named, base))

	obj, err := rt.Create(p, nil)
	require.NoError(t, err)

	assert.True(t, rt.HasMixin(obj, base))
	assert.True(t, rt.HasMixin(obj, named))
	// should list nearest first without duplicates
	assert.Equal(t, []*metal.Mixin{named, base}, rt.Mixins(obj))

	greeting, err := rt.Get(obj, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hi", greeting)

	name, err := rt.Get(obj, "name")
	require.NoError(t, err)
	assert.Equal(t, "anon", name)
	assert.Equal(t, "tracked", rt.DescriptorFor(obj, "name").Kind())

	assert.Equal(t, "Named", named.String())
	assert.False(t, rt.HasMixin(metal.NewObject(nil, nil), base))
	assert.ErrorIs(t, rt.ApplyMixin(nil, base), metal.ErrInvalidTarget)
}
