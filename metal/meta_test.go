package metal_test

import (
	"testing"

	"github.com/delaneyj/metal/metal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaIsLazyAndOwned(t *testing.T) {
	rt := metal.CreateRuntime()
	p := metal.NewPrototype(nil, "P", nil)
	pm, err := rt.MetaFor(p)
	require.NoError(t, err)

	obj := metal.NewObject(p, nil)
	// should see the prototype's meta until obj gets its own
	assert.Same(t, pm, rt.PeekMeta(obj))

	om, err := rt.MetaFor(obj)
	require.NoError(t, err)
	assert.NotSame(t, pm, om)
	assert.Same(t, om, rt.PeekMeta(obj))
	assert.Same(t, obj, om.Source())
	assert.Same(t, pm, om.Parent())

	assert.True(t, pm.IsPrototypeMeta(p))
	assert.False(t, om.IsPrototypeMeta(obj))
	assert.Nil(t, rt.PeekMeta(metal.NewObject(nil, nil)))
}

func TestDescriptorsInherit(t *testing.T) {
	rt := metal.CreateRuntime()
	p := metal.NewPrototype(nil, "P", nil)
	require.NoError(t, rt.DefineProperty(p, "a", metal.Value(1)))
	require.NoError(t, rt.DefineProperty(p, "b", metal.Value(2)))
	require.NoError(t, rt.DefineProperty(p, "c", metal.Value(3)))

	obj, err := rt.Create(p, nil)
	require.NoError(t, err)
	bOwn := metal.Tracked(nil)
	require.NoError(t, rt.DefineProperty(obj, "b", bOwn))
	require.NoError(t, rt.DefineProperty(obj, "c", nil))

	m, err := rt.MetaFor(obj)
	require.NoError(t, err)

	seen := map[string]string{}
	m.ForEachDescriptor(func(key string, d *metal.Descriptor) {
		_, dup := seen[key]
		assert.False(t, dup, key)
		seen[key] = d.Kind()
	})
	// should visit each key once, nearest definition winning
	assert.Equal(t, map[string]string{"a": "value", "b": "tracked"}, seen)
	assert.Same(t, bOwn, m.PeekDescriptor("b"))
	assert.Nil(t, m.PeekDescriptor("c"))
}

func TestWatchCountsInherit(t *testing.T) {
	rt := metal.CreateRuntime()
	p := metal.NewPrototype(nil, "P", nil)
	require.NoError(t, rt.Watch(p, "x"))

	obj, err := rt.Create(p, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rt.WatcherCount(obj, "x"))

	// should not write through to the prototype
	require.NoError(t, rt.Watch(obj, "x"))
	assert.Equal(t, 2, rt.WatcherCount(obj, "x"))
	assert.Equal(t, 1, rt.WatcherCount(p, "x"))
}

func TestPrototypeObserversFireForInstances(t *testing.T) {
	rt := metal.CreateRuntime()
	p := metal.NewPrototype(nil, "P", nil)
	fired, _ := observe(t, rt, p, "x")

	obj, err := rt.Create(p, map[string]any{"x": 1})
	require.NoError(t, err)
	// should stay quiet while initializing
	assert.Empty(t, *fired)

	require.NoError(t, rt.Set(obj, "x", 2))
	assert.Equal(t, []string{"x"}, *fired)

	// should never notify for the prototype itself
	require.NoError(t, rt.Set(p, "x", 3))
	assert.Equal(t, []string{"x"}, *fired)
}

func TestDependentKeysDoNotLoop(t *testing.T) {
	rt := metal.CreateRuntime()
	obj := metal.NewObject(nil, nil)
	get := func(rt *metal.Runtime, obj *metal.Object) (any, error) { return nil, nil }
	require.NoError(t, rt.DefineProperty(obj, "a", metal.Accessor(get, nil, "b")))
	require.NoError(t, rt.DefineProperty(obj, "b", metal.Accessor(get, nil, "a")))

	fired, _ := observe(t, rt, obj, "a")
	require.NoError(t, rt.NotifyPropertyChange(obj, "a"))
	assert.NotEmpty(t, *fired)
	assert.Less(t, len(*fired), 4)
}

func TestCounters(t *testing.T) {
	rt := metal.CreateRuntime()
	obj := metal.NewObject(nil, nil)
	require.NoError(t, rt.Set(obj, "a", 1))
	assert.Equal(t, metal.Counters{}, rt.Counters())

	rt = metal.CreateRuntime(metal.WithDebug(true))
	assert.True(t, rt.IsDebug())
	p := metal.NewPrototype(nil, "P", nil)
	require.NoError(t, rt.AddListener(p, "x", nil, metal.Func(func(metal.Event) {}), false))
	obj, err := rt.Create(p, nil)
	require.NoError(t, err)
	require.NoError(t, rt.Set(obj, "a", 1))
	require.NoError(t, rt.Set(obj, "a", 2))
	assert.True(t, rt.SendEvent(obj, "x"))

	c := rt.Counters()
	assert.EqualValues(t, 2, c.MetaInstantiated)
	assert.EqualValues(t, 2, c.SetCalls)
	assert.EqualValues(t, 1, c.AddToListenersCalls)
	assert.EqualValues(t, 1, c.PathCacheMisses)
	assert.EqualValues(t, 1, c.PathCacheHits)
	assert.Positive(t, c.ParentListenersUsed)
	assert.Len(t, c.Fields(), 17)

	rt.ResetCounters()
	assert.Equal(t, metal.Counters{}, rt.Counters())
}

func TestRemoveDescriptorHidesInherited(t *testing.T) {
	rt := metal.CreateRuntime()
	p := metal.NewPrototype(nil, "P", nil)
	require.NoError(t, rt.DefineProperty(p, "a", metal.Value(1)))

	obj, err := rt.Create(p, nil)
	require.NoError(t, err)
	m, err := rt.MetaFor(obj)
	require.NoError(t, err)
	require.NoError(t, m.RemoveDescriptor("a"))

	assert.Nil(t, m.PeekDescriptor("a"))
	// should leave the prototype alone
	assert.NotNil(t, rt.DescriptorFor(p, "a"))

	rt.Destroy(obj)
	assert.ErrorIs(t, m.RemoveDescriptor("a"), metal.ErrDestroyedMetaMutation)
}
