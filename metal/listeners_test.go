package metal_test

import (
	"testing"

	"github.com/delaneyj/metal/metal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
}

func (r *recorder) method(name string) metal.Method {
	return metal.Func(func(ev metal.Event) {
		r.calls = append(r.calls, name)
	})
}

func (r *recorder) HandleEvent(method string, ev metal.Event) {
	r.calls = append(r.calls, method)
}

func methods(matches []metal.ListenerMatch) []metal.Method {
	out := make([]metal.Method, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Method)
	}
	return out
}

func TestInheritedListenersComeFirst(t *testing.T) {
	rt := metal.CreateRuntime()
	rec := &recorder{}
	l1, l2 := rec.method("L1"), rec.method("L2")

	p := metal.NewPrototype(nil, "P", nil)
	require.NoError(t, rt.AddListener(p, "x", nil, l1, false))

	i, err := rt.Create(p, nil)
	require.NoError(t, err)
	require.NoError(t, rt.AddListener(i, "x", nil, l2, false))

	assert.Equal(t, []metal.Method{l1, l2}, methods(rt.MatchingListeners(i, "x")))

	// should shadow the inherited listener on the instance only
	require.NoError(t, rt.RemoveListener(i, "x", nil, l1))
	assert.Equal(t, []metal.Method{l2}, methods(rt.MatchingListeners(i, "x")))
	assert.Equal(t, []metal.Method{l1}, methods(rt.MatchingListeners(p, "x")))

	assert.True(t, rt.SendEvent(i, "x"))
	assert.Equal(t, []string{"L2"}, rec.calls)
}

func TestRemoveAllListenersBlocksLaterAncestorListeners(t *testing.T) {
	rt := metal.CreateRuntime()
	rec := &recorder{}
	l1, l3 := rec.method("L1"), rec.method("L3")

	p := metal.NewPrototype(nil, "P", nil)
	require.NoError(t, rt.AddListener(p, "x", nil, l1, false))

	i, err := rt.Create(p, nil)
	require.NoError(t, err)
	j, err := rt.Create(p, nil)
	require.NoError(t, err)

	require.NoError(t, rt.RemoveAllListeners(i, "x"))
	assert.Empty(t, rt.MatchingListeners(i, "x"))
	assert.Equal(t, []metal.Method{l1}, methods(rt.MatchingListeners(j, "x")))

	require.NoError(t, rt.AddListener(p, "x", nil, l3, false))

	// should keep blocking listeners added to the prototype afterwards
	assert.Empty(t, rt.MatchingListeners(i, "x"))
	assert.False(t, rt.HasListeners(i, "x"))
	assert.Equal(t, []metal.Method{l1, l3}, methods(rt.MatchingListeners(j, "x")))
}

func TestRemoveAllListenersKeepsOtherEvents(t *testing.T) {
	rt := metal.CreateRuntime()
	rec := &recorder{}
	a, b := rec.method("a"), rec.method("b")

	obj := metal.NewObject(nil, nil)
	require.NoError(t, rt.AddListener(obj, "x", nil, a, false))
	require.NoError(t, rt.AddListener(obj, "y", nil, b, false))
	require.NoError(t, rt.RemoveAllListeners(obj, "x"))

	assert.False(t, rt.HasListeners(obj, "x"))
	assert.True(t, rt.HasListeners(obj, "y"))

	// should accept new listeners after a remove all
	require.NoError(t, rt.AddListener(obj, "x", nil, a, false))
	assert.Equal(t, []metal.Method{a}, methods(rt.MatchingListeners(obj, "x")))
}

func TestOnceListenerOnInstanceOnly(t *testing.T) {
	rt := metal.CreateRuntime()
	rec := &recorder{}
	l1 := rec.method("L1")

	p := metal.NewPrototype(nil, "P", nil)
	require.NoError(t, rt.AddListener(p, "x", nil, l1, true))
	i, err := rt.Create(p, nil)
	require.NoError(t, err)

	assert.True(t, rt.SendEvent(i, "x"))
	assert.False(t, rt.SendEvent(i, "x"))
	assert.Equal(t, []string{"L1"}, rec.calls)

	matches := rt.MatchingListeners(p, "x")
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Once)
}

func TestAddingSameListenerTwiceKeepsOneEntry(t *testing.T) {
	rt := metal.CreateRuntime()
	rec := &recorder{}
	a := rec.method("a")

	obj := metal.NewObject(nil, nil)
	require.NoError(t, rt.AddListener(obj, "x", nil, a, false))
	require.NoError(t, rt.AddListener(obj, "x", nil, a, true))

	matches := rt.MatchingListeners(obj, "x")
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Once)
}

func TestSelectorListeners(t *testing.T) {
	rt := metal.CreateRuntime()
	rec := &recorder{}

	var got []metal.Event
	obj := metal.NewObject(nil, map[string]any{
		"ping": func(ev metal.Event) { got = append(got, ev) },
	})

	require.NoError(t, rt.AddListener(obj, "x", rec, metal.Selector("onX"), false))
	require.NoError(t, rt.AddListener(obj, "x", nil, metal.Selector("ping"), false))

	assert.True(t, rt.SendEvent(obj, "x", 1, "two"))
	assert.Equal(t, []string{"onX"}, rec.calls)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].Name)
	assert.Same(t, obj, got[0].Sender)
	assert.Equal(t, []any{1, "two"}, got[0].Args)

	// should tell targets apart
	require.NoError(t, rt.RemoveListener(obj, "x", nil, metal.Selector("onX")))
	assert.Len(t, rt.MatchingListeners(obj, "x"), 2)
	require.NoError(t, rt.RemoveListener(obj, "x", rec, metal.Selector("onX")))
	assert.Len(t, rt.MatchingListeners(obj, "x"), 1)
}

func TestListenersOfDeepHierarchy(t *testing.T) {
	rt := metal.CreateRuntime()
	rec := &recorder{}
	base, mid, own := rec.method("base"), rec.method("mid"), rec.method("own")

	grand := metal.NewPrototype(nil, "Grand", nil)
	parent := metal.NewPrototype(grand, "Parent", nil)
	require.NoError(t, rt.AddListener(grand, "x", nil, base, false))
	require.NoError(t, rt.AddListener(parent, "x", nil, mid, false))

	obj, err := rt.Create(parent, nil)
	require.NoError(t, err)
	require.NoError(t, rt.AddListener(obj, "x", nil, own, false))
	assert.Equal(t, []metal.Method{base, mid, own}, methods(rt.MatchingListeners(obj, "x")))

	// should see a listener removed from the middle of the hierarchy
	require.NoError(t, rt.RemoveListener(parent, "x", nil, mid))
	assert.Equal(t, []metal.Method{base, own}, methods(rt.MatchingListeners(obj, "x")))
}

func TestSendEventWithoutListeners(t *testing.T) {
	rt := metal.CreateRuntime()
	obj := metal.NewObject(nil, nil)
	assert.False(t, rt.SendEvent(obj, "nothing"))
	assert.Nil(t, rt.MatchingListeners(obj, "nothing"))
	assert.ErrorIs(t, rt.AddListener(nil, "x", nil, metal.Selector("x"), false), metal.ErrInvalidTarget)
}
