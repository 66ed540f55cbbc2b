package metal_test

import (
	"errors"
	"testing"

	"github.com/delaneyj/metal/metal"
	"github.com/delaneyj/metal/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCounter(t *testing.T, rt *metal.Runtime) *metal.Object {
	t.Helper()
	counter := metal.NewObject(nil, nil)
	require.NoError(t, rt.DefineProperty(counter, "count", metal.Tracked(func(*metal.Object) any {
		return 0
	})))
	return counter
}

func readCount(rt *metal.Runtime, counter *metal.Object) func() error {
	return func() error {
		_, err := rt.Get(counter, "count")
		return err
	}
}

func TestTrackStableUntilWrite(t *testing.T) {
	rt := metal.CreateRuntime()
	counter := newCounter(t, rt)

	t1, err := rt.Track(readCount(rt, counter))
	require.NoError(t, err)
	t2, err := rt.Track(readCount(rt, counter))
	require.NoError(t, err)
	assert.Equal(t, t1.Value(), t2.Value())

	before := t2.Value()
	require.NoError(t, rt.Set(counter, "count", 1))

	t3, err := rt.Track(readCount(rt, counter))
	require.NoError(t, err)
	assert.Greater(t, uint64(t3.Value()), uint64(before))
}

func TestTrackWithoutReads(t *testing.T) {
	rt := metal.CreateRuntime()
	tg, err := rt.Track(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, tag.Constant, tg)
}

func TestStaleWriteInRender(t *testing.T) {
	readThenWrite := func(rt *metal.Runtime, counter *metal.Object) func() error {
		return func() error {
			v, err := rt.Get(counter, "count")
			if err != nil {
				return err
			}
			return rt.Set(counter, "count", v.(int)+1)
		}
	}

	t.Run("debug", func(t *testing.T) {
		rt := metal.CreateRuntime(metal.WithDebug(true))
		counter := newCounter(t, rt)

		_, err := rt.Track(readThenWrite(rt, counter))
		assert.ErrorIs(t, err, metal.ErrStaleWriteInRender)

		// should not leak the transaction past the computation
		require.NoError(t, rt.Set(counter, "count", 5))
	})

	t.Run("permissive", func(t *testing.T) {
		rt := metal.CreateRuntime()
		counter := newCounter(t, rt)

		snapshot := rt.Revision()
		_, err := rt.Track(readThenWrite(rt, counter))
		require.NoError(t, err)

		tg, err := rt.Track(readCount(rt, counter))
		require.NoError(t, err)
		assert.False(t, tag.Validate(tg, snapshot))

		v, err := rt.Get(counter, "count")
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})
}

func TestWarnInTransaction(t *testing.T) {
	logger, buf := bufferedLogger()
	rt := metal.CreateRuntime(metal.WithDebug(true), metal.WithLogger(logger))
	obj := metal.NewObject(nil, map[string]any{"title": "old"})
	counter := newCounter(t, rt)

	readThenWriteTitle := func() error {
		if _, err := rt.Get(obj, "title"); err != nil {
			return err
		}
		return rt.Set(obj, "title", "new")
	}

	_, err := rt.Track(func() error {
		if _, err := rt.Get(obj, "title"); err != nil {
			return err
		}
		return rt.Set(obj, "title", "newer")
	})
	assert.ErrorIs(t, err, metal.ErrStaleWriteInRender)

	err = rt.WarnInTransaction(func() error {
		_, err := rt.Track(readThenWriteTitle)
		return err
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "consumed in the same render")

	// should still fail for tracked fields
	err = rt.WarnInTransaction(func() error {
		_, err := rt.Track(func() error {
			if err := readCount(rt, counter)(); err != nil {
				return err
			}
			return rt.Set(counter, "count", 10)
		})
		return err
	})
	assert.ErrorIs(t, err, metal.ErrStaleWriteInRender)
}

func TestRunInTransaction(t *testing.T) {
	rt := metal.CreateRuntime(metal.WithDebug(true))
	counter := newCounter(t, rt)

	err := rt.RunInTransaction(func() error {
		if _, err := rt.Track(readCount(rt, counter)); err != nil {
			return err
		}
		// a later computation in the same transaction writes it
		_, err := rt.Track(func() error {
			return rt.Set(counter, "count", 2)
		})
		return err
	})
	assert.ErrorIs(t, err, metal.ErrStaleWriteInRender)
}

func TestUntrack(t *testing.T) {
	rt := metal.CreateRuntime()
	counter := newCounter(t, rt)

	tg, err := rt.Track(func() error {
		assert.True(t, rt.IsTracking())
		return rt.Untrack(func() error {
			assert.False(t, rt.IsTracking())
			return readCount(rt, counter)()
		})
	})
	require.NoError(t, err)
	assert.Equal(t, tag.Constant, tg)
}

func TestTrackRestoresParent(t *testing.T) {
	rt := metal.CreateRuntime()
	a := newCounter(t, rt)
	b := newCounter(t, rt)

	var inner tag.Tag
	outer, err := rt.Track(func() error {
		if err := readCount(rt, a)(); err != nil {
			return err
		}
		var err error
		inner, err = rt.Track(readCount(rt, b))
		return err
	})
	require.NoError(t, err)

	snapshot := rt.Revision()
	require.NoError(t, rt.Set(b, "count", 1))
	assert.True(t, tag.Validate(outer, snapshot))
	assert.False(t, tag.Validate(inner, snapshot))

	boom := errors.New("boom")
	_, err = rt.Track(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, rt.IsTracking())

	assert.Panics(t, func() {
		_, _ = rt.Track(func() error { panic("boom") })
	})
	assert.False(t, rt.IsTracking())

	// should hand tracking back to the outer computation after a panic
	var recovered any
	_, err = rt.Track(func() error {
		func() {
			defer func() { recovered = recover() }()
			_, _ = rt.Track(func() error { panic("boom") })
		}()
		assert.True(t, rt.IsTracking())
		return readCount(rt, a)()
	})
	require.NoError(t, err)
	assert.Equal(t, "boom", recovered)
	assert.False(t, rt.IsTracking())
}

func TestTrackedInitializerRunsOnce(t *testing.T) {
	rt := metal.CreateRuntime()
	runs := 0
	p := metal.NewPrototype(nil, "Lazy", nil)
	require.NoError(t, rt.DefineProperty(p, "value", metal.Tracked(func(*metal.Object) any {
		runs++
		return runs
	})))

	a, err := rt.Create(p, nil)
	require.NoError(t, err)
	b, err := rt.Create(p, nil)
	require.NoError(t, err)

	for range 3 {
		v, err := rt.Get(a, "value")
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	}
	// should initialize per object
	v, err := rt.Get(b, "value")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, runs)
}

func TestTrackedCollectionConsumesContents(t *testing.T) {
	rt := metal.CreateRuntime()
	list := metal.NewArray()
	obj := metal.NewObject(nil, nil)
	require.NoError(t, rt.DefineProperty(obj, "items", metal.Tracked(func(*metal.Object) any {
		return list
	})))

	tg, err := rt.Track(func() error {
		_, err := rt.Get(obj, "items")
		return err
	})
	require.NoError(t, err)

	snapshot := rt.Revision()
	require.NoError(t, rt.PushObject(list, "milk"))
	assert.False(t, tag.Validate(tg, snapshot))
}

func TestAccessorForwardsToConsumedTags(t *testing.T) {
	rt := metal.CreateRuntime()
	counter := newCounter(t, rt)
	require.NoError(t, rt.DefineProperty(counter, "double", metal.Accessor(func(rt *metal.Runtime, obj *metal.Object) (any, error) {
		v, err := rt.Get(obj, "count")
		if err != nil {
			return nil, err
		}
		return v.(int) * 2, nil
	}, nil)))

	var double any
	tg, err := rt.Track(func() (err error) {
		double, err = rt.Get(counter, "double")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 0, double)

	snapshot := rt.Revision()
	require.NoError(t, rt.Set(counter, "count", 3))
	assert.False(t, tag.Validate(tg, snapshot))

	double, err = rt.Get(counter, "double")
	require.NoError(t, err)
	assert.Equal(t, 6, double)
}

func TestTagFor(t *testing.T) {
	rt := metal.CreateRuntime()
	obj := metal.NewObject(nil, map[string]any{"a": 1})

	tg, err := rt.TagFor(obj)
	require.NoError(t, err)
	snapshot := rt.Revision()

	require.NoError(t, rt.Set(obj, "a", 2))
	assert.False(t, tag.Validate(tg, snapshot))
}
