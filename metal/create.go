package metal

import (
	"maps"
	"slices"
)

// Create makes an instance of proto. props are applied before anything can
// observe the instance, then chains watching it are finished.
func (rt *Runtime) Create(proto *Object, props map[string]any) (*Object, error) {
	obj := NewObject(proto, nil)
	m := rt.metaFor(obj)

	m.SetInitializing()
	for _, key := range slices.Sorted(maps.Keys(props)) {
		if err := rt.set(obj, key, props[key], false); err != nil {
			m.UnsetInitializing()
			return nil, err
		}
	}
	m.UnsetInitializing()

	rt.finishChains(m)
	return obj, nil
}
