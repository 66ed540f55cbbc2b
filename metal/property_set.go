package metal

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Set writes value to key on obj and notifies dependents when it changed.
// Dotted keys set the last segment on the object the rest resolves to.
func (rt *Runtime) Set(obj *Object, key string, value any) error {
	if err := validateKey("set", obj, key); err != nil {
		return err
	}
	return rt.set(obj, key, value, false)
}

// TrySet is Set that ignores paths whose head object does not exist.
func (rt *Runtime) TrySet(obj *Object, key string, value any) error {
	if err := validateKey("set", obj, key); err != nil {
		return err
	}
	return rt.set(obj, key, value, true)
}

func (rt *Runtime) SetProperties(obj *Object, props map[string]any) error {
	for _, key := range slices.Sorted(maps.Keys(props)) {
		if err := rt.Set(obj, key, props[key]); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) set(obj *Object, key string, value any, tolerant bool) error {
	if rt.counters != nil {
		rt.counters.SetCalls++
	}
	if m := obj.meta; m != nil && m.IsMetaDestroyed() {
		return fmt.Errorf("set %q on %s: %w", key, obj, ErrDestroyedMetaMutation)
	}

	if rt.paths.isPath(key) {
		return rt.setPath(obj, key, value, tolerant)
	}

	if d, ok := value.(*Descriptor); ok {
		return rt.DefineProperty(obj, key, d)
	}

	if m := rt.PeekMeta(obj); m != nil {
		if d := m.PeekDescriptor(key); d != nil {
			return d.write(rt, obj, key, value)
		}
	}

	if obj.isArray {
		switch key {
		case "length", contentsKey:
			return fmt.Errorf("set %q on %s: %w", key, obj, ErrReadOnlyProperty)
		}
		if idx, ok := arrayIndex(key); ok {
			if idx == len(obj.items) {
				return rt.PushObject(obj, value)
			}
			return rt.ReplaceAt(obj, idx, value)
		}
	}

	current, ok := obj.lookup(key)
	if !ok {
		if h := obj.setUnknownHandler(); h != nil {
			h(obj, key, value)
			return nil
		}
	}

	changed := !sameValue(current, value)
	if changed {
		if err := rt.assertNotConsumed(obj, key, false); err != nil {
			return err
		}
	}
	if obj.props == nil {
		obj.props = map[string]any{}
	}
	obj.props[key] = value
	if changed {
		rt.notifyPropertyChange(obj, key)
	}
	return nil
}

func (rt *Runtime) setPath(root *Object, path string, value any, tolerant bool) error {
	idx := strings.LastIndexByte(path, '.')
	head, last := path[:idx], path[idx+1:]

	v, err := rt.getPath(root, head)
	if err != nil {
		return err
	}
	obj, ok := asObject(v)
	if !ok {
		if tolerant {
			return nil
		}
		return fmt.Errorf("set %q: object in path %q could not be found: %w", path, head, ErrInvalidTarget)
	}
	if last == "" {
		return fmt.Errorf("set %q: %w", path, ErrInvalidKey)
	}
	return rt.set(obj, last, value, tolerant)
}
