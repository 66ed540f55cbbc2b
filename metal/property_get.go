package metal

import (
	"fmt"
	"strings"
)

func validateKey(op string, obj *Object, key string) error {
	if obj == nil {
		return fmt.Errorf("%s %q on nil object: %w", op, key, ErrInvalidTarget)
	}
	if key == "" {
		return fmt.Errorf("%s on %s: %w", op, obj, ErrInvalidKey)
	}
	if strings.HasPrefix(key, "this.") {
		return fmt.Errorf("%s %q: 'this' in paths is not supported: %w", op, key, ErrUnsupportedPathSyntax)
	}
	return nil
}

// Get reads key from obj. Dotted keys are resolved segment by segment. A
// key defined nowhere reads as nil, or as whatever the unknown property
// handler answers.
func (rt *Runtime) Get(obj *Object, key string) (any, error) {
	if err := validateKey("get", obj, key); err != nil {
		return nil, err
	}
	return rt.get(obj, key)
}

func (rt *Runtime) get(obj *Object, key string) (any, error) {
	if m := obj.meta; m != nil && m.IsSourceDestroyed() && key != "isDestroyed" && key != "isDestroying" {
		rt.logger.Warn("calling get on destroyed object", "object", obj.String(), "key", key)
	}

	if rt.current != nil {
		rt.Consume(rt.tagForProperty(obj, key))
	}

	if m := rt.PeekMeta(obj); m != nil {
		if d := m.PeekDescriptor(key); d != nil {
			return d.read(rt, obj, key)
		}
	}

	value, ok := obj.lookup(key)
	if value != nil {
		return value, nil
	}
	if rt.paths.isPath(key) {
		return rt.getPath(obj, key)
	}
	if !ok {
		switch key {
		case "isDestroyed":
			m := obj.meta
			return m != nil && m.IsSourceDestroyed(), nil
		case "isDestroying":
			m := obj.meta
			return m != nil && m.IsSourceDestroying(), nil
		}
		if h := obj.unknownHandler(); h != nil {
			return h(obj, key), nil
		}
	}
	return value, nil
}

func (rt *Runtime) getPath(root *Object, path string) (any, error) {
	var current any = root
	for part := range strings.SplitSeq(path, ".") {
		obj, ok := asObject(current)
		if !ok {
			return nil, nil
		}
		v, err := rt.get(obj, part)
		if err != nil {
			return nil, err
		}
		current = v
	}
	return current, nil
}

// GetWithDefault reads key and falls back to def when the value is nil.
func (rt *Runtime) GetWithDefault(obj *Object, key string, def any) (any, error) {
	v, err := rt.Get(obj, key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return def, nil
	}
	return v, nil
}

func (rt *Runtime) GetProperties(obj *Object, keys ...string) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		v, err := rt.Get(obj, key)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// peekValue reads without consuming tags, the way chain nodes inspect the
// values they watch.
func (rt *Runtime) peekValue(obj *Object, key string) any {
	prev := rt.current
	rt.current = nil
	defer func() {
		rt.current = prev
	}()

	v, err := rt.get(obj, key)
	if err != nil {
		rt.logger.Debug("chain read failed", "object", obj.String(), "key", key, "error", err)
		return nil
	}
	return v
}
