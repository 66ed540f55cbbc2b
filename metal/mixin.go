package metal

import (
	"fmt"
	"maps"
	"slices"
)

// Mixin is a named bundle of properties applied to objects or prototypes.
// Property values that are *Descriptor are defined, anything else is set as
// a plain value.
type Mixin struct {
	name     string
	props    map[string]any
	includes []*Mixin
}

func NewMixin(name string, props map[string]any, includes ...*Mixin) *Mixin {
	return &Mixin{
		name:     name,
		props:    maps.Clone(props),
		includes: slices.Clone(includes),
	}
}

func (mx *Mixin) String() string {
	if mx.name == "" {
		return "(unknown mixin)"
	}
	return mx.name
}

// ApplyMixin applies each mixin, then its includes, then its own
// properties. A mixin already present on obj or its prototypes is skipped.
func (rt *Runtime) ApplyMixin(obj *Object, mixins ...*Mixin) error {
	if obj == nil {
		return ErrInvalidTarget
	}
	m := rt.metaFor(obj)
	for _, mx := range mixins {
		if err := rt.applyMixin(obj, m, mx); err != nil {
			return fmt.Errorf("apply mixin %s: %w", mx, err)
		}
	}
	return nil
}

func (rt *Runtime) applyMixin(obj *Object, m *Meta, mx *Mixin) error {
	if mx == nil || m.HasMixin(mx) {
		return nil
	}
	if err := m.AddMixin(mx); err != nil {
		return err
	}
	for _, inc := range mx.includes {
		if err := rt.applyMixin(obj, m, inc); err != nil {
			return err
		}
	}

	for _, key := range slices.Sorted(maps.Keys(mx.props)) {
		switch v := mx.props[key].(type) {
		case *Descriptor:
			if err := rt.DefineProperty(obj, key, v); err != nil {
				return err
			}
		default:
			if obj.props == nil {
				obj.props = map[string]any{}
			}
			obj.props[key] = v
		}
	}
	return nil
}

func (rt *Runtime) HasMixin(obj *Object, mx *Mixin) bool {
	if obj == nil {
		return false
	}
	m := rt.PeekMeta(obj)
	return m != nil && m.HasMixin(mx)
}

// Mixins lists the mixins applied to obj and its prototypes, nearest first.
func (rt *Runtime) Mixins(obj *Object) []*Mixin {
	if obj == nil {
		return nil
	}
	m := rt.PeekMeta(obj)
	if m == nil {
		return nil
	}
	var out []*Mixin
	m.ForEachMixin(func(mx *Mixin) {
		out = append(out, mx)
	})
	return out
}
