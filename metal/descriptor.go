package metal

import (
	"fmt"
	"slices"

	"github.com/delaneyj/metal/tag"
)

type descriptorKind uint8

const (
	kindUndefined descriptorKind = iota
	kindValue
	kindAccessor
	kindTracked
)

func (k descriptorKind) String() string {
	switch k {
	case kindValue:
		return "value"
	case kindAccessor:
		return "accessor"
	case kindTracked:
		return "tracked"
	default:
		return "undefined"
	}
}

type Getter func(rt *Runtime, obj *Object) (any, error)
type Setter func(rt *Runtime, obj *Object, value any) error

// Initializer computes the first value of a tracked field for obj.
type Initializer func(obj *Object) any

// Descriptor defines how a property is read and written. It is one of
// Value, Accessor or Tracked, decided when it is created.
type Descriptor struct {
	kind          descriptorKind
	value         any
	get           Getter
	set           Setter
	dependentKeys []string
	init          Initializer
}

var undefinedDescriptor = &Descriptor{kind: kindUndefined}

func Value(v any) *Descriptor {
	return &Descriptor{kind: kindValue, value: v}
}

// Accessor computes its value on every read. dependentKeys are watched
// while the property itself is watched, and a change to any of them is
// reported as a change of the property.
func Accessor(get Getter, set Setter, dependentKeys ...string) *Descriptor {
	return &Descriptor{
		kind:          kindAccessor,
		get:           get,
		set:           set,
		dependentKeys: slices.Clone(dependentKeys),
	}
}

// Tracked stores its value per object. init, when not nil, runs at most once
// per object on the first read.
func Tracked(init Initializer) *Descriptor {
	return &Descriptor{kind: kindTracked, init: init}
}

func (d *Descriptor) Kind() string {
	return d.kind.String()
}

func (d *Descriptor) DependentKeys() []string {
	return slices.Clone(d.dependentKeys)
}

func (d *Descriptor) read(rt *Runtime, obj *Object, key string) (any, error) {
	switch d.kind {
	case kindValue:
		return d.value, nil

	case kindAccessor:
		if d.get == nil {
			return nil, nil
		}
		if !rt.IsTracking() {
			return d.get(rt, obj)
		}
		var value any
		inner, err := rt.Track(func() (err error) {
			value, err = d.get(rt, obj)
			return err
		})
		if u, ok := rt.tagForProperty(obj, key).(*tag.Updatable); ok {
			u.Update(inner)
		}
		return value, err

	case kindTracked:
		rt.Consume(rt.tagForProperty(obj, key))
		value, ok := obj.slots[key]
		if !ok && d.init != nil {
			value = d.init(obj)
			if obj.slots == nil {
				obj.slots = map[string]any{}
			}
			obj.slots[key] = value
		}
		// consuming a collection also consumes its contents
		if arr, ok := asObject(value); ok && arr.isArray {
			rt.Consume(rt.tagForProperty(arr, contentsKey))
		}
		return value, nil
	}
	return nil, nil
}

func (d *Descriptor) write(rt *Runtime, obj *Object, key string, value any) error {
	switch d.kind {
	case kindValue:
		changed := !sameValue(d.value, value)
		if changed {
			if err := rt.assertNotConsumed(obj, key, false); err != nil {
				return err
			}
		}
		// writes shadow the definition with an own one
		if err := rt.metaFor(obj).WriteDescriptor(key, Value(value)); err != nil {
			return err
		}
		if changed {
			rt.notifyPropertyChange(obj, key)
		}
		return nil

	case kindAccessor:
		if d.set == nil {
			return fmt.Errorf("set %q on %s: %w", key, obj, ErrReadOnlyProperty)
		}
		if err := d.set(rt, obj, value); err != nil {
			return err
		}
		rt.notifyPropertyChange(obj, key)
		return nil

	case kindTracked:
		if err := rt.assertNotConsumed(obj, key, true); err != nil {
			return err
		}
		if obj.slots == nil {
			obj.slots = map[string]any{}
		}
		obj.slots[key] = value
		rt.notifyPropertyChange(obj, key)
		return nil
	}
	return nil
}

func (d *Descriptor) didWatch(rt *Runtime, obj *Object, key string, m *Meta) error {
	for _, dep := range d.dependentKeys {
		if err := m.WriteDeps(dep, key, m.PeekDeps(dep, key)+1); err != nil {
			return err
		}
		if err := rt.watch(obj, dep, m); err != nil {
			return err
		}
	}
	return nil
}

func (d *Descriptor) didUnwatch(rt *Runtime, obj *Object, key string, m *Meta) error {
	for _, dep := range d.dependentKeys {
		if err := m.WriteDeps(dep, key, max(m.PeekDeps(dep, key)-1, 0)); err != nil {
			return err
		}
		if err := rt.unwatch(obj, dep, m); err != nil {
			return err
		}
	}
	return nil
}

// DefineProperty installs d as obj's own descriptor for key. A nil
// descriptor hides any inherited one.
func (rt *Runtime) DefineProperty(obj *Object, key string, d *Descriptor) error {
	if obj == nil {
		return ErrInvalidTarget
	}
	if key == "" {
		return ErrInvalidKey
	}
	if d == nil {
		d = undefinedDescriptor
	}

	m := rt.metaFor(obj)
	watched := m.PeekWatching(key) > 0
	if prev := m.PeekDescriptor(key); watched && prev != nil {
		if err := prev.didUnwatch(rt, obj, key, m); err != nil {
			return err
		}
	}
	write := m.WriteDescriptor
	if d == undefinedDescriptor {
		write = func(key string, _ *Descriptor) error {
			return m.RemoveDescriptor(key)
		}
	}
	if err := write(key, d); err != nil {
		return err
	}
	if watched {
		return d.didWatch(rt, obj, key, m)
	}
	return nil
}

// DescriptorFor returns the descriptor governing key on obj, if any.
func (rt *Runtime) DescriptorFor(obj *Object, key string) *Descriptor {
	if obj == nil {
		return nil
	}
	if m := rt.PeekMeta(obj); m != nil {
		return m.PeekDescriptor(key)
	}
	return nil
}
