package metal

import (
	"fmt"
	"maps"
	"reflect"
	"strconv"
)

// UnknownPropertyFunc answers reads of keys that are not defined anywhere on
// the prototype chain.
type UnknownPropertyFunc func(obj *Object, key string) any

// SetUnknownPropertyFunc receives writes to keys that are not defined
// anywhere on the prototype chain.
type SetUnknownPropertyFunc func(obj *Object, key string, value any)

const contentsKey = "[]"

// Object is a dynamic property bag with an optional prototype. Metadata is
// stored inline and created lazily.
type Object struct {
	proto       *Object
	isPrototype bool
	name        string

	props map[string]any
	slots map[string]any

	isArray bool
	items   []any

	unknown    UnknownPropertyFunc
	setUnknown SetUnknownPropertyFunc

	meta *Meta
}

func NewObject(proto *Object, props map[string]any) *Object {
	o := &Object{proto: proto, props: make(map[string]any, len(props))}
	maps.Copy(o.props, props)
	return o
}

// NewPrototype creates an object meant to be the shared prototype of a class
// of instances. Writes to a prototype never notify.
func NewPrototype(parent *Object, name string, props map[string]any) *Object {
	o := NewObject(parent, props)
	o.isPrototype = true
	o.name = name
	return o
}

// NewArray creates a collection exposing `length`, numeric index keys and
// the `[]` contents key.
func NewArray(items ...any) *Object {
	return &Object{
		props:   map[string]any{},
		isArray: true,
		items:   append([]any(nil), items...),
	}
}

func (o *Object) Proto() *Object {
	return o.proto
}

func (o *Object) IsArray() bool {
	return o.isArray
}

// Len is the number of items of an array object.
func (o *Object) Len() int {
	return len(o.items)
}

// Items returns a copy of the items of an array object.
func (o *Object) Items() []any {
	return append([]any(nil), o.items...)
}

func (o *Object) SetName(name string) *Object {
	o.name = name
	return o
}

func (o *Object) OnUnknownProperty(fn UnknownPropertyFunc) *Object {
	o.unknown = fn
	return o
}

func (o *Object) OnSetUnknownProperty(fn SetUnknownPropertyFunc) *Object {
	o.setUnknown = fn
	return o
}

func (o *Object) String() string {
	if o == nil {
		return "<nil>"
	}
	for p := o; p != nil; p = p.proto {
		if p.name != "" {
			if p == o {
				return fmt.Sprintf("<%s>", p.name)
			}
			return fmt.Sprintf("<%s:%p>", p.name, o)
		}
	}
	if o.isArray {
		return fmt.Sprintf("<Array:%d>", len(o.items))
	}
	return fmt.Sprintf("<Object:%p>", o)
}

// lookup resolves a plain value, walking the prototype chain.
func (o *Object) lookup(key string) (any, bool) {
	if o.isArray {
		switch key {
		case "length":
			return len(o.items), true
		case contentsKey:
			return o, true
		}
		if idx, ok := arrayIndex(key); ok {
			if idx < len(o.items) {
				return o.items[idx], true
			}
			return nil, false
		}
	}

	for p := o; p != nil; p = p.proto {
		if v, ok := p.props[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func (o *Object) unknownHandler() UnknownPropertyFunc {
	for p := o; p != nil; p = p.proto {
		if p.unknown != nil {
			return p.unknown
		}
	}
	return nil
}

func (o *Object) setUnknownHandler() SetUnknownPropertyFunc {
	for p := o; p != nil; p = p.proto {
		if p.setUnknown != nil {
			return p.setUnknown
		}
	}
	return nil
}

func arrayIndex(key string) (int, bool) {
	if key == "" || key[0] < '0' || key[0] > '9' {
		return 0, false
	}
	idx, err := strconv.Atoi(key)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// sameValue compares two values without panicking on uncomparable dynamic
// types, which are never considered the same.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func asObject(v any) (*Object, bool) {
	o, ok := v.(*Object)
	return o, ok && o != nil
}
