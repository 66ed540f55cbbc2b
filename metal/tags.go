package metal

import (
	"github.com/delaneyj/metal/tag"
)

// TagForProperty returns the tag representing obj[key]. Destroyed objects
// only have constant tags.
func (rt *Runtime) TagForProperty(obj *Object, key string) (tag.Tag, error) {
	if obj == nil {
		return nil, ErrInvalidTarget
	}
	return rt.tagForProperty(obj, key), nil
}

func (rt *Runtime) tagForProperty(obj *Object, key string) tag.Tag {
	m := rt.metaFor(obj)
	if m.IsMetaDestroyed() {
		return tag.Constant
	}
	if t, ok := m.tags[key]; ok {
		return t
	}
	if m.tags == nil {
		m.tags = map[string]*tag.Updatable{}
	}
	t := tag.NewUpdatable(rt.clock)
	m.tags[key] = t
	return t
}

// TagFor returns the tag that changes whenever any property of obj changes.
func (rt *Runtime) TagFor(obj *Object) (tag.Tag, error) {
	if obj == nil {
		return nil, ErrInvalidTarget
	}
	m := rt.metaFor(obj)
	if m.IsMetaDestroyed() {
		return tag.Constant, nil
	}
	if m.tag == nil {
		m.tag = tag.NewDirtyable(rt.clock)
	}
	return m.tag, nil
}

// peekPropertyTag never allocates.
func peekPropertyTag(obj *Object, key string) tag.Tag {
	m := obj.meta
	if m == nil {
		return nil
	}
	if t, ok := m.tags[key]; ok {
		return t
	}
	return nil
}

// markObjectAsDirty dirties only tags somebody already asked for.
func markObjectAsDirty(m *Meta, key string) {
	if m.tag != nil {
		m.tag.Dirty()
	}
	if t, ok := m.tags[key]; ok {
		t.Dirty()
	}
}
