package metal

import (
	"fmt"
	"maps"
	"slices"
	"weak"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/delaneyj/metal/tag"
)

type metaFlags uint8

const (
	flagSourceDestroying metaFlags = 1 << iota
	flagSourceDestroyed
	flagMetaDestroyed
	flagInitializing
)

// Meta is the per object record of descriptors, watch counts, mixins,
// listeners and chains. Lookups that miss locally continue on the parent,
// which is the metadata of the object's prototype.
type Meta struct {
	rt *Runtime

	source weak.Pointer[Object]
	// proto == source marks a prototype meta
	proto *Object

	parent         *Meta
	parentResolved bool
	hasChildren    bool

	flags metaFlags

	descriptors map[string]*Descriptor
	watching    map[string]int
	deps        map[string]map[string]int

	mixins   []*Mixin
	mixinSet mapset.Set[*Mixin]

	tag  *tag.Dirtyable
	tags map[string]*tag.Updatable

	chains        nodeID
	chainWatchers map[string][]chainRef

	listeners        []*listener
	inheritedEnd     int
	flattenedVersion uint64
}

func newMeta(rt *Runtime, obj *Object) *Meta {
	if rt.counters != nil {
		rt.counters.MetaInstantiated++
	}
	m := &Meta{
		rt:           rt,
		source:       weak.Make(obj),
		proto:        obj.proto,
		chains:       noNode,
		inheritedEnd: -1,
	}
	if obj.isPrototype {
		m.proto = obj
	}
	return m
}

// PeekMeta returns the metadata governing obj without creating any: its own
// or the nearest one found on the prototype chain. Metadata found on a
// prototype is marked as belonging to a prototype.
func (rt *Runtime) PeekMeta(obj *Object) *Meta {
	if obj == nil {
		return nil
	}
	if rt.counters != nil {
		rt.counters.PeekCalls++
	}
	if obj.meta != nil {
		return obj.meta
	}
	for p := obj.proto; p != nil; p = p.proto {
		if rt.counters != nil {
			rt.counters.PeekPrototypeWalks++
		}
		if m := p.meta; m != nil {
			if m.proto != p {
				m.proto = p
			}
			return m
		}
	}
	return nil
}

// MetaFor returns the metadata owned by obj, creating it on first use.
func (rt *Runtime) MetaFor(obj *Object) (*Meta, error) {
	if obj == nil {
		return nil, ErrInvalidTarget
	}
	return rt.metaFor(obj), nil
}

func (rt *Runtime) metaFor(obj *Object) *Meta {
	if rt.counters != nil {
		rt.counters.MetaCalls++
	}
	if m := rt.PeekMeta(obj); m != nil && m.Source() == obj {
		return m
	}
	m := newMeta(rt, obj)
	obj.meta = m
	if !obj.isPrototype && inheritsChains(obj) {
		if _, err := m.writableChains(); err != nil {
			rt.logger.Warn("could not copy inherited chains", "object", obj.String(), "error", err)
		}
	}
	return m
}

// inheritsChains reports whether a prototype of obj has watched paths,
// without creating metadata along the way.
func inheritsChains(obj *Object) bool {
	for p := obj.proto; p != nil; p = p.proto {
		if p.meta != nil && p.meta.chains != noNode {
			return true
		}
	}
	return false
}

// Destroy tears down obj's metadata. Calling it again is a no-op.
func (rt *Runtime) Destroy(obj *Object) {
	if obj == nil {
		return
	}
	if rt.counters != nil {
		rt.counters.DeleteCalls++
	}
	// only obj's own meta, never a prototype's
	m := obj.meta
	if m == nil {
		m = rt.metaFor(obj)
	}
	m.SetSourceDestroying()
	m.SetSourceDestroyed()
	m.destroy()
}

func (m *Meta) destroy() {
	if m.IsMetaDestroyed() {
		return
	}
	m.flags |= flagMetaDestroyed
	if m.chains != noNode {
		m.rt.destroyRoot(m.chains)
		m.chains = noNode
	}
}

func (m *Meta) Source() *Object {
	return m.source.Value()
}

func (m *Meta) Parent() *Meta {
	if !m.parentResolved {
		m.parentResolved = true
		if src := m.Source(); src != nil && src.proto != nil {
			m.parent = m.rt.metaFor(src.proto)
			m.parent.hasChildren = true
		}
	}
	return m.parent
}

func (m *Meta) IsPrototypeMeta(obj *Object) bool {
	src := m.Source()
	return src != nil && m.proto == src && src == obj
}

func (m *Meta) SetInitializing()   { m.flags |= flagInitializing }
func (m *Meta) UnsetInitializing() { m.flags &^= flagInitializing }
func (m *Meta) IsInitializing() bool {
	return m.flags&flagInitializing != 0
}

func (m *Meta) SetSourceDestroying() { m.flags |= flagSourceDestroying }
func (m *Meta) IsSourceDestroying() bool {
	return m.flags&flagSourceDestroying != 0
}

func (m *Meta) SetSourceDestroyed() { m.flags |= flagSourceDestroyed }
func (m *Meta) IsSourceDestroyed() bool {
	return m.flags&flagSourceDestroyed != 0
}

func (m *Meta) IsMetaDestroyed() bool {
	return m.flags&flagMetaDestroyed != 0
}

func (m *Meta) checkWritable(what string) error {
	if m.IsMetaDestroyed() {
		return fmt.Errorf("cannot modify %s of %s: %w", what, m.Source(), ErrDestroyedMetaMutation)
	}
	return nil
}

// Descriptors

func (m *Meta) WriteDescriptor(key string, d *Descriptor) error {
	if err := m.checkWritable("descriptor " + key); err != nil {
		return err
	}
	if m.descriptors == nil {
		m.descriptors = map[string]*Descriptor{}
	}
	m.descriptors[key] = d
	return nil
}

// RemoveDescriptor writes a tombstone hiding any inherited descriptor.
func (m *Meta) RemoveDescriptor(key string) error {
	return m.WriteDescriptor(key, undefinedDescriptor)
}

func (m *Meta) PeekDescriptor(key string) *Descriptor {
	for p := m; p != nil; p = p.Parent() {
		if d, ok := p.descriptors[key]; ok {
			if d.kind == kindUndefined {
				return nil
			}
			return d
		}
	}
	return nil
}

func (m *Meta) ForEachDescriptor(fn func(key string, d *Descriptor)) {
	seen := mapset.NewThreadUnsafeSet[string]()
	for p := m; p != nil; p = p.Parent() {
		for _, key := range slices.Sorted(maps.Keys(p.descriptors)) {
			if !seen.Add(key) {
				continue
			}
			if d := p.descriptors[key]; d.kind != kindUndefined {
				fn(key, d)
			}
		}
	}
}

// Watch counts

func (m *Meta) WriteWatching(key string, count int) error {
	if err := m.checkWritable("watchers of " + key); err != nil {
		return err
	}
	if m.watching == nil {
		m.watching = map[string]int{}
	}
	m.watching[key] = count
	return nil
}

func (m *Meta) PeekWatching(key string) int {
	for p := m; p != nil; p = p.Parent() {
		if count, ok := p.watching[key]; ok {
			return count
		}
	}
	return 0
}

// Dependent keys. deps[dependency][dependent] counts how many times the
// dependent declared the dependency.

func (m *Meta) WriteDeps(dependency, dependent string, count int) error {
	if err := m.checkWritable("dependent keys of " + dependent); err != nil {
		return err
	}
	if m.deps == nil {
		m.deps = map[string]map[string]int{}
	}
	inner, ok := m.deps[dependency]
	if !ok {
		inner = map[string]int{}
		m.deps[dependency] = inner
	}
	inner[dependent] = count
	return nil
}

func (m *Meta) PeekDeps(dependency, dependent string) int {
	for p := m; p != nil; p = p.Parent() {
		if inner, ok := p.deps[dependency]; ok {
			if count, ok := inner[dependent]; ok {
				return count
			}
		}
	}
	return 0
}

func (m *Meta) HasDeps(dependency string) bool {
	for p := m; p != nil; p = p.Parent() {
		if _, ok := p.deps[dependency]; ok {
			return true
		}
	}
	return false
}

// ForEachInDeps calls fn for every key depending on dependency. Calls are
// collected first so fn may mutate the deps map.
func (m *Meta) ForEachInDeps(dependency string, fn func(dependent string)) {
	var calls []string
	seen := mapset.NewThreadUnsafeSet[string]()
	for p := m; p != nil; p = p.Parent() {
		inner, ok := p.deps[dependency]
		if !ok {
			continue
		}
		for _, key := range slices.Sorted(maps.Keys(inner)) {
			if seen.Add(key) && inner[key] > 0 {
				calls = append(calls, key)
			}
		}
	}
	for _, key := range calls {
		fn(key)
	}
}

// Mixins

func (m *Meta) AddMixin(mixin *Mixin) error {
	if err := m.checkWritable("mixins"); err != nil {
		return err
	}
	if m.mixinSet == nil {
		m.mixinSet = mapset.NewThreadUnsafeSet[*Mixin]()
	}
	if m.mixinSet.Add(mixin) {
		m.mixins = append(m.mixins, mixin)
	}
	return nil
}

func (m *Meta) HasMixin(mixin *Mixin) bool {
	for p := m; p != nil; p = p.Parent() {
		if p.mixinSet != nil && p.mixinSet.Contains(mixin) {
			return true
		}
	}
	return false
}

func (m *Meta) ForEachMixin(fn func(mixin *Mixin)) {
	seen := mapset.NewThreadUnsafeSet[*Mixin]()
	for p := m; p != nil; p = p.Parent() {
		for _, mixin := range p.mixins {
			if seen.Add(mixin) {
				fn(mixin)
			}
		}
	}
}

// Chains

func (m *Meta) readableChains() nodeID {
	for p := m; p != nil; p = p.Parent() {
		if p.chains != noNode {
			return p.chains
		}
	}
	return noNode
}

// writableChains returns the own root chain node, copying the watched paths
// of an inherited root on first use.
func (m *Meta) writableChains() (nodeID, error) {
	if err := m.checkWritable("chains"); err != nil {
		return noNode, err
	}
	if m.chains != noNode {
		return m.chains, nil
	}
	var inherited nodeID = noNode
	if parent := m.Parent(); parent != nil {
		inherited = parent.readableChains()
	}
	m.chains = m.rt.newRoot(m.Source())
	if inherited != noNode {
		m.rt.copyRoot(inherited, m.chains)
	}
	return m.chains, nil
}

func (m *Meta) writableChainWatchers() (map[string][]chainRef, error) {
	if err := m.checkWritable("chain watchers"); err != nil {
		return nil, err
	}
	if m.chainWatchers == nil {
		m.chainWatchers = map[string][]chainRef{}
	}
	return m.chainWatchers, nil
}
