package metal

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"weak"
)

const eachKey = "@each"

type nodeID int32

const noNode nodeID = -1

type chainKind uint8

const (
	chainRoot chainKind = iota
	chainKey
	chainEach
)

// valueRef caches a chain value without keeping objects alive.
type valueRef struct {
	obj weak.Pointer[Object]
	val any
	set bool
}

func makeValueRef(v any) valueRef {
	if o, ok := asObject(v); ok {
		return valueRef{obj: weak.Make(o), set: true}
	}
	return valueRef{val: v, set: true}
}

func (r valueRef) get() any {
	if o := r.obj.Value(); o != nil {
		return o
	}
	return r.val
}

// chainNode watches one segment of a path relative to its parent node.
type chainNode struct {
	id     nodeID
	kind   chainKind
	parent nodeID
	key    string
	count  int

	// object whose key (or length, for @each) is watched; for roots, the
	// object owning the chains
	watching bool
	object   weak.Pointer[Object]
	cached   valueRef

	children map[string]nodeID
	order    []string

	// @each only
	items  []nodeID
	tails  map[string]int
	length int

	// root only
	paths map[string]int
}

func (n *chainNode) watchedKey() string {
	if n.kind == chainEach {
		return "length"
	}
	return n.key
}

type affectedPath struct {
	obj  *Object
	path string
}

// Roots

func (rt *Runtime) newRoot(obj *Object) nodeID {
	n := &chainNode{
		kind:     chainRoot,
		parent:   noNode,
		watching: true,
		paths:    map[string]int{},
	}
	if obj != nil {
		n.object = weak.Make(obj)
	}
	return rt.chains.alloc(n)
}

func (rt *Runtime) addPath(root nodeID, path string) {
	n := rt.chains.node(root)
	n.paths[path]++
	key, tail := splitFirst(path)
	rt.chain(root, key, tail)
}

func (rt *Runtime) removePath(root nodeID, path string) {
	n := rt.chains.node(root)
	if n.paths[path] <= 0 {
		return
	}
	n.paths[path]--
	if n.paths[path] == 0 {
		delete(n.paths, path)
	}
	key, tail := splitFirst(path)
	rt.unchain(root, key, tail)
}

// copyRoot watches every path of from on to once.
func (rt *Runtime) copyRoot(from, to nodeID) {
	for _, path := range slices.Sorted(maps.Keys(rt.chains.node(from).paths)) {
		rt.addPath(to, path)
	}
}

func (rt *Runtime) destroyRoot(root nodeID) {
	if rt.chains.node(root) != nil {
		rt.destroyNode(root)
	}
}

// Node construction

func (rt *Runtime) newChild(parent nodeID, key string) nodeID {
	if key == eachKey {
		return rt.newEachNode(parent)
	}
	return rt.newKeyNode(parent, key)
}

func (rt *Runtime) newKeyNode(parent nodeID, key string) nodeID {
	n := &chainNode{
		kind:     chainKey,
		parent:   parent,
		key:      key,
		watching: true,
	}
	id := rt.chains.alloc(n)
	if obj, ok := asObject(rt.chainValue(parent)); ok {
		n.object = weak.Make(obj)
		rt.addChainWatcher(obj, key, id)
	}
	return id
}

func (rt *Runtime) newEachNode(parent nodeID) nodeID {
	n := &chainNode{
		kind:     chainEach,
		parent:   parent,
		key:      eachKey,
		watching: true,
		tails:    map[string]int{},
	}
	id := rt.chains.alloc(n)
	obj, ok := asObject(rt.chainValue(parent))
	if ok {
		n.object = weak.Make(obj)
		rt.addChainWatcher(obj, "length", id)
	}
	n.length = rt.lengthOf(obj)
	return id
}

// destroyNode tears down a subtree, releasing property watches, and
// removes it from its parent.
func (rt *Runtime) destroyNode(id nodeID) {
	n := rt.chains.node(id)
	if n == nil {
		return
	}
	children, order, items := n.children, n.order, n.items
	n.children, n.order, n.items = nil, nil, nil
	for _, key := range order {
		rt.destroyNode(children[key])
	}
	for _, item := range items {
		rt.destroyNode(item)
	}

	if n.kind != chainRoot && n.watching {
		if obj := n.object.Value(); obj != nil {
			rt.removeChainWatcher(obj, n.watchedKey(), id)
		}
		n.watching = false
	}

	if p := rt.chains.node(n.parent); p != nil && p.children != nil {
		if child, ok := p.children[n.key]; ok && child == id {
			delete(p.children, n.key)
			p.order = slices.DeleteFunc(p.order, func(k string) bool { return k == n.key })
		}
	}
	rt.chains.release(id)
}

// Chaining

func (rt *Runtime) chain(id nodeID, key, tail string) {
	n := rt.chains.node(id)
	if n == nil || key == "" {
		return
	}
	if n.kind == chainEach {
		n.tails[joinPath(key, tail)]++
		rt.rebuildEach(id)
		return
	}

	child, ok := n.children[key]
	if !ok {
		child = rt.newChild(id, key)
		if n.children == nil {
			n.children = map[string]nodeID{}
		}
		n.children[key] = child
		n.order = append(n.order, key)
	}
	rt.chains.node(child).count++

	if tail != "" {
		nextKey, nextTail := splitFirst(tail)
		rt.chain(child, nextKey, nextTail)
	}
}

func (rt *Runtime) unchain(id nodeID, key, tail string) {
	n := rt.chains.node(id)
	if n == nil || key == "" {
		return
	}
	if n.kind == chainEach {
		rest := joinPath(key, tail)
		if n.tails[rest] <= 1 {
			delete(n.tails, rest)
		} else {
			n.tails[rest]--
		}
		rt.rebuildEach(id)
		return
	}

	child, ok := n.children[key]
	if !ok {
		return
	}
	if tail != "" {
		nextKey, nextTail := splitFirst(tail)
		rt.unchain(child, nextKey, nextTail)
	}

	c := rt.chains.node(child)
	c.count--
	if c.count <= 0 {
		rt.destroyNode(child)
	}
}

// rebuildEach recreates one item node per index of the watched collection,
// each chaining every remaining path registered on the @each node.
func (rt *Runtime) rebuildEach(id nodeID) {
	n := rt.chains.node(id)
	items := n.items
	n.items = nil
	for _, item := range items {
		rt.destroyNode(item)
	}

	obj := n.object.Value()
	n.length = rt.lengthOf(obj)
	if obj == nil || len(n.tails) == 0 {
		return
	}

	tails := slices.Sorted(maps.Keys(n.tails))
	for i := range n.length {
		item := rt.newKeyNode(id, strconv.Itoa(i))
		for _, tail := range tails {
			count := n.tails[tail]
			rt.chains.node(item).count += count
			key, rest := splitFirst(tail)
			for range count {
				rt.chain(item, key, rest)
			}
		}
		n.items = append(n.items, item)
	}
}

// Values

func (rt *Runtime) chainValue(id nodeID) any {
	n := rt.chains.node(id)
	if n == nil {
		return nil
	}
	switch n.kind {
	case chainRoot:
		if obj := n.object.Value(); obj != nil {
			return obj
		}
		return nil
	case chainEach:
		return rt.chainValue(n.parent)
	}

	if !n.cached.set && n.watching {
		n.cached = makeValueRef(rt.lazyGet(rt.chainValue(n.parent), n.key))
	}
	return n.cached.get()
}

func (rt *Runtime) lazyGet(v any, key string) any {
	obj, ok := asObject(v)
	if !ok {
		return nil
	}
	// objects meant only to be prototypes have nothing to observe
	if m := rt.PeekMeta(obj); m != nil && m.proto == obj {
		return nil
	}
	return rt.peekValue(obj, key)
}

func (rt *Runtime) lengthOf(obj *Object) int {
	if obj == nil {
		return -1
	}
	if obj.isArray {
		return len(obj.items)
	}
	if n, ok := rt.peekValue(obj, "length").(int); ok {
		return n
	}
	return 0
}

// Notification

func (rt *Runtime) notifyNode(id nodeID, revalidate bool, affected *[]affectedPath) {
	n := rt.chains.node(id)
	if n == nil {
		return
	}
	switch n.kind {
	case chainRoot:
		for _, key := range slices.Clone(n.order) {
			rt.notifyNode(n.children[key], revalidate, affected)
		}
	case chainKey:
		rt.notifyKeyNode(id, n, revalidate, affected)
	case chainEach:
		rt.notifyEachNode(id, n, revalidate, affected)
	}
}

// rebind moves the watch of n to the current parent value. Reports whether
// the watched object changed.
func (rt *Runtime) rebind(id nodeID, n *chainNode) bool {
	parentObj, _ := asObject(rt.chainValue(n.parent))
	old := n.object.Value()
	if parentObj == old {
		return false
	}
	if old != nil {
		rt.removeChainWatcher(old, n.watchedKey(), id)
	}
	n.object = weak.Pointer[Object]{}
	if parentObj != nil {
		n.object = weak.Make(parentObj)
		rt.addChainWatcher(parentObj, n.watchedKey(), id)
	}
	return true
}

func (rt *Runtime) notifyKeyNode(id nodeID, n *chainNode, revalidate bool, affected *[]affectedPath) {
	if revalidate && n.watching {
		rt.rebind(id, n)
		n.cached = valueRef{}
	}

	for _, key := range slices.Clone(n.order) {
		if child, ok := n.children[key]; ok {
			rt.notifyNode(child, revalidate, affected)
		}
	}

	if affected != nil {
		rt.populateAffected(n.parent, []string{n.key}, affected)
	}
}

func (rt *Runtime) notifyEachNode(id nodeID, n *chainNode, revalidate bool, affected *[]affectedPath) {
	if revalidate && n.watching {
		rebound := rt.rebind(id, n)
		if rebound || rt.lengthOf(n.object.Value()) != n.length {
			rt.rebuildEach(id)
			if affected != nil {
				rt.populateAffected(n.parent, []string{eachKey}, affected)
				for _, tail := range slices.Sorted(maps.Keys(n.tails)) {
					keys := append([]string{eachKey}, strings.Split(tail, ".")...)
					rt.populateAffected(n.parent, keys, affected)
				}
			}
			return
		}
	}

	before := 0
	if affected != nil {
		before = len(*affected)
	}
	for _, item := range slices.Clone(n.items) {
		rt.notifyNode(item, revalidate, affected)
		// first index reporting a change ends the walk
		if affected != nil && len(*affected) > before {
			break
		}
	}
}

func (rt *Runtime) populateAffected(id nodeID, keys []string, affected *[]affectedPath) {
	n := rt.chains.node(id)
	if n == nil {
		return
	}
	switch n.kind {
	case chainRoot:
		if len(keys) > 1 {
			if obj := n.object.Value(); obj != nil {
				*affected = append(*affected, affectedPath{obj: obj, path: strings.Join(keys, ".")})
			}
		}
	case chainKey:
		rt.populateAffected(n.parent, append([]string{n.key}, keys...), affected)
	case chainEach:
		// item indexes are reported as @each
		k := append([]string{eachKey}, keys[1:]...)
		rt.populateAffected(n.parent, k, affected)
	}
}

func joinPath(key, tail string) string {
	if tail == "" {
		return key
	}
	return key + "." + tail
}

// finishChains runs once an object is fully initialized: chains watching
// it revalidate and inherited chains are copied onto it.
func (rt *Runtime) finishChains(m *Meta) {
	if m.chainWatchers != nil {
		for _, key := range slices.Sorted(maps.Keys(m.chainWatchers)) {
			rt.notifyChainWatchers(m, key, true, nil)
		}
	}
	if m.readableChains() != noNode {
		if _, err := m.writableChains(); err != nil {
			rt.logger.Warn("could not copy inherited chains", "object", m.Source().String(), "error", err)
		}
	}
}

// ChainNodes is the number of live chain nodes, roots included.
func (rt *Runtime) ChainNodes() int {
	return rt.chains.live()
}
