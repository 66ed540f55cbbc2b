package metal

import (
	"slices"
)

// chainRef is a generation checked handle to a chain node, so a watcher
// list never reaches a node that reused a released slot.
type chainRef struct {
	id  nodeID
	gen uint32
}

type chainSlot struct {
	node *chainNode
	gen  uint32
}

// chainArena owns every chain node of a runtime. Nodes link to each other
// by index only.
type chainArena struct {
	slots []chainSlot
	free  []nodeID
	count int
}

func (a *chainArena) alloc(n *chainNode) nodeID {
	a.count++
	if l := len(a.free); l > 0 {
		id := a.free[l-1]
		a.free = a.free[:l-1]
		a.slots[id].node = n
		n.id = id
		return id
	}
	id := nodeID(len(a.slots))
	a.slots = append(a.slots, chainSlot{node: n})
	n.id = id
	return id
}

func (a *chainArena) node(id nodeID) *chainNode {
	if id < 0 || int(id) >= len(a.slots) {
		return nil
	}
	return a.slots[id].node
}

func (a *chainArena) ref(id nodeID) chainRef {
	return chainRef{id: id, gen: a.slots[id].gen}
}

func (a *chainArena) resolve(r chainRef) *chainNode {
	n := a.node(r.id)
	if n == nil || a.slots[r.id].gen != r.gen {
		return nil
	}
	return n
}

func (a *chainArena) release(id nodeID) {
	if a.node(id) == nil {
		return
	}
	a.slots[id].node = nil
	a.slots[id].gen++
	a.free = append(a.free, id)
	a.count--
}

func (a *chainArena) live() int {
	return a.count
}

func (rt *Runtime) addChainWatcher(obj *Object, key string, id nodeID) {
	m := rt.metaFor(obj)
	watchers, err := m.writableChainWatchers()
	if err != nil {
		// destroyed objects stay inert
		return
	}
	watchers[key] = append(watchers[key], rt.chains.ref(id))
	if err := rt.watchKey(obj, key, m); err != nil {
		rt.logger.Warn("could not watch chain key", "object", obj.String(), "key", key, "error", err)
	}
}

func (rt *Runtime) removeChainWatcher(obj *Object, key string, id nodeID) {
	m := obj.meta
	if m == nil || m.chainWatchers == nil || m.IsMetaDestroyed() {
		return
	}
	ref := rt.chains.ref(id)
	list := m.chainWatchers[key]
	if i := slices.Index(list, ref); i != -1 {
		list = slices.Delete(list, i, i+1)
	}
	if len(list) == 0 {
		delete(m.chainWatchers, key)
	} else {
		m.chainWatchers[key] = list
	}
	if err := rt.unwatchKey(obj, key, m); err != nil {
		rt.logger.Warn("could not unwatch chain key", "object", obj.String(), "key", key, "error", err)
	}
}

// notifyChainWatchers revalidates the chain nodes watching key on m's
// object. Affected paths are collected during the walk and handed to
// callback only after it completes.
func (rt *Runtime) notifyChainWatchers(m *Meta, key string, revalidate bool, callback func(obj *Object, path string)) {
	refs := slices.Clone(m.chainWatchers[key])
	if len(refs) == 0 {
		return
	}

	var affected *[]affectedPath
	if callback != nil {
		affected = &[]affectedPath{}
	}

	for _, ref := range refs {
		if rt.chains.resolve(ref) == nil {
			continue
		}
		rt.notifyNode(ref.id, revalidate, affected)
	}

	if callback == nil {
		return
	}
	for _, a := range *affected {
		callback(a.obj, a.path)
	}
}
