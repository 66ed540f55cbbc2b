package metal

// NotifyPropertyChange reports that key on obj changed: its tags are
// dirtied and, while the key is watched, dependent keys, chains and
// observers are notified.
func (rt *Runtime) NotifyPropertyChange(obj *Object, key string) error {
	if obj == nil {
		return ErrInvalidTarget
	}
	rt.notifyPropertyChange(obj, key)
	return nil
}

func (rt *Runtime) notifyPropertyChange(obj *Object, key string) {
	m := rt.PeekMeta(obj)
	if m != nil && (m.IsInitializing() || m.IsPrototypeMeta(obj)) {
		return
	}
	// an instance built without Create takes its own copy of the inherited
	// chains on its first change
	if m != nil && m.Source() != obj && inheritsChains(obj) {
		m = rt.metaFor(obj)
	}

	if own := obj.meta; own != nil && !own.IsSourceDestroying() {
		markObjectAsDirty(own, key)
	}

	if m != nil && m.PeekWatching(key) > 0 {
		rt.dependentKeysDidChange(obj, key, m)
		rt.chainsDidChange(obj, key, m)
		rt.notifyObservers(obj, key)
	}

	rt.didChange()
}

func (rt *Runtime) dependentKeysDidChange(obj *Object, key string, m *Meta) {
	if m.IsSourceDestroying() || !m.HasDeps(key) {
		return
	}
	ref := propertyRef{obj: obj, key: key}
	if !rt.inFlight.Add(ref) {
		return
	}
	defer rt.inFlight.Remove(ref)

	m.ForEachInDeps(key, func(dependent string) {
		rt.notifyPropertyChange(obj, dependent)
	})
}

func (rt *Runtime) chainsDidChange(obj *Object, key string, m *Meta) {
	// chain watchers are never inherited
	if m.Source() != obj || m.chainWatchers == nil || m.IsMetaDestroyed() {
		return
	}
	rt.notifyChainWatchers(m, key, true, rt.notifyPropertyChange)
}

func changeEvent(key string) string {
	return key + ":change"
}

func (rt *Runtime) notifyObservers(obj *Object, key string) {
	rt.sendEvent(obj, Event{
		Name:   changeEvent(key),
		Sender: obj,
		Key:    key,
	})
}
