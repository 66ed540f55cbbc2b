package metal

import "fmt"

// Watch starts watching key, which may be a dotted path, on obj. Writes to
// a watched key notify dependent keys, chains and observers.
func (rt *Runtime) Watch(obj *Object, path string) error {
	if err := validateKey("watch", obj, path); err != nil {
		return err
	}
	if err := rt.watch(obj, path, rt.metaFor(obj)); err != nil {
		return fmt.Errorf("watch %q: %w", path, err)
	}
	return nil
}

func (rt *Runtime) Unwatch(obj *Object, path string) error {
	if err := validateKey("unwatch", obj, path); err != nil {
		return err
	}
	if err := rt.unwatch(obj, path, rt.metaFor(obj)); err != nil {
		return fmt.Errorf("unwatch %q: %w", path, err)
	}
	return nil
}

// WatcherCount is the watch count of key as seen from obj, inherited counts
// included.
func (rt *Runtime) WatcherCount(obj *Object, key string) int {
	if obj == nil {
		return 0
	}
	m := rt.PeekMeta(obj)
	if m == nil {
		return 0
	}
	return m.PeekWatching(key)
}

func (rt *Runtime) IsWatching(obj *Object, key string) bool {
	return rt.WatcherCount(obj, key) > 0
}

func (rt *Runtime) watch(obj *Object, path string, m *Meta) error {
	if rt.paths.isPath(path) {
		return rt.watchPath(obj, path, m)
	}
	return rt.watchKey(obj, path, m)
}

func (rt *Runtime) unwatch(obj *Object, path string, m *Meta) error {
	if rt.paths.isPath(path) {
		return rt.unwatchPath(obj, path, m)
	}
	return rt.unwatchKey(obj, path, m)
}

func (rt *Runtime) watchKey(obj *Object, key string, m *Meta) error {
	count := m.PeekWatching(key)
	if err := m.WriteWatching(key, count+1); err != nil {
		return err
	}
	if count == 0 {
		if d := m.PeekDescriptor(key); d != nil {
			return d.didWatch(rt, obj, key, m)
		}
	}
	return nil
}

func (rt *Runtime) unwatchKey(obj *Object, key string, m *Meta) error {
	if m == nil || m.IsSourceDestroyed() {
		return nil
	}
	switch count := m.PeekWatching(key); {
	case count == 1:
		if err := m.WriteWatching(key, 0); err != nil {
			return err
		}
		if d := m.PeekDescriptor(key); d != nil {
			return d.didUnwatch(rt, obj, key, m)
		}
	case count > 1:
		return m.WriteWatching(key, count-1)
	}
	return nil
}

// watchPath counts watches of path; the first one builds its chain.
func (rt *Runtime) watchPath(obj *Object, path string, m *Meta) error {
	count := m.PeekWatching(path)
	if err := m.WriteWatching(path, count+1); err != nil {
		return err
	}
	if count == 0 {
		root, err := m.writableChains()
		if err != nil {
			return err
		}
		rt.addPath(root, path)
	}
	return nil
}

// unwatchPath releases a watch of path; the last one tears its chain down.
func (rt *Runtime) unwatchPath(obj *Object, path string, m *Meta) error {
	if m == nil || m.IsSourceDestroyed() {
		return nil
	}
	switch count := m.PeekWatching(path); {
	case count == 1:
		if err := m.WriteWatching(path, 0); err != nil {
			return err
		}
		root, err := m.writableChains()
		if err != nil {
			return err
		}
		rt.removePath(root, path)
	case count > 1:
		return m.WriteWatching(path, count-1)
	}
	return nil
}
