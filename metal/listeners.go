package metal

import "slices"

type listenerKind uint8

const (
	listenerAdd listenerKind = iota
	listenerOnce
	// tombstones, never fired
	listenerRemove
	listenerRemoveAll
)

type listener struct {
	event  string
	target any
	method Method
	kind   listenerKind
}

func (l *listener) matches(event string, target any, method Method) bool {
	return l.event == event && l.kind != listenerRemoveAll && l.method == method && sameValue(l.target, target)
}

// ListenerMatch is one listener that should fire for an event.
type ListenerMatch struct {
	Target any
	Method Method
	Once   bool
}

// indexOfListener finds the last entry for exactly (event, target, method).
// With shadowing set a remove all tombstone for the event matches as well.
func indexOfListener(listeners []*listener, event string, target any, method Method, shadowing bool) int {
	for i := len(listeners) - 1; i >= 0; i-- {
		l := listeners[i]
		if l.matches(event, target, method) {
			return i
		}
		if shadowing && l.event == event && l.kind == listenerRemoveAll {
			return i
		}
	}
	return -1
}

func (m *Meta) AddToListeners(event string, target any, method Method, once bool) error {
	if m.rt.counters != nil {
		m.rt.counters.AddToListenersCalls++
	}
	kind := listenerAdd
	if once {
		kind = listenerOnce
	}
	return m.pushListener(event, target, method, kind)
}

func (m *Meta) RemoveFromListeners(event string, target any, method Method) error {
	if m.rt.counters != nil {
		m.rt.counters.RemoveFromListenersCalls++
	}
	return m.pushListener(event, target, method, listenerRemove)
}

// RemoveAllListeners drops every own listener for event and writes a single
// tombstone that keeps inherited listeners for it from being flattened in.
func (m *Meta) RemoveAllListeners(event string) error {
	if err := m.checkWritable("listeners"); err != nil {
		return err
	}
	if m.rt.counters != nil {
		m.rt.counters.RemoveAllListenersCalls++
	}
	m.reopenListeners()

	inheritedEnd := m.inheritedEnd
	for i := len(m.listeners) - 1; i >= 0; i-- {
		if m.listeners[i].event != event {
			continue
		}
		m.listeners = slices.Delete(m.listeners, i, i+1)
		if i < inheritedEnd {
			inheritedEnd--
		}
	}
	m.inheritedEnd = inheritedEnd
	m.listeners = slices.Insert(m.listeners, inheritedEnd, &listener{
		event: event,
		kind:  listenerRemoveAll,
	})
	return nil
}

func (m *Meta) pushListener(event string, target any, method Method, kind listenerKind) error {
	if err := m.checkWritable("listeners"); err != nil {
		return err
	}
	m.reopenListeners()

	i := indexOfListener(m.listeners, event, target, method, false)
	// an inherited entry is replaced by an own one
	if i != -1 && i < m.inheritedEnd {
		m.listeners = slices.Delete(m.listeners, i, i+1)
		m.inheritedEnd--
		i = -1
	}

	if i == -1 {
		m.listeners = append(m.listeners, &listener{
			event:  event,
			target: target,
			method: method,
			kind:   kind,
		})
		return nil
	}

	l := m.listeners[i]
	// own function listeners are dropped entirely instead of tombstoned so
	// the closure is released
	if kind == listenerRemove && l.kind != listenerRemove && method.fn != nil {
		m.listeners = slices.Delete(m.listeners, i, i+1)
		return nil
	}
	m.listeners[i] = &listener{event: event, target: target, method: method, kind: kind}
	return nil
}

// reopenListeners prepares the own list for writing. Descendants may have
// cached a flattened copy of this list, in which case the listener version is
// bumped so they reflatten.
func (m *Meta) reopenListeners() {
	if m.flattenedVersion == m.rt.listenerVersion {
		src := m.Source()
		switch {
		case m.IsPrototypeMeta(src) || m.hasChildren:
			if m.rt.counters != nil {
				m.rt.counters.ReopensAfterFlatten++
			}
			m.rt.listenerVersion++
		case m.inheritedEnd == -1:
			// only this meta cached the parent's list
			m.flattenedVersion = 0
		}
	}

	if m.inheritedEnd == -1 {
		m.inheritedEnd = 0
		m.listeners = nil
	}
}

func (m *Meta) flattenedListeners() []*listener {
	if m.rt.counters != nil {
		m.rt.counters.FlattenedListenersCalls++
	}
	if m.flattenedVersion >= m.rt.listenerVersion {
		return m.listeners
	}
	if m.rt.counters != nil {
		m.rt.counters.ListenersFlattened++
	}

	if parent := m.Parent(); parent != nil {
		inherited := parent.flattenedListeners()
		if m.inheritedEnd == -1 {
			if m.rt.counters != nil {
				m.rt.counters.ParentListenersUsed++
			}
			m.listeners = inherited
		} else {
			own := m.listeners[m.inheritedEnd:]
			merged := make([]*listener, 0, len(inherited)+len(own))
			for _, l := range inherited {
				if indexOfListener(own, l.event, l.target, l.method, true) != -1 {
					continue
				}
				if m.rt.counters != nil {
					m.rt.counters.ListenersInherited++
				}
				merged = append(merged, l)
			}
			m.inheritedEnd = len(merged)
			m.listeners = append(merged, own...)
		}
	}

	m.flattenedVersion = m.rt.listenerVersion
	return m.listeners
}

// MatchingListeners returns the listeners that fire for event, ancestors
// first and in insertion order within one level.
func (m *Meta) MatchingListeners(event string) []ListenerMatch {
	if m.rt.counters != nil {
		m.rt.counters.MatchingListenersCalls++
	}
	var result []ListenerMatch
	for _, l := range m.flattenedListeners() {
		if l.event != event || (l.kind != listenerAdd && l.kind != listenerOnce) {
			continue
		}
		result = append(result, ListenerMatch{
			Target: l.target,
			Method: l.method,
			Once:   l.kind == listenerOnce,
		})
	}
	return result
}

func (m *Meta) HasListeners(event string) bool {
	for _, l := range m.flattenedListeners() {
		if l.event == event && (l.kind == listenerAdd || l.kind == listenerOnce) {
			return true
		}
	}
	return false
}
