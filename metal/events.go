package metal

import (
	"fmt"
)

// Event is delivered to listeners.
type Event struct {
	Name   string
	Sender *Object
	// Key is the changed path for observer events.
	Key  string
	Args []any
}

type Callback func(ev Event)

// Receiver targets are handed selector methods by name.
type Receiver interface {
	HandleEvent(method string, ev Event)
}

// Method identifies what a listener calls. Function methods are compared by
// handle, so keep the value returned by Func to remove the listener later.
type Method struct {
	name string
	fn   *Callback
}

// Selector names a method resolved on the target at dispatch time.
func Selector(name string) Method {
	return Method{name: name}
}

func Func(fn Callback) Method {
	return Method{fn: &fn}
}

func (m Method) IsFunc() bool {
	return m.fn != nil
}

func (m Method) String() string {
	if m.fn != nil {
		return fmt.Sprintf("func(%p)", m.fn)
	}
	return m.name
}

func (rt *Runtime) AddListener(obj *Object, event string, target any, method Method, once bool) error {
	if obj == nil {
		return ErrInvalidTarget
	}
	if err := rt.metaFor(obj).AddToListeners(event, target, method, once); err != nil {
		return fmt.Errorf("add listener %q: %w", event, err)
	}
	return nil
}

func (rt *Runtime) RemoveListener(obj *Object, event string, target any, method Method) error {
	if obj == nil {
		return ErrInvalidTarget
	}
	if err := rt.metaFor(obj).RemoveFromListeners(event, target, method); err != nil {
		return fmt.Errorf("remove listener %q: %w", event, err)
	}
	return nil
}

func (rt *Runtime) RemoveAllListeners(obj *Object, event string) error {
	if obj == nil {
		return ErrInvalidTarget
	}
	if err := rt.metaFor(obj).RemoveAllListeners(event); err != nil {
		return fmt.Errorf("remove all listeners %q: %w", event, err)
	}
	return nil
}

// MatchingListeners lists the listeners SendEvent would call for event.
func (rt *Runtime) MatchingListeners(obj *Object, event string) []ListenerMatch {
	if obj == nil {
		return nil
	}
	m := rt.PeekMeta(obj)
	if m == nil {
		return nil
	}
	return m.MatchingListeners(event)
}

func (rt *Runtime) HasListeners(obj *Object, event string) bool {
	if obj == nil {
		return false
	}
	m := rt.PeekMeta(obj)
	return m != nil && m.HasListeners(event)
}

// SendEvent calls every matching listener in order. Once listeners are
// removed from obj before they run. Reports whether anything was called.
func (rt *Runtime) SendEvent(obj *Object, event string, args ...any) bool {
	return rt.sendEvent(obj, Event{Name: event, Sender: obj, Args: args})
}

func (rt *Runtime) sendEvent(obj *Object, ev Event) bool {
	m := rt.PeekMeta(obj)
	if m == nil {
		return false
	}
	actions := m.MatchingListeners(ev.Name)
	if len(actions) == 0 {
		return false
	}

	for _, action := range actions {
		if action.Once {
			if err := rt.RemoveListener(obj, ev.Name, action.Target, action.Method); err != nil {
				rt.logger.Warn("could not remove once listener", "object", obj.String(), "event", ev.Name, "error", err)
			}
		}
		rt.invoke(obj, action.Target, action.Method, ev)
	}
	return true
}

func (rt *Runtime) invoke(obj *Object, target any, method Method, ev Event) {
	if method.fn != nil {
		(*method.fn)(ev)
		return
	}

	if target == nil {
		target = obj
	}
	switch t := target.(type) {
	case Receiver:
		t.HandleEvent(method.name, ev)
		return
	case *Object:
		v, _ := t.lookup(method.name)
		switch fn := v.(type) {
		case Callback:
			fn(ev)
			return
		case func(Event):
			fn(ev)
			return
		}
	}
	rt.logger.Warn("listener method not found", "event", ev.Name, "method", method.name, "target", fmt.Sprint(target))
}
