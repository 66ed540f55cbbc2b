package metal

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/delaneyj/metal/tag"
)

// Track runs fn with a fresh tracker installed and returns the combined tag
// of everything consumed while it ran. The previous tracker is restored even
// if fn fails or panics. In debug mode an autotracking transaction is opened
// when none is active.
func (rt *Runtime) Track(fn func() error) (tag.Tag, error) {
	parent := rt.current
	current := tag.NewTracker()
	rt.current = current
	defer func() {
		rt.current = parent
	}()

	if rt.debug && rt.transaction == nil {
		rt.transaction = mapset.NewThreadUnsafeSet[tag.Tag]()
		defer func() {
			rt.transaction = nil
		}()
	}

	err := fn()
	return current.Combine(), err
}

// Consume adds t to the active tracker. Outside a tracked computation it
// does nothing.
func (rt *Runtime) Consume(t tag.Tag) {
	if rt.current == nil || t == nil {
		return
	}
	rt.current.Add(t)
	if rt.transaction != nil {
		rt.transaction.Add(t)
	}
}

// Untrack runs fn without a tracker so nothing it reads becomes a
// dependency.
func (rt *Runtime) Untrack(fn func() error) error {
	parent := rt.current
	rt.current = nil
	defer func() {
		rt.current = parent
	}()
	return fn()
}

func (rt *Runtime) IsTracking() bool {
	return rt.current != nil
}

// RunInTransaction runs fn inside an autotracking transaction: writing a
// value that was consumed earlier in the transaction fails with
// ErrStaleWriteInRender. Outside debug mode fn simply runs.
func (rt *Runtime) RunInTransaction(fn func() error) error {
	if !rt.debug {
		return fn()
	}
	prev := rt.transaction
	rt.transaction = mapset.NewThreadUnsafeSet[tag.Tag]()
	defer func() {
		rt.transaction = prev
	}()
	return fn()
}

// WarnInTransaction downgrades stale plain writes inside fn to logged
// warnings. Tracked fields still fail.
func (rt *Runtime) WarnInTransaction(fn func() error) error {
	prev := rt.warnInTransaction
	rt.warnInTransaction = true
	defer func() {
		rt.warnInTransaction = prev
	}()
	return fn()
}

func (rt *Runtime) assertNotConsumed(obj *Object, key string, hard bool) error {
	if rt.transaction == nil {
		return nil
	}
	t := peekPropertyTag(obj, key)
	if t == nil || !rt.transaction.Contains(t) {
		return nil
	}
	if rt.warnInTransaction && !hard {
		rt.logger.Warn("value dirtied after it was consumed in the same render",
			"object", obj.String(),
			"key", key,
		)
		return nil
	}
	return fmt.Errorf("`%s` on `%s` was consumed earlier in the same render: %w", key, obj, ErrStaleWriteInRender)
}
