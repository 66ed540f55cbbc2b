package metal

import (
	"fmt"
	"slices"
	"strconv"
)

func (rt *Runtime) checkArray(op string, arr *Object) error {
	if arr == nil || !arr.isArray {
		return fmt.Errorf("%s on %s: %w", op, arr, ErrInvalidTarget)
	}
	if m := arr.meta; m != nil && m.IsMetaDestroyed() {
		return fmt.Errorf("%s on %s: %w", op, arr, ErrDestroyedMetaMutation)
	}
	return rt.assertNotConsumed(arr, contentsKey, false)
}

// PushObject appends items, then notifies the new indexes, length and the
// contents key.
func (rt *Runtime) PushObject(arr *Object, items ...any) error {
	if err := rt.checkArray("push", arr); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	start := len(arr.items)
	arr.items = append(arr.items, items...)

	for i := start; i < len(arr.items); i++ {
		rt.notifyPropertyChange(arr, strconv.Itoa(i))
	}
	rt.notifyPropertyChange(arr, "length")
	rt.notifyPropertyChange(arr, contentsKey)
	return nil
}

// RemoveAt removes and returns the item at idx. Every index from idx on
// shifts and is notified.
func (rt *Runtime) RemoveAt(arr *Object, idx int) (any, error) {
	if err := rt.checkArray("remove", arr); err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(arr.items) {
		return nil, fmt.Errorf("remove %d from %s: %w", idx, arr, ErrIndexOutOfRange)
	}
	oldLen := len(arr.items)
	removed := arr.items[idx]
	arr.items = slices.Delete(arr.items, idx, idx+1)

	rt.notifyPropertyChange(arr, "length")
	for i := idx; i < oldLen; i++ {
		rt.notifyPropertyChange(arr, strconv.Itoa(i))
	}
	rt.notifyPropertyChange(arr, contentsKey)
	return removed, nil
}

func (rt *Runtime) ReplaceAt(arr *Object, idx int, value any) error {
	if err := rt.checkArray("replace", arr); err != nil {
		return err
	}
	if idx < 0 || idx >= len(arr.items) {
		return fmt.Errorf("replace %d in %s: %w", idx, arr, ErrIndexOutOfRange)
	}
	if sameValue(arr.items[idx], value) {
		return nil
	}
	arr.items[idx] = value

	rt.notifyPropertyChange(arr, strconv.Itoa(idx))
	rt.notifyPropertyChange(arr, contentsKey)
	return nil
}
