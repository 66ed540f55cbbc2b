package metal

import "github.com/delaneyj/metal/tag"

// Cache memoizes fn and recomputes it only after something it consumed
// changed. Reading a cache consumes its tag, so caches nest.
type Cache[T any] struct {
	rt       *Runtime
	fn       func() (T, error)
	value    T
	tag      tag.Tag
	snapshot tag.Revision
	valid    bool
}

func NewCache[T any](rt *Runtime, fn func() (T, error)) *Cache[T] {
	return &Cache[T]{rt: rt, fn: fn}
}

func (c *Cache[T]) Value() (T, error) {
	if c.valid && tag.Validate(c.tag, c.snapshot) {
		c.rt.Consume(c.tag)
		return c.value, nil
	}

	// taken before running so writes made by fn invalidate the result
	snapshot := c.rt.Revision()
	var value T
	t, err := c.rt.Track(func() (err error) {
		value, err = c.fn()
		return err
	})
	c.rt.Consume(t)
	if err != nil {
		c.valid = false
		var zero T
		return zero, err
	}

	c.value, c.tag, c.snapshot, c.valid = value, t, snapshot, true
	return value, nil
}

// IsConst reports whether the last computation consumed nothing that can
// change.
func (c *Cache[T]) IsConst() bool {
	return c.valid && c.tag == tag.Constant
}
