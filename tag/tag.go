package tag

// Revision is a monotonically increasing clock value. A tag whose revision is
// greater than a previously taken snapshot has changed since that snapshot.
type Revision uint64

const (
	ConstantRevision Revision = 0
	InitialRevision  Revision = 1
)

// Clock hands out revisions. Every runtime owns exactly one.
type Clock struct {
	now Revision
}

func NewClock() *Clock {
	return &Clock{now: InitialRevision}
}

func (c *Clock) Now() Revision {
	return c.now
}

func (c *Clock) Bump() Revision {
	c.now++
	return c.now
}

type Tag interface {
	Value() Revision
}

// Validate reports whether nothing behind t changed after snapshot was taken.
func Validate(t Tag, snapshot Revision) bool {
	return snapshot >= t.Value()
}

type constant struct{}

func (constant) Value() Revision { return ConstantRevision }

// Constant never changes.
var Constant Tag = constant{}

// Dirtyable is the tag for one fine grained value.
type Dirtyable struct {
	clock    *Clock
	revision Revision
}

func NewDirtyable(c *Clock) *Dirtyable {
	return &Dirtyable{clock: c, revision: InitialRevision}
}

func (t *Dirtyable) Value() Revision {
	return t.revision
}

func (t *Dirtyable) Dirty() {
	t.revision = t.clock.Bump()
}

// Updatable is a Dirtyable that can additionally forward to another tag, the
// way a property tag forwards to whatever its getter last consumed.
type Updatable struct {
	Dirtyable
	inner Tag
}

func NewUpdatable(c *Clock) *Updatable {
	return &Updatable{
		Dirtyable: Dirtyable{clock: c, revision: InitialRevision},
		inner:     Constant,
	}
}

func (t *Updatable) Value() Revision {
	return max(t.revision, t.inner.Value())
}

func (t *Updatable) Update(inner Tag) {
	if inner == nil {
		inner = Constant
	}
	t.inner = inner
}

type combinator struct {
	tags []Tag
}

func (c *combinator) Value() Revision {
	rev := ConstantRevision
	for _, t := range c.tags {
		rev = max(rev, t.Value())
	}
	return rev
}

// Combine returns a tag whose revision is the max of its inputs.
func Combine(tags ...Tag) Tag {
	filtered := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if t == nil || t == Constant {
			continue
		}
		filtered = append(filtered, t)
	}

	switch len(filtered) {
	case 0:
		return Constant
	case 1:
		return filtered[0]
	default:
		return &combinator{tags: filtered}
	}
}
