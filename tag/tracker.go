package tag

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Tracker collects the tags consumed during one tracked computation.
type Tracker struct {
	tags mapset.Set[Tag]
	last Tag
}

func NewTracker() *Tracker {
	return &Tracker{tags: mapset.NewThreadUnsafeSet[Tag]()}
}

// Add records t. Returns false when t was already present.
func (t *Tracker) Add(tg Tag) bool {
	added := t.tags.Add(tg)
	t.last = tg
	return added
}

func (t *Tracker) Size() int {
	return t.tags.Cardinality()
}

func (t *Tracker) Combine() Tag {
	switch t.tags.Cardinality() {
	case 0:
		return Constant
	case 1:
		return t.last
	default:
		return &combinator{tags: t.tags.ToSlice()}
	}
}
