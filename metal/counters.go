package metal

// Counters are diagnostic operation counts, only collected in debug mode.
type Counters struct {
	PeekCalls                uint64
	PeekPrototypeWalks       uint64
	SetCalls                 uint64
	DeleteCalls              uint64
	MetaCalls                uint64
	MetaInstantiated         uint64
	MatchingListenersCalls   uint64
	AddToListenersCalls      uint64
	RemoveFromListenersCalls uint64
	RemoveAllListenersCalls  uint64
	ListenersInherited       uint64
	ListenersFlattened       uint64
	ParentListenersUsed      uint64
	FlattenedListenersCalls  uint64
	ReopensAfterFlatten      uint64
	PathCacheHits            uint64
	PathCacheMisses          uint64
}

type CounterField struct {
	Name  string
	Help  string
	Value uint64
}

// Fields lists the counters in a stable order.
func (c Counters) Fields() []CounterField {
	return []CounterField{
		{"peek_calls", "Metadata peeks.", c.PeekCalls},
		{"peek_prototype_walks", "Prototype steps taken while peeking metadata.", c.PeekPrototypeWalks},
		{"set_calls", "Property sets.", c.SetCalls},
		{"delete_calls", "Metadata teardowns.", c.DeleteCalls},
		{"meta_calls", "Own metadata lookups.", c.MetaCalls},
		{"meta_instantiated", "Metadata records allocated.", c.MetaInstantiated},
		{"matching_listeners_calls", "Listener matches computed.", c.MatchingListenersCalls},
		{"add_to_listeners_calls", "Listeners added.", c.AddToListenersCalls},
		{"remove_from_listeners_calls", "Listeners removed.", c.RemoveFromListenersCalls},
		{"remove_all_listeners_calls", "Remove all tombstones written.", c.RemoveAllListenersCalls},
		{"listeners_inherited", "Listener entries copied from a parent.", c.ListenersInherited},
		{"listeners_flattened", "Listener lists reflattened.", c.ListenersFlattened},
		{"parent_listeners_used", "Parent listener lists shared as is.", c.ParentListenersUsed},
		{"flattened_listeners_calls", "Flattened listener reads.", c.FlattenedListenersCalls},
		{"reopens_after_flatten", "Listener version bumps.", c.ReopensAfterFlatten},
		{"path_cache_hits", "Path detection cache hits.", c.PathCacheHits},
		{"path_cache_misses", "Path detection cache misses.", c.PathCacheMisses},
	}
}
