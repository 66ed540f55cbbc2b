// Package metal tracks property reads and writes on dynamic objects: paths
// are watched through chains of nodes, observers are event listeners
// inherited along prototype chains, and tracked computations summarize what
// they read as a single tag.
package metal

import (
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/delaneyj/metal/tag"
)

// Config configures a Runtime.
type Config struct {
	// Debug enables the autotracking transaction checks and the diagnostic
	// counters.
	Debug bool

	// Logger receives warnings (default: slog.Default()).
	Logger *slog.Logger

	// PropertyDidChange is invoked after every property change, tracked or
	// not. Renderers use it to schedule a revalidation.
	PropertyDidChange func()

	// PathCacheSize bounds the number of keys remembered by the path
	// detection cache (default: 1000).
	PathCacheSize int
}

type Option func(*Config)

func WithDebug(debug bool) Option {
	return func(c *Config) {
		c.Debug = debug
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

func WithPropertyDidChange(fn func()) Option {
	return func(c *Config) {
		c.PropertyDidChange = fn
	}
}

func WithPathCacheSize(size int) Option {
	return func(c *Config) {
		c.PathCacheSize = size
	}
}

func defaultConfig() Config {
	return Config{
		Logger:        slog.Default(),
		PathCacheSize: 1000,
	}
}

type propertyRef struct {
	obj *Object
	key string
}

// Runtime owns the state that would otherwise be global: the revision clock,
// the chain node arena, the current tracker and the listener version. All
// operations on one runtime are expected to happen on a single goroutine.
type Runtime struct {
	clock  *tag.Clock
	chains chainArena
	paths  *pathCache

	current *tag.Tracker

	// non nil while an autotracking transaction is open
	transaction       mapset.Set[tag.Tag]
	warnInTransaction bool

	listenerVersion uint64

	// guards dependent key notification cycles
	inFlight mapset.Set[propertyRef]

	debug             bool
	logger            *slog.Logger
	counters          *Counters
	propertyDidChange func()
}

func CreateRuntime(opts ...Option) *Runtime {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	rt := &Runtime{
		clock:             tag.NewClock(),
		listenerVersion:   1,
		inFlight:          mapset.NewThreadUnsafeSet[propertyRef](),
		debug:             cfg.Debug,
		logger:            cfg.Logger,
		propertyDidChange: cfg.PropertyDidChange,
	}
	if cfg.Debug {
		rt.counters = &Counters{}
	}
	rt.paths = newPathCache(cfg.PathCacheSize, rt.counters)

	return rt
}

// Revision is the current value of the runtime clock.
func (rt *Runtime) Revision() tag.Revision {
	return rt.clock.Now()
}

func (rt *Runtime) IsDebug() bool {
	return rt.debug
}

// Counters returns a copy of the diagnostic counters. Outside debug mode
// nothing is counted and the zero value is returned.
func (rt *Runtime) Counters() Counters {
	if rt.counters == nil {
		return Counters{}
	}
	return *rt.counters
}

func (rt *Runtime) ResetCounters() {
	if rt.counters != nil {
		*rt.counters = Counters{}
	}
}

func (rt *Runtime) didChange() {
	if rt.propertyDidChange != nil {
		rt.propertyDidChange()
	}
}
