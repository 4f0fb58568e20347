package adws

import "github.com/lattice-hpc/adws/flipper"

// Options collects the process-wide scheduler configuration. Construct
// with NewOptions and functional Option arguments; zero-value Options is
// never used directly since several fields (max depth, queue capacity)
// must be positive for the scheduler to operate at all.
//
// Design: a plain struct built via functional options rather than a bare
// struct literal, since the knobs interact (e.g. AdwsMaxDepth bounding
// the Flipper bit-width) in ways a documented With* constructor can
// enforce that a literal would leave to the caller.
type Options struct {
	// StackSize is the per-worker call-stack reservation in bytes. This
	// edition runs tasks as goroutines with dynamically growable stacks
	// managed by the Go runtime, so the value is accepted and reported
	// for API parity with a native ITYR-style deployment but otherwise
	// unused.
	StackSize int

	// AdwsMaxDepth bounds both the dtree's depth and, since Flipper can
	// only disambiguate flipper.MaxDepth distinct depths, must not
	// exceed it.
	AdwsMaxDepth int

	// AdwsWSQueueCapacity is the per-level capacity of each work-stealing
	// deque level; 0 means unbounded. Exceeding a bounded capacity is a
	// resource-exhaustion fatal error.
	AdwsWSQueueCapacity int

	// ThreadStateAllocatorSize and SuspendedThreadAllocatorSize size the
	// remotable allocator pools backing ThreadState and evacuated
	// continuation blocks respectively. The in-process allocator grows
	// on demand, so these are accepted as documented soft targets rather
	// than hard caps.
	ThreadStateAllocatorSize     int
	SuspendedThreadAllocatorSize int

	// AdwsMinDrangeSize is the width below which a DistRange is snapped
	// to an integer boundary by MoveToEndBoundary.
	AdwsMinDrangeSize float64

	// AdwsMaxDtreeReuse bounds the number of steal attempts performed
	// per dtree lookup in Steal; must be >= 1.
	AdwsMaxDtreeReuse int

	// AdwsEnableSteal toggles the steal() step of sched_loop.
	AdwsEnableSteal bool

	// SchedLoopMakeMPIProgress toggles the topology Progress() tick at
	// the top of every sched_loop iteration.
	SchedLoopMakeMPIProgress bool

	logger  Logger
	onFatal func(error)
}

// Option configures an Options value.
type Option func(*Options)

// WithStackSize sets the per-worker stack reservation.
func WithStackSize(bytes int) Option {
	return func(o *Options) { o.StackSize = bytes }
}

// WithMaxDepth sets the dtree/Flipper depth bound. Values above
// flipper.MaxDepth are clamped, since Flipper cannot disambiguate more
// depths than it has bits.
func WithMaxDepth(depth int) Option {
	return func(o *Options) {
		if depth > flipper.MaxDepth {
			depth = flipper.MaxDepth
		}
		o.AdwsMaxDepth = depth
	}
}

// WithWSQueueCapacity sets the per-level deque capacity (0 = unbounded).
func WithWSQueueCapacity(capacity int) Option {
	return func(o *Options) { o.AdwsWSQueueCapacity = capacity }
}

// WithThreadStateAllocatorSize sets the ThreadState pool size hint.
func WithThreadStateAllocatorSize(n int) Option {
	return func(o *Options) { o.ThreadStateAllocatorSize = n }
}

// WithSuspendedThreadAllocatorSize sets the evacuated-continuation pool
// size hint.
func WithSuspendedThreadAllocatorSize(n int) Option {
	return func(o *Options) { o.SuspendedThreadAllocatorSize = n }
}

// WithMinDrangeSize sets the boundary-snap width threshold.
func WithMinDrangeSize(width float64) Option {
	return func(o *Options) { o.AdwsMinDrangeSize = width }
}

// WithMaxDtreeReuse sets the steal-attempts-per-lookup bound. Values
// below 1 are clamped to 1: a scheduler must always attempt at least
// one steal per lookup to make progress.
func WithMaxDtreeReuse(n int) Option {
	return func(o *Options) {
		if n < 1 {
			n = 1
		}
		o.AdwsMaxDtreeReuse = n
	}
}

// WithSteal enables or disables the steal() step of sched_loop.
func WithSteal(enabled bool) Option {
	return func(o *Options) { o.AdwsEnableSteal = enabled }
}

// WithMPIProgress enables or disables the per-iteration Progress() tick.
func WithMPIProgress(enabled bool) Option {
	return func(o *Options) { o.SchedLoopMakeMPIProgress = enabled }
}

// WithLogger overrides the default standard-library logger.
func WithLogger(l Logger) Option {
	return func(o *Options) { o.logger = l }
}

// WithOnFatal overrides the default fatal hook (which panics). A
// production caller that wants a hard process exit on resource
// exhaustion or invariant violation should supply
// func(error) { os.Exit(2) }.
func WithOnFatal(fn func(error)) Option {
	return func(o *Options) { o.onFatal = fn }
}

// defaultOptions returns the documented zero-configuration defaults:
// a 64-deep dtree (matching Flipper's full bit-width), a generous but
// bounded queue capacity, steal enabled, and MPI progress ticked every
// iteration.
func defaultOptions() Options {
	return Options{
		StackSize:                    8 << 20,
		AdwsMaxDepth:                 flipper.MaxDepth,
		AdwsWSQueueCapacity:          1024,
		ThreadStateAllocatorSize:     256,
		SuspendedThreadAllocatorSize: 256,
		AdwsMinDrangeSize:            1e-3,
		AdwsMaxDtreeReuse:            4,
		AdwsEnableSteal:              true,
		SchedLoopMakeMPIProgress:     true,
		onFatal:                      defaultOnFatal,
	}
}

// NewOptions applies opts over defaultOptions, validating and clamping
// the result: an AdwsMaxDepth <= 0 or AdwsMaxDtreeReuse <= 0 would make
// the scheduler unable to ever make progress, so it is corrected at
// construction time rather than discovered later as a mysterious panic.
func NewOptions(opts ...Option) Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.AdwsMaxDepth <= 0 {
		o.AdwsMaxDepth = 1
	}
	if o.AdwsMaxDtreeReuse < 1 {
		o.AdwsMaxDtreeReuse = 1
	}
	if o.logger == nil {
		o.logger = NewLogger(defaultStdLog())
	}
	if o.onFatal == nil {
		o.onFatal = defaultOnFatal
	}
	return o
}
