package prioinv

import "time"

// Options holds configuration options for the [Bench].
type Options struct {
	Platform Platform
	Logger   *Logger
	Observer Observer
	Workload Workload

	Class              SchedClass
	HolderPriority     Priority
	BackgroundPriority Priority
	ContenderPriority  Priority

	// Ceiling defaults to the most urgent role priority when zero.
	Ceiling Priority

	HolderUnits      int
	HolderUnit       time.Duration
	BackgroundBursts int
	BackgroundBurst  time.Duration
	ContenderUnit    time.Duration

	Stagger time.Duration
	Settle  time.Duration
	Rounds  int

	MaxThreads int

	// CPU pins every role thread to one processor when non-negative.
	CPU int

	// AllowFallback lets a role run under default scheduling when its
	// real-time request is refused. The trial is then marked degraded.
	AllowFallback bool
}

// DefaultOptions returns the options of the reference scenario: holder,
// background and contender at 10, 20 and 30 under FIFO scheduling.
func DefaultOptions() Options {
	return Options{
		Workload:           SpinWorkload{},
		Class:              ClassFIFO,
		HolderPriority:     Priorities.Low,
		BackgroundPriority: Priorities.Medium,
		ContenderPriority:  Priorities.High,
		HolderUnits:        5,
		HolderUnit:         50 * time.Millisecond,
		BackgroundBursts:   200,
		BackgroundBurst:    10 * time.Millisecond,
		ContenderUnit:      20 * time.Millisecond,
		Stagger:            50 * time.Millisecond,
		Settle:             time.Second,
		Rounds:             1,
		MaxThreads:         3,
		CPU:                -1,
	}
}

// Option is a function that configures [Options].
type Option func(*Options)

// WithPlatform sets the platform threads are scheduled through. The default is
// [OSPlatform].
func WithPlatform(p Platform) Option {
	return func(o *Options) {
		o.Platform = p
	}
}

// WithLogger sets the logger receiving trial and lifecycle output.
func WithLogger(l *Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithObserver sets an additional observer for every trial event.
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		o.Observer = obs
	}
}

// WithWorkload sets how simulated work occupies a thread.
func WithWorkload(w Workload) Option {
	return func(o *Options) {
		o.Workload = w
	}
}

// WithSchedClass sets the real-time class every role is launched under.
func WithSchedClass(c SchedClass) Option {
	return func(o *Options) {
		o.Class = c
	}
}

// WithPriorities sets the base priority of each role.
func WithPriorities(holder, background, contender Priority) Option {
	return func(o *Options) {
		o.HolderPriority = holder
		o.BackgroundPriority = background
		o.ContenderPriority = contender
	}
}

// WithCeiling sets the ceiling priority of the resource.
func WithCeiling(p Priority) Option {
	return func(o *Options) {
		o.Ceiling = p
	}
}

// WithHolderWork sets the number and length of the holder's work units.
func WithHolderWork(units int, d time.Duration) Option {
	return func(o *Options) {
		o.HolderUnits = units
		o.HolderUnit = d
	}
}

// WithBackgroundWork sets the number and length of the background bursts.
func WithBackgroundWork(bursts int, d time.Duration) Option {
	return func(o *Options) {
		o.BackgroundBursts = bursts
		o.BackgroundBurst = d
	}
}

// WithContenderWork sets the length of the contender's single work unit.
func WithContenderWork(d time.Duration) Option {
	return func(o *Options) {
		o.ContenderUnit = d
	}
}

// WithStagger sets the minimum delay between starting the holder and starting
// the other roles.
func WithStagger(d time.Duration) Option {
	return func(o *Options) {
		o.Stagger = d
	}
}

// WithSettle sets the pause between consecutive trials.
func WithSettle(d time.Duration) Option {
	return func(o *Options) {
		o.Settle = d
	}
}

// WithRounds sets how many times every protocol is measured.
func WithRounds(n int) Option {
	return func(o *Options) {
		o.Rounds = n
	}
}

// WithMaxThreads caps the number of role threads a trial may run at once.
func WithMaxThreads(n int) Option {
	return func(o *Options) {
		o.MaxThreads = n
	}
}

// WithCPU pins every role thread to the given CPU once its real-time priority
// is in place. Roles that fell back to default scheduling stay unpinned.
func WithCPU(cpu int) Option {
	return func(o *Options) {
		o.CPU = cpu
	}
}

// WithFallback allows roles to run under default scheduling when real-time
// scheduling is refused.
func WithFallback(allow bool) Option {
	return func(o *Options) {
		o.AllowFallback = allow
	}
}
