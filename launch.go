package prioinv

import "fmt"

// SchedClass is an operating system scheduling class.
type SchedClass int

const (
	// ClassOther is the default time-sharing class. It carries no real-time
	// priority and is only used when a real-time request falls back.
	ClassOther SchedClass = iota
	// ClassFIFO is fixed-priority preemptive scheduling, first-in-first-out
	// among threads of equal priority.
	ClassFIFO
	// ClassRR is fixed-priority preemptive scheduling with round-robin time
	// slicing among threads of equal priority.
	ClassRR
)

func (c SchedClass) String() string {
	switch c {
	case ClassOther:
		return "OTHER"
	case ClassFIFO:
		return "FIFO"
	case ClassRR:
		return "RR"
	default:
		return "UNKNOWN"
	}
}

// RealTime reports whether the class schedules by fixed priority.
func (c SchedClass) RealTime() bool {
	return c == ClassFIFO || c == ClassRR
}

// LaunchDescriptor is the scheduling configuration applied to a role thread
// before its entry behaviour runs.
type LaunchDescriptor struct {
	Role     Role
	Class    SchedClass
	Priority Priority

	// Inherit is always false for descriptors built by [Describe]: the thread
	// never inherits the scheduling attributes of its creator.
	Inherit bool

	// CPU pins the thread to a single processor when non-negative.
	CPU int
}

// LaunchOption configures a [LaunchDescriptor].
type LaunchOption func(*LaunchDescriptor)

// WithClass overrides the default FIFO scheduling class.
func WithClass(c SchedClass) LaunchOption {
	return func(d *LaunchDescriptor) {
		d.Class = c
	}
}

// WithAffinity pins the thread to the given CPU. A negative value leaves the
// affinity untouched.
func WithAffinity(cpu int) LaunchOption {
	return func(d *LaunchDescriptor) {
		d.CPU = cpu
	}
}

// Describe builds the launch descriptor for a role at the given priority. The
// priority is validated against the range the platform reports for the class.
func Describe(p Platform, role Role, prio Priority, opts ...LaunchOption) (LaunchDescriptor, error) {
	d := LaunchDescriptor{
		Role:     role,
		Class:    ClassFIFO,
		Priority: prio,
		CPU:      -1,
	}
	for _, opt := range opts {
		opt(&d)
	}

	lo, hi, err := p.PriorityRange(d.Class)
	if err != nil {
		return LaunchDescriptor{}, &SchedulingConfigError{Role: role, Class: d.Class, Priority: prio, Op: "describe", Err: err}
	}
	if prio.Higher(hi) || lo.Higher(prio) {
		return LaunchDescriptor{}, &SchedulingConfigError{
			Role:     role,
			Class:    d.Class,
			Priority: prio,
			Op:       "describe",
			Err:      fmt.Errorf("priority outside range [%s, %s]", lo, hi),
		}
	}

	return d, nil
}
