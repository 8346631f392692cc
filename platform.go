package prioinv

// Platform is the operating system surface the benchmark schedules through.
// Implementations must be safe for concurrent use.
type Platform interface {
	// PriorityRange returns the inclusive range of priorities the class
	// accepts.
	PriorityRange(c SchedClass) (lo, hi Priority, err error)

	// ThreadID returns the identity of the calling OS thread. Callers must
	// have locked their goroutine to the thread beforehand.
	ThreadID() int

	// SetScheduler applies a scheduling class and priority to a thread.
	SetScheduler(tid int, c SchedClass, p Priority) error

	// GetScheduler reads back the scheduling class and priority of a thread.
	GetScheduler(tid int) (SchedClass, Priority, error)

	// SetAffinity pins a thread to a single CPU.
	SetAffinity(tid int, cpu int) error

	// Supports reports whether the lock protocol can be honoured. It returns
	// nil or an [*UnsupportedProtocolError].
	Supports(mode ProtocolMode) error
}
