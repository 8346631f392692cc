package prioinv

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPlatform is returned when the operating system offers no way
	// to control real-time scheduling of individual threads.
	ErrUnsupportedPlatform = errors.New("real-time thread scheduling not supported on this platform")

	// ErrInvalidCeiling is returned when a ceiling priority is outside the valid
	// range, or below a priority that will request the lock.
	ErrInvalidCeiling = errors.New("invalid ceiling priority")

	// ErrCeilingViolation is returned when a thread whose base priority exceeds
	// the resource ceiling attempts to lock it.
	ErrCeilingViolation = errors.New("thread priority exceeds resource ceiling")

	// ErrNotHolder is returned when a thread releases or mutates a resource it
	// does not hold.
	ErrNotHolder = errors.New("thread does not hold the resource")

	// ErrRecursiveLock is returned when the holder locks the resource again.
	ErrRecursiveLock = errors.New("resource already held by this thread")

	// ErrNoSamples is returned when a report is requested for no samples.
	ErrNoSamples = errors.New("no timing samples")
)

// SchedulingConfigError indicates that a real-time scheduling request could not
// be honoured, either because the priority is out of range for the class or
// because the caller lacks the privilege to request it.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type SchedulingConfigError struct {
	Role     Role
	Class    SchedClass
	Priority Priority
	Op       string
	Err      error
}

func (e *SchedulingConfigError) Error() string {
	msg := fmt.Sprintf("scheduling %s failed for %s (class %s, priority %s)", e.Op, e.Role, e.Class, e.Priority)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchedulingConfigError) Unwrap() error { return e.Err }

// UnsupportedProtocolError indicates that the platform cannot provide the
// requested lock protocol.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type UnsupportedProtocolError struct {
	Mode ProtocolMode
	Err  error
}

func (e *UnsupportedProtocolError) Error() string {
	msg := fmt.Sprintf("lock protocol %s unsupported", e.Mode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnsupportedProtocolError) Unwrap() error { return e.Err }

// ThreadCreationError indicates that a role thread could not be started.
type ThreadCreationError struct {
	Role Role
	Err  error
}

func (e *ThreadCreationError) Error() string {
	return fmt.Sprintf("starting %s thread: %v", e.Role, e.Err)
}

func (e *ThreadCreationError) Unwrap() error { return e.Err }

// JoinError indicates that a role thread terminated in an unexpected state.
type JoinError struct {
	Role Role
	Err  error
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("joining %s thread: %v", e.Role, e.Err)
}

func (e *JoinError) Unwrap() error { return e.Err }
