package prioinv

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// ThreadState is the lifecycle state of a role thread.
type ThreadState int32

const (
	StateCreated ThreadState = iota
	StateRunning
	StateBlocked
	StateTerminated
)

func (s ThreadState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Thread is a role bound to a dedicated OS thread. Its effective priority may
// be raised above its base priority by the protocol of a [Resource] it holds.
type Thread struct {
	desc     LaunchDescriptor
	platform Platform

	// Written once by the thread itself before it touches any resource.
	tid      int
	realtime bool

	state     atomic.Int32
	effective atomic.Int64

	// Serializes priority changes so the last recorded effective priority is
	// always the one left applied.
	schedMu sync.Mutex
	applied Priority
}

// NewThread creates a [Thread] for the descriptor. The thread does not run
// until its role is started by a [Bench].
func NewThread(p Platform, desc LaunchDescriptor) *Thread {
	t := &Thread{
		desc:     desc,
		platform: p,
		applied:  desc.Priority,
	}
	t.effective.Store(int64(desc.Priority.Int()))
	return t
}

// Role returns the role the thread plays.
func (t *Thread) Role() Role { return t.desc.Role }

// Descriptor returns the launch descriptor of the thread.
func (t *Thread) Descriptor() LaunchDescriptor { return t.desc }

// Base returns the priority the thread was launched with.
func (t *Thread) Base() Priority { return t.desc.Priority }

// EffectivePriority returns the priority the thread currently schedules at,
// including any protocol boost.
func (t *Thread) EffectivePriority() Priority {
	return NewPriority(int(t.effective.Load()))
}

// State returns the lifecycle state of the thread.
func (t *Thread) State() ThreadState {
	return ThreadState(t.state.Load())
}

// ID returns the OS thread identity, or 0 before the thread starts.
func (t *Thread) ID() int { return t.tid }

// RealTime reports whether the launch descriptor was applied. A thread that
// fell back to default scheduling reports false.
func (t *Thread) RealTime() bool { return t.realtime }

func (t *Thread) setState(s ThreadState) {
	t.state.Store(int32(s))
}

func (t *Thread) setEffective(p Priority) {
	t.effective.Store(int64(p.Int()))
}

// start binds the calling goroutine to its OS thread for good and applies the
// launch descriptor. The goroutine is never unlocked, so the thread exits with
// it instead of returning to the runtime with a real-time priority.
func (t *Thread) start() error {
	runtime.LockOSThread()

	t.tid = t.platform.ThreadID()
	t.setState(StateRunning)

	// Priority before affinity, and no pinning without it: a default-scheduled
	// thread on a CPU held by a spinning real-time role does not run.
	if err := t.platform.SetScheduler(t.tid, t.desc.Class, t.desc.Priority); err != nil {
		return &SchedulingConfigError{Role: t.Role(), Class: t.desc.Class, Priority: t.Base(), Op: "apply", Err: err}
	}
	t.realtime = true

	if t.desc.CPU >= 0 {
		if err := t.platform.SetAffinity(t.tid, t.desc.CPU); err != nil {
			return &SchedulingConfigError{Role: t.Role(), Class: t.desc.Class, Priority: t.Base(), Op: "affinity", Err: err}
		}
	}
	return nil
}

// sync applies the current effective priority to the OS thread. Threads that
// fell back to default scheduling only track the value.
func (t *Thread) sync() error {
	t.schedMu.Lock()
	defer t.schedMu.Unlock()

	want := t.EffectivePriority()
	if want == t.applied {
		return nil
	}
	if t.realtime {
		if err := t.platform.SetScheduler(t.tid, t.desc.Class, want); err != nil {
			return &SchedulingConfigError{Role: t.Role(), Class: t.desc.Class, Priority: want, Op: "boost", Err: err}
		}
	}
	t.applied = want
	return nil
}
