package prioinv

import (
	"fmt"
	"sync"
	"time"
)

// EventKind identifies a lifecycle or lock event.
type EventKind int

const (
	EventStart EventKind = iota
	EventWait
	EventAcquire
	EventRelease
	EventUnitStart
	EventUnitEnd
	EventBoost
	EventRestore
	EventFinish
)

var strEventMap = map[EventKind]string{
	EventStart:     "start",
	EventWait:      "wait",
	EventAcquire:   "acquire",
	EventRelease:   "release",
	EventUnitStart: "unit-start",
	EventUnitEnd:   "unit-end",
	EventBoost:     "boost",
	EventRestore:   "restore",
	EventFinish:    "finish",
}

func (k EventKind) String() string {
	if s, ok := strEventMap[k]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is a single observation emitted by a role thread or a [Resource].
type Event struct {
	Kind   EventKind
	Role   Role
	Thread int
	Mode   ProtocolMode

	// Priority is the effective priority of the thread when the event fired.
	Priority Priority

	// From and To are set for boost and restore events.
	From, To Priority

	// Unit is the work unit index for unit events.
	Unit int

	At time.Time
}

// Observer receives events. Lock events are delivered while the resource's
// internal state is locked, so they arrive in a total order; implementations
// must be quick and must not call back into the resource.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to an [Observer].
type ObserverFunc func(ev Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

type multiObserver []Observer

func (m multiObserver) Observe(ev Event) {
	for _, o := range m {
		o.Observe(ev)
	}
}

// MultiObserver fans events out to every non-nil observer.
func MultiObserver(obs ...Observer) Observer {
	m := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

// Recorder is an [Observer] that keeps every event in arrival order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Observe(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns the number of recorded events of the kind for the role.
func (r *Recorder) Count(kind EventKind, role Role) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind && ev.Role == role {
			n++
		}
	}
	return n
}

// CheckMutualExclusion verifies that acquire and release events alternate,
// that is, no thread acquired the resource while another held it.
func (r *Recorder) CheckMutualExclusion() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	holding := false
	var holder Role
	for i, ev := range r.events {
		switch ev.Kind {
		case EventAcquire:
			if holding {
				return fmt.Errorf("event %d: %s acquired while %s held the resource", i, ev.Role, holder)
			}
			holding, holder = true, ev.Role
		case EventRelease:
			if !holding || holder != ev.Role {
				return fmt.Errorf("event %d: %s released a resource it did not hold", i, ev.Role)
			}
			holding = false
		}
	}
	return nil
}
