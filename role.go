package prioinv

import (
	"fmt"
	"time"
)

// Role is the behaviour a thread plays in a trial.
type Role int

const (
	// RoleHolder takes the resource first at low priority and holds it for a
	// long critical section.
	RoleHolder Role = iota
	// RoleBackground never touches the resource; it only competes for the CPU
	// at medium priority.
	RoleBackground
	// RoleContender wants the resource briefly at high priority. Its blocked
	// time is the latency being measured.
	RoleContender
)

// Roles returns every role in launch order.
func Roles() []Role {
	return []Role{RoleHolder, RoleContender, RoleBackground}
}

func (r Role) String() string {
	switch r {
	case RoleHolder:
		return "holder"
	case RoleBackground:
		return "background"
	case RoleContender:
		return "contender"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// roleEnv is what a role entry point needs besides its own thread.
type roleEnv struct {
	res      *Resource
	work     Workload
	observer Observer
	opts     *Options
}

func (e *roleEnv) emit(t *Thread, kind EventKind, unit int) {
	if e.observer == nil {
		return
	}
	e.observer.Observe(Event{
		Kind:     kind,
		Role:     t.Role(),
		Thread:   t.ID(),
		Mode:     e.res.Mode(),
		Priority: t.EffectivePriority(),
		Unit:     unit,
		At:       time.Now(),
	})
}

// unit performs one work unit inside the critical section.
func (e *roleEnv) unit(t *Thread, i int, d time.Duration) error {
	e.emit(t, EventUnitStart, i)
	e.work.Work(d)
	err := e.res.Update(t, func(p *Payload) {
		p.Units++
		p.LastWriter = t.Role()
		p.Trace = append(p.Trace, t.Role())
	})
	if err != nil {
		return err
	}
	e.emit(t, EventUnitEnd, i)
	return nil
}

// runHolder locks the resource, signals acquired, then works through its units
// before releasing. The resource is released even if the workload panics.
func runHolder(e *roleEnv, t *Thread, acquired chan<- struct{}) error {
	e.emit(t, EventStart, 0)

	if err := e.res.Lock(t); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	held := true
	defer func() {
		if held {
			_ = e.res.Unlock(t)
		}
	}()
	close(acquired)

	for i := range e.opts.HolderUnits {
		if err := e.unit(t, i, e.opts.HolderUnit); err != nil {
			return err
		}
	}

	held = false
	if err := e.res.Unlock(t); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	e.emit(t, EventFinish, 0)
	return nil
}

// runBackground burns through its bursts without touching the resource.
func runBackground(e *roleEnv, t *Thread) error {
	e.emit(t, EventStart, 0)
	for range e.opts.BackgroundBursts {
		e.work.Work(e.opts.BackgroundBurst)
	}
	e.emit(t, EventFinish, 0)
	return nil
}

// runContender locks the resource, does one short unit and releases. It
// returns how long it was blocked before acquiring.
func runContender(e *roleEnv, t *Thread) (time.Duration, error) {
	e.emit(t, EventStart, 0)

	begin := time.Now()
	if err := e.res.Lock(t); err != nil {
		return 0, fmt.Errorf("lock: %w", err)
	}
	waited := time.Since(begin)
	held := true
	defer func() {
		if held {
			_ = e.res.Unlock(t)
		}
	}()

	if err := e.unit(t, 0, e.opts.ContenderUnit); err != nil {
		return waited, err
	}

	held = false
	if err := e.res.Unlock(t); err != nil {
		return waited, fmt.Errorf("unlock: %w", err)
	}
	e.emit(t, EventFinish, 0)
	return waited, nil
}
