package prioinv

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Payload is the state guarded by a [Resource]. It is only mutated by the
// thread holding the resource.
type Payload struct {
	Units      int
	LastWriter Role
	Trace      []Role
}

// Resource is a shared resource whose lock follows a [ProtocolMode]. A lock
// that is released is handed directly to the most urgent waiter.
//
// Priority changes required by the protocol are recorded under the internal
// mutex and applied to the OS threads after it is released. Failures to apply
// a change do not fail Lock or Unlock; they are collected and reported by
// [Resource.Err].
type Resource struct {
	mode     ProtocolMode
	ceiling  Priority
	observer Observer

	mu      sync.Mutex
	holder  *Thread
	waiters waitQueue
	payload Payload
	errs    []error
}

// ResourceOption configures a [Resource].
type ResourceOption func(*Resource)

// WithResourceObserver sets the observer receiving lock events.
func WithResourceObserver(o Observer) ResourceOption {
	return func(r *Resource) {
		r.observer = o
	}
}

// Configure creates a [Resource] whose lock follows mode. The platform is
// asked whether it can honour the protocol; an unavailable protocol is an
// [*UnsupportedProtocolError] and never a silent downgrade. The ceiling must
// be a valid real-time priority when mode is [PriorityCeiling].
func Configure(p Platform, mode ProtocolMode, ceiling Priority, opts ...ResourceOption) (*Resource, error) {
	if err := p.Supports(mode); err != nil {
		var upe *UnsupportedProtocolError
		if !errors.As(err, &upe) {
			err = &UnsupportedProtocolError{Mode: mode, Err: err}
		}
		return nil, err
	}

	if mode == PriorityCeiling {
		lo, hi, err := p.PriorityRange(ClassFIFO)
		if err != nil {
			return nil, &UnsupportedProtocolError{Mode: mode, Err: err}
		}
		if ceiling.Higher(hi) || lo.Higher(ceiling) {
			return nil, fmt.Errorf("%w: %s outside [%s, %s]", ErrInvalidCeiling, ceiling, lo, hi)
		}
	}

	r := &Resource{
		mode:    mode,
		ceiling: ceiling,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Mode returns the protocol of the resource lock.
func (r *Resource) Mode() ProtocolMode { return r.mode }

// Ceiling returns the configured ceiling priority.
func (r *Resource) Ceiling() Priority { return r.ceiling }

// Holder returns the thread holding the resource, or nil.
func (r *Resource) Holder() *Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.holder
}

// Waiters returns the number of threads blocked on the resource.
func (r *Resource) Waiters() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiters.Len()
}

// Lock acquires the resource for t, blocking while another thread holds it.
// There is no timeout.
func (r *Resource) Lock(t *Thread) error {
	if r.mode == PriorityCeiling && t.Base().Higher(r.ceiling) {
		return fmt.Errorf("%w: %s at %s, ceiling %s", ErrCeilingViolation, t.Role(), t.Base(), r.ceiling)
	}

	r.mu.Lock()
	if r.holder == t {
		r.mu.Unlock()
		return ErrRecursiveLock
	}

	if r.holder == nil {
		changed := r.grant(t)
		r.mu.Unlock()
		r.apply(changed...)
		return nil
	}

	w := r.waiters.enqueue(t)
	t.setState(StateBlocked)
	r.emit(t, EventWait)

	var changed []*Thread
	if r.mode == PriorityInheritance {
		changed = r.inherit()
	}
	r.mu.Unlock()
	r.apply(changed...)

	<-w.grantedCh
	t.setState(StateRunning)
	return nil
}

// Unlock releases the resource held by t. Any boost t received is revoked and
// the most urgent waiter, if any, becomes the holder.
func (r *Resource) Unlock(t *Thread) error {
	r.mu.Lock()
	if r.holder != t {
		r.mu.Unlock()
		return ErrNotHolder
	}

	restored := r.setEffective(t, t.Base())
	r.emit(t, EventRelease)
	r.holder = nil

	var changed []*Thread
	next := r.waiters.dequeue()
	if next != nil {
		changed = r.grant(next.thread)
	}
	r.mu.Unlock()

	// Boost the new holder before waking it, and give up our own boost last so
	// that we cannot be preempted with the hand-off still pending.
	r.apply(changed...)
	if next != nil {
		close(next.grantedCh)
	}
	r.apply(restored...)
	return nil
}

// Update mutates the payload on behalf of the holder.
func (r *Resource) Update(t *Thread, fn func(p *Payload)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.holder != t {
		return ErrNotHolder
	}
	fn(&r.payload)
	return nil
}

// Snapshot returns a copy of the payload.
func (r *Resource) Snapshot() Payload {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.payload
	p.Trace = append([]Role(nil), r.payload.Trace...)
	return p
}

// Err returns the failures collected while applying protocol priority changes.
func (r *Resource) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.errs...)
}

// grant makes t the holder. Callers must hold r.mu.
func (r *Resource) grant(t *Thread) []*Thread {
	r.holder = t

	var changed []*Thread
	switch r.mode {
	case PriorityCeiling:
		changed = r.setEffective(t, r.ceiling)
	case PriorityInheritance:
		changed = r.inherit()
	}

	r.emit(t, EventAcquire)
	return changed
}

// inherit raises the holder to the most urgent waiter. Callers must hold r.mu.
func (r *Resource) inherit() []*Thread {
	if r.holder == nil {
		return nil
	}

	target := r.holder.Base()
	if w := r.waiters.peek(); w != nil {
		target = target.Max(w.priority)
	}
	return r.setEffective(r.holder, target)
}

// setEffective records a new effective priority. Callers must hold r.mu.
func (r *Resource) setEffective(t *Thread, p Priority) []*Thread {
	from := t.EffectivePriority()
	if from == p {
		return nil
	}
	t.setEffective(p)

	kind := EventBoost
	if p == t.Base() {
		kind = EventRestore
	}
	if r.observer != nil {
		r.observer.Observe(Event{
			Kind:     kind,
			Role:     t.Role(),
			Thread:   t.ID(),
			Mode:     r.mode,
			Priority: p,
			From:     from,
			To:       p,
			At:       time.Now(),
		})
	}
	return []*Thread{t}
}

func (r *Resource) apply(threads ...*Thread) {
	for _, t := range threads {
		if err := t.sync(); err != nil {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		}
	}
}

func (r *Resource) emit(t *Thread, kind EventKind) {
	if r.observer == nil {
		return
	}
	r.observer.Observe(Event{
		Kind:     kind,
		Role:     t.Role(),
		Thread:   t.ID(),
		Mode:     r.mode,
		Priority: t.EffectivePriority(),
		At:       time.Now(),
	})
}
