package prioinv

import (
	"fmt"
	"os"
	"sync"
)

// SimulatedPlatform is an in-memory [Platform]. It hands out synthetic thread
// identities and records every scheduling change so that boosts can be
// inspected without privileges. It never affects the real scheduler.
type SimulatedPlatform struct {
	mu      sync.Mutex
	nextID  int
	threads map[int]*simThread

	lo, hi      Priority
	denied      bool
	unsupported map[ProtocolMode]bool
}

type simThread struct {
	class   SchedClass
	prio    Priority
	cpu     int
	history []Priority
}

// SimOption configures a [SimulatedPlatform].
type SimOption func(*SimulatedPlatform)

// WithPriorityRange sets the real-time priority range the platform reports.
func WithPriorityRange(lo, hi Priority) SimOption {
	return func(p *SimulatedPlatform) {
		p.lo, p.hi = lo, hi
	}
}

// WithDeniedScheduling makes every real-time request fail with a permission
// error, as it would for an unprivileged process.
func WithDeniedScheduling() SimOption {
	return func(p *SimulatedPlatform) {
		p.denied = true
	}
}

// WithoutProtocol makes the platform report the protocol as unavailable.
func WithoutProtocol(mode ProtocolMode) SimOption {
	return func(p *SimulatedPlatform) {
		p.unsupported[mode] = true
	}
}

// NewSimulatedPlatform creates a new [SimulatedPlatform] with the given
// options. By default it accepts priorities 1..99 like Linux.
func NewSimulatedPlatform(opts ...SimOption) *SimulatedPlatform {
	p := &SimulatedPlatform{
		nextID:      1,
		threads:     make(map[int]*simThread),
		lo:          NewPriority(1),
		hi:          NewPriority(99),
		unsupported: make(map[ProtocolMode]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SimulatedPlatform) PriorityRange(c SchedClass) (Priority, Priority, error) {
	if c.RealTime() {
		return p.lo, p.hi, nil
	}
	return NewPriority(0), NewPriority(0), nil
}

// ThreadID returns a fresh synthetic identity on every call.
func (p *SimulatedPlatform) ThreadID() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.threads[id] = &simThread{class: ClassOther, cpu: -1}
	return id
}

func (p *SimulatedPlatform) SetScheduler(tid int, c SchedClass, prio Priority) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.threads[tid]
	if !ok {
		return fmt.Errorf("simulated thread %d: %w", tid, os.ErrNotExist)
	}
	if p.denied && c.RealTime() {
		return fmt.Errorf("simulated thread %d: %w", tid, os.ErrPermission)
	}

	t.class = c
	t.prio = prio
	t.history = append(t.history, prio)
	return nil
}

func (p *SimulatedPlatform) GetScheduler(tid int) (SchedClass, Priority, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.threads[tid]
	if !ok {
		return ClassOther, Priority{}, fmt.Errorf("simulated thread %d: %w", tid, os.ErrNotExist)
	}
	return t.class, t.prio, nil
}

func (p *SimulatedPlatform) SetAffinity(tid int, cpu int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.threads[tid]
	if !ok {
		return fmt.Errorf("simulated thread %d: %w", tid, os.ErrNotExist)
	}
	t.cpu = cpu
	return nil
}

func (p *SimulatedPlatform) Supports(mode ProtocolMode) error {
	if !mode.IsValid() || p.unsupported[mode] {
		return &UnsupportedProtocolError{Mode: mode}
	}
	return nil
}

// History returns every priority applied to the thread, in order.
func (p *SimulatedPlatform) History(tid int) []Priority {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.threads[tid]
	if !ok {
		return nil
	}
	return append([]Priority(nil), t.history...)
}

// Affinity returns the CPU the thread was pinned to, or -1.
func (p *SimulatedPlatform) Affinity(tid int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.threads[tid]; ok {
		return t.cpu
	}
	return -1
}
