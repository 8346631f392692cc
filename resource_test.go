package prioinv

import (
	"errors"
	"sync"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newThread(t *testing.T, p Platform, role Role, prio Priority) *Thread {
	t.Helper()

	desc, err := Describe(p, role, prio)
	require.NoError(t, err)
	return NewThread(p, desc)
}

// holdResource starts th on its own goroutine, locks res and keeps it until
// release is closed. The returned channel is closed once the thread is done.
func holdResource(t *testing.T, res *Resource, th *Thread, release <-chan struct{}) (locked, done <-chan struct{}) {
	t.Helper()

	lockedCh, doneCh := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(doneCh)
		assert.NoError(t, th.start())
		assert.NoError(t, res.Lock(th))
		close(lockedCh)
		<-release
		assert.NoError(t, res.Unlock(th))
	}()
	return lockedCh, doneCh
}

// contend starts th on its own goroutine and locks and releases res once.
func contend(t *testing.T, res *Resource, th *Thread) <-chan struct{} {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, th.start())
		assert.NoError(t, res.Lock(th))
		assert.NoError(t, res.Unlock(th))
	}()
	return done
}

func TestConfigure(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		platform    Platform
		mode        ProtocolMode
		ceiling     Priority
		wantErr     error
		unsupported bool
	}{
		"no protection": {
			platform: NewSimulatedPlatform(),
			mode:     NoProtection,
			ceiling:  Priorities.High,
		},
		"inheritance": {
			platform: NewSimulatedPlatform(),
			mode:     PriorityInheritance,
			ceiling:  Priorities.High,
		},
		"ceiling": {
			platform: NewSimulatedPlatform(),
			mode:     PriorityCeiling,
			ceiling:  Priorities.High,
		},
		"ceiling above range": {
			platform: NewSimulatedPlatform(),
			mode:     PriorityCeiling,
			ceiling:  NewPriority(100),
			wantErr:  ErrInvalidCeiling,
		},
		"ceiling unset": {
			platform: NewSimulatedPlatform(),
			mode:     PriorityCeiling,
			wantErr:  ErrInvalidCeiling,
		},
		"protocol unavailable": {
			platform:    NewSimulatedPlatform(WithoutProtocol(PriorityInheritance)),
			mode:        PriorityInheritance,
			ceiling:     Priorities.High,
			unsupported: true,
		},
		"unknown protocol": {
			platform:    NewSimulatedPlatform(),
			mode:        ProtocolMode(7),
			ceiling:     Priorities.High,
			unsupported: true,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res, err := Configure(tt.platform, tt.mode, tt.ceiling)

			switch {
			case tt.unsupported:
				var upe *UnsupportedProtocolError
				require.ErrorAs(t, err, &upe)
				assert.Equal(t, tt.mode, upe.Mode)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.mode, res.Mode())
				assert.Equal(t, tt.ceiling, res.Ceiling())
				assert.Nil(t, res.Holder())
			}
		})
	}
}

func TestResource_PriorityInheritance(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		p := NewSimulatedPlatform()
		rec := &Recorder{}
		res, err := Configure(p, PriorityInheritance, Priorities.High, WithResourceObserver(rec))
		require.NoError(t, err)

		holder := newThread(t, p, RoleHolder, Priorities.Low)
		contender := newThread(t, p, RoleContender, Priorities.High)

		release := make(chan struct{})
		locked, holderDone := holdResource(t, res, holder, release)
		<-locked

		// No boost before anyone waits.
		assert.Equal(t, Priorities.Low, holder.EffectivePriority())

		contenderDone := contend(t, res, contender)
		synctest.Wait()

		assert.Equal(t, 1, res.Waiters())
		assert.Equal(t, StateBlocked, contender.State())
		assert.Equal(t, Priorities.High, holder.EffectivePriority())

		close(release)
		<-holderDone
		<-contenderDone

		assert.Equal(t, Priorities.Low, holder.EffectivePriority())
		assert.Equal(t, []Priority{Priorities.Low, Priorities.High, Priorities.Low}, p.History(holder.ID()))
		assert.Equal(t, []Priority{Priorities.High}, p.History(contender.ID()))
		assert.NoError(t, rec.CheckMutualExclusion())
		assert.NoError(t, res.Err())
	})
}

func TestResource_PriorityCeiling(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		p := NewSimulatedPlatform()
		rec := &Recorder{}
		ceiling := NewPriority(40)
		res, err := Configure(p, PriorityCeiling, ceiling, WithResourceObserver(rec))
		require.NoError(t, err)

		holder := newThread(t, p, RoleHolder, Priorities.Low)
		contender := newThread(t, p, RoleContender, Priorities.High)

		release := make(chan struct{})
		locked, holderDone := holdResource(t, res, holder, release)
		<-locked

		// Boosted at acquisition, with nothing waiting.
		assert.Equal(t, 0, res.Waiters())
		assert.Equal(t, ceiling, holder.EffectivePriority())

		contenderDone := contend(t, res, contender)
		synctest.Wait()
		assert.Equal(t, ceiling, holder.EffectivePriority())

		close(release)
		<-holderDone
		<-contenderDone

		assert.Equal(t, Priorities.Low, holder.EffectivePriority())
		assert.Equal(t, Priorities.High, contender.EffectivePriority())
		assert.Equal(t, []Priority{Priorities.Low, ceiling, Priorities.Low}, p.History(holder.ID()))
		assert.Equal(t, []Priority{Priorities.High, ceiling, Priorities.High}, p.History(contender.ID()))
		assert.NoError(t, rec.CheckMutualExclusion())
		assert.Equal(t, 2, rec.Count(EventBoost, RoleHolder)+rec.Count(EventBoost, RoleContender))
	})
}

func TestResource_NoProtection(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		p := NewSimulatedPlatform()
		rec := &Recorder{}
		res, err := Configure(p, NoProtection, Priorities.High, WithResourceObserver(rec))
		require.NoError(t, err)

		holder := newThread(t, p, RoleHolder, Priorities.Low)
		contender := newThread(t, p, RoleContender, Priorities.High)

		release := make(chan struct{})
		locked, holderDone := holdResource(t, res, holder, release)
		<-locked

		contenderDone := contend(t, res, contender)
		synctest.Wait()
		assert.Equal(t, Priorities.Low, holder.EffectivePriority())

		close(release)
		<-holderDone
		<-contenderDone

		assert.Equal(t, []Priority{Priorities.Low}, p.History(holder.ID()))
		assert.Zero(t, rec.Count(EventBoost, RoleHolder))
		assert.NoError(t, rec.CheckMutualExclusion())
	})
}

func TestResource_HandOffOrder(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		p := NewSimulatedPlatform()
		rec := &Recorder{}
		res, err := Configure(p, PriorityInheritance, Priorities.High, WithResourceObserver(rec))
		require.NoError(t, err)

		holder := newThread(t, p, RoleHolder, NewPriority(5))
		release := make(chan struct{})
		locked, holderDone := holdResource(t, res, holder, release)
		<-locked

		// Queue waiters one at a time so arrival order is fixed.
		waiters := []struct {
			role Role
			prio Priority
		}{
			{RoleBackground, Priorities.Low},
			{RoleContender, Priorities.High},
			{RoleHolder, Priorities.Medium},
		}
		var done []<-chan struct{}
		for _, w := range waiters {
			done = append(done, contend(t, res, newThread(t, p, w.role, w.prio)))
			synctest.Wait()
		}
		assert.Equal(t, 3, res.Waiters())
		assert.Equal(t, Priorities.High, holder.EffectivePriority())

		close(release)
		<-holderDone
		for _, d := range done {
			<-d
		}

		var acquired []Priority
		for _, ev := range rec.Events() {
			if ev.Kind == EventAcquire {
				acquired = append(acquired, ev.Priority)
			}
		}
		// Waiters are served most urgent first.
		want := []Priority{NewPriority(5), Priorities.High, Priorities.Medium, Priorities.Low}
		assert.Equal(t, want, acquired)
		assert.NoError(t, rec.CheckMutualExclusion())
	})
}

func TestResource_MutualExclusion(t *testing.T) {
	t.Parallel()

	for _, mode := range Modes() {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()

			p := NewSimulatedPlatform()
			rec := &Recorder{}
			res, err := Configure(p, mode, NewPriority(50), WithResourceObserver(rec))
			require.NoError(t, err)

			const numThreads = 8
			const numIterations = 50

			var wg sync.WaitGroup
			for i := range numThreads {
				th := NewThread(p, LaunchDescriptor{Role: Role(i % 3), Class: ClassFIFO, Priority: NewPriority(10 + i*5), CPU: -1})
				wg.Go(func() {
					for range numIterations {
						if !assert.NoError(t, res.Lock(th)) {
							return
						}
						assert.NoError(t, res.Update(th, func(p *Payload) { p.Units++ }))
						assert.NoError(t, res.Unlock(th))
					}
				})
			}
			wg.Wait()

			assert.NoError(t, rec.CheckMutualExclusion())
			assert.Equal(t, numThreads*numIterations, res.Snapshot().Units)
			assert.Nil(t, res.Holder())
		})
	}
}

func TestResource_Misuse(t *testing.T) {
	t.Parallel()

	p := NewSimulatedPlatform()
	res, err := Configure(p, PriorityCeiling, Priorities.Medium)
	require.NoError(t, err)

	low := newThread(t, p, RoleHolder, Priorities.Low)
	high := newThread(t, p, RoleContender, Priorities.High)

	t.Run("unlock without holding", func(t *testing.T) {
		assert.ErrorIs(t, res.Unlock(low), ErrNotHolder)
	})

	t.Run("update without holding", func(t *testing.T) {
		assert.ErrorIs(t, res.Update(low, func(*Payload) {}), ErrNotHolder)
	})

	t.Run("lock above ceiling", func(t *testing.T) {
		assert.ErrorIs(t, res.Lock(high), ErrCeilingViolation)
	})

	t.Run("recursive lock", func(t *testing.T) {
		require.NoError(t, res.Lock(low))
		assert.ErrorIs(t, res.Lock(low), ErrRecursiveLock)
		require.NoError(t, res.Unlock(low))
	})
}

func TestResource_Payload(t *testing.T) {
	t.Parallel()

	p := NewSimulatedPlatform()
	res, err := Configure(p, NoProtection, Priorities.High)
	require.NoError(t, err)

	th := newThread(t, p, RoleContender, Priorities.High)
	require.NoError(t, res.Lock(th))
	require.NoError(t, res.Update(th, func(p *Payload) {
		p.Units = 3
		p.LastWriter = RoleContender
		p.Trace = append(p.Trace, RoleContender)
	}))
	require.NoError(t, res.Unlock(th))

	snap := res.Snapshot()
	assert.Equal(t, Payload{Units: 3, LastWriter: RoleContender, Trace: []Role{RoleContender}}, snap)

	// The snapshot is a copy.
	snap.Trace[0] = RoleHolder
	assert.Equal(t, []Role{RoleContender}, res.Snapshot().Trace)
}

// boostRefusingPlatform accepts the launch priority of every thread but refuses
// any later change.
type boostRefusingPlatform struct {
	*SimulatedPlatform

	mu   sync.Mutex
	seen map[int]bool
}

func (p *boostRefusingPlatform) SetScheduler(tid int, c SchedClass, prio Priority) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seen[tid] {
		return errors.New("refused")
	}
	p.seen[tid] = true
	return p.SimulatedPlatform.SetScheduler(tid, c, prio)
}

func TestResource_BoostFailure(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		p := &boostRefusingPlatform{SimulatedPlatform: NewSimulatedPlatform(), seen: make(map[int]bool)}
		res, err := Configure(p, PriorityCeiling, Priorities.High)
		require.NoError(t, err)

		holder := newThread(t, p, RoleHolder, Priorities.Low)
		release := make(chan struct{})
		locked, done := holdResource(t, res, holder, release)
		<-locked
		close(release)
		<-done

		var sce *SchedulingConfigError
		require.ErrorAs(t, res.Err(), &sce)
		assert.Equal(t, "boost", sce.Op)
		assert.Equal(t, RoleHolder, sce.Role)
		assert.Equal(t, Priorities.High, sce.Priority)
	})
}

func BenchmarkResource_LockUnlock(b *testing.B) {
	for _, mode := range Modes() {
		b.Run(mode.String(), func(b *testing.B) {
			p := NewSimulatedPlatform()
			res, err := Configure(p, mode, Priorities.High)
			if err != nil {
				b.Fatal(err)
			}
			th := NewThread(p, LaunchDescriptor{Role: RoleHolder, Class: ClassFIFO, Priority: Priorities.Low, CPU: -1})

			b.ReportAllocs()
			b.ResetTimer()

			for range b.N {
				_ = res.Lock(th)
				_ = res.Unlock(th)
			}
		})
	}
}
