package prioinv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// TimingSample is the measurement of one trial.
type TimingSample struct {
	Mode  ProtocolMode `json:"mode"`
	Round int          `json:"round"`

	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`

	// ContenderWait is how long the contender was blocked on the resource.
	ContenderWait time.Duration `json:"contender_wait"`

	// Degraded is set when any role ran without its requested scheduling.
	// Annotations say which and why.
	Degraded    bool     `json:"degraded"`
	Annotations []string `json:"annotations,omitempty"`
}

// Bench runs priority inversion trials. Every trial owns a fresh [Resource]
// and fresh role threads; nothing is shared between trials.
type Bench struct {
	opts   Options
	logger *Logger
}

// NewBench creates a new [Bench] with the given options applied on top of
// [DefaultOptions].
func NewBench(opts ...Option) *Bench {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Platform == nil {
		o.Platform = OSPlatform()
	}
	if o.Workload == nil {
		o.Workload = SpinWorkload{}
	}
	if o.Logger == nil {
		o.Logger = NoopLogger()
	}
	if o.Rounds <= 0 {
		o.Rounds = 1
	}

	return &Bench{
		opts:   o,
		logger: o.Logger,
	}
}

// Options returns the effective options of the bench.
func (b *Bench) Options() Options {
	return b.opts
}

// Run measures every protocol in the fixed order NoProtection,
// PriorityInheritance, PriorityCeiling, once per round, pausing between
// trials. The samples gathered before a failure are returned with the error.
// Cancelling ctx stops the run between trials, never inside one.
func (b *Bench) Run(ctx context.Context) ([]TimingSample, error) {
	var samples []TimingSample

	first := true
	for round := range b.opts.Rounds {
		for _, mode := range Modes() {
			if !first {
				if err := b.settle(ctx); err != nil {
					return samples, err
				}
			}
			first = false

			if err := ctx.Err(); err != nil {
				return samples, err
			}

			s, err := b.RunTrial(ctx, mode, round)
			if err != nil {
				return samples, fmt.Errorf("trial %s (round %d): %w", mode, round, err)
			}
			samples = append(samples, s)
		}
	}

	return samples, nil
}

func (b *Bench) settle(ctx context.Context) error {
	if b.opts.Settle <= 0 {
		return nil
	}

	timer := time.NewTimer(b.opts.Settle)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trial is the state of one running trial.
type trial struct {
	env *roleEnv

	mu            sync.Mutex
	annotations   []string
	contenderWait time.Duration
}

func (t *trial) annotate(format string, args ...any) {
	t.mu.Lock()
	t.annotations = append(t.annotations, fmt.Sprintf(format, args...))
	t.mu.Unlock()
}

// RunTrial runs one trial under mode. The holder is started first; the
// contender and background roles start only once the stagger has elapsed and
// the holder has reported the resource acquired. The end timestamp is taken
// after every role has been joined.
func (b *Bench) RunTrial(ctx context.Context, mode ProtocolMode, round int) (TimingSample, error) {
	sample := TimingSample{Mode: mode, Round: round}
	logger := b.logger.WithMode(mode).WithRound(round)

	threads, ceiling, err := b.threads()
	if err != nil {
		logger.LogTrialEnd(ctx, sample, err)
		return sample, err
	}

	res, err := Configure(b.opts.Platform, mode, ceiling,
		WithResourceObserver(MultiObserver(b.logger, b.opts.Observer)),
	)
	if err != nil {
		logger.LogTrialEnd(ctx, sample, err)
		return sample, err
	}

	tr := &trial{
		env: &roleEnv{
			res:      res,
			work:     b.opts.Workload,
			observer: MultiObserver(b.logger, b.opts.Observer),
			opts:     &b.opts,
		},
	}

	logger.LogTrialStart(ctx, ceiling)

	var g errgroup.Group
	g.SetLimit(b.opts.MaxThreads)

	acquired := make(chan struct{})
	holderDone := make(chan struct{})

	sample.Start = time.Now()

	holder := threads[RoleHolder]
	if err := b.launch(ctx, &g, tr, holder, holderDone, func() error {
		return runHolder(tr.env, holder, acquired)
	}); err != nil {
		err = errors.Join(err, g.Wait())
		logger.LogTrialEnd(ctx, sample, err)
		return sample, err
	}

	time.Sleep(b.opts.Stagger)

	select {
	case <-acquired:
	case <-holderDone:
		// A holder that already finished its work has acquired too.
		select {
		case <-acquired:
		default:
			err := g.Wait()
			if err == nil {
				err = &JoinError{Role: RoleHolder, Err: errors.New("terminated without acquiring the resource")}
			}
			logger.LogTrialEnd(ctx, sample, err)
			return sample, err
		}
	}

	contender := threads[RoleContender]
	launchErr := b.launch(ctx, &g, tr, contender, nil, func() error {
		waited, err := runContender(tr.env, contender)
		tr.mu.Lock()
		tr.contenderWait = waited
		tr.mu.Unlock()
		return err
	})

	background := threads[RoleBackground]
	launchErr = errors.Join(launchErr, b.launch(ctx, &g, tr, background, nil, func() error {
		return runBackground(tr.env, background)
	}))

	waitErr := g.Wait()
	sample.End = time.Now()
	sample.Duration = sample.End.Sub(sample.Start)

	if err := errors.Join(launchErr, waitErr, res.Err()); err != nil {
		logger.LogTrialEnd(ctx, sample, err)
		return sample, err
	}

	tr.mu.Lock()
	sample.ContenderWait = tr.contenderWait
	sample.Annotations = tr.annotations
	tr.mu.Unlock()
	sample.Degraded = len(sample.Annotations) > 0

	logger.LogTrialEnd(ctx, sample, nil)
	return sample, nil
}

// threads describes every role and computes the resource ceiling.
func (b *Bench) threads() (map[Role]*Thread, Priority, error) {
	prios := map[Role]Priority{
		RoleHolder:     b.opts.HolderPriority,
		RoleBackground: b.opts.BackgroundPriority,
		RoleContender:  b.opts.ContenderPriority,
	}

	threads := make(map[Role]*Thread, len(prios))
	var ceiling Priority
	for _, role := range Roles() {
		desc, err := Describe(b.opts.Platform, role, prios[role],
			WithClass(b.opts.Class),
			WithAffinity(b.opts.CPU),
		)
		if err != nil {
			return nil, Priority{}, err
		}
		threads[role] = NewThread(b.opts.Platform, desc)
	}

	// Only the roles that lock the resource bound the ceiling.
	lockers := []Role{RoleHolder, RoleContender}
	if b.opts.Ceiling == (Priority{}) {
		for _, role := range lockers {
			ceiling = ceiling.Max(prios[role])
		}
		return threads, ceiling, nil
	}

	for _, role := range lockers {
		if prios[role].Higher(b.opts.Ceiling) {
			return nil, Priority{}, fmt.Errorf("%w: %s below %s priority %s", ErrInvalidCeiling, b.opts.Ceiling, role, prios[role])
		}
	}
	ceiling = b.opts.Ceiling

	return threads, ceiling, nil
}

// launch starts a role on its own goroutine in g. Scheduling failures either
// abort the role or, when fallback is allowed, are recorded against the trial.
// done, if not nil, is closed when the role terminates for any reason.
func (b *Bench) launch(ctx context.Context, g *errgroup.Group, tr *trial, t *Thread, done chan struct{}, run func() error) error {
	ok := g.TryGo(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &JoinError{Role: t.Role(), Err: fmt.Errorf("panic: %v", r)}
			}
			t.setState(StateTerminated)
			if done != nil {
				close(done)
			}
		}()

		if err := t.start(); err != nil {
			if !b.opts.AllowFallback {
				return err
			}
			b.logger.LogDegraded(ctx, t.Role(), err)
			tr.annotate("%s ran under default scheduling: %v", t.Role(), err)
		}

		if err := run(); err != nil {
			return &JoinError{Role: t.Role(), Err: err}
		}
		return nil
	})
	if !ok {
		return &ThreadCreationError{Role: t.Role(), Err: fmt.Errorf("thread limit of %d reached", b.opts.MaxThreads)}
	}
	return nil
}
