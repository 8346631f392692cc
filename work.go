package prioinv

import "time"

// Workload occupies the calling thread for a bounded duration. It stands in
// for the work done inside and outside the critical section.
type Workload interface {
	Work(d time.Duration)
}

// SpinWorkload keeps the CPU busy until the duration has elapsed. It is the
// workload that actually competes for the processor, which is what makes an
// inversion visible.
type SpinWorkload struct{}

func (SpinWorkload) Work(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}

// SleepWorkload pauses the thread for the duration without using the CPU.
// Under a fake clock it makes trial timings exact.
type SleepWorkload struct{}

func (SleepWorkload) Work(d time.Duration) {
	time.Sleep(d)
}

// WorkloadFunc adapts a function to a [Workload].
type WorkloadFunc func(d time.Duration)

func (f WorkloadFunc) Work(d time.Duration) { f(d) }
