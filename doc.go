// Package prioinv implements a priority inversion benchmark harness.
//
// A trial starts three real-time threads that share one resource: a
// low-priority holder that takes the resource and keeps it through a long
// critical section, a high-priority contender that needs it briefly, and a
// medium-priority background thread that never touches it but competes for the
// CPU. The resource lock follows one of three protocols. Without protection the
// background thread may preempt the holder and so delay the contender
// indefinitely. Priority inheritance raises the holder to the contender's
// priority while the contender waits. Priority ceiling raises the holder to the
// resource ceiling from the moment it acquires the lock.
//
// A [Bench] runs one trial per protocol and [Summarize] compares their timings
// against the unprotected baseline. Real-time scheduling goes through a
// [Platform]; [OSPlatform] drives the Linux scheduler and
// [NewSimulatedPlatform] records scheduling changes in memory.
package prioinv
