//go:build linux

package prioinv

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Linux exposes 1..99 for both real-time policies.
const (
	linuxMinRealTime = 1
	linuxMaxRealTime = 99
)

type osPlatform struct{}

// OSPlatform returns the [Platform] backed by the running kernel. Real-time
// requests usually need CAP_SYS_NICE or an RLIMIT_RTPRIO allowance.
func OSPlatform() Platform {
	return osPlatform{}
}

func (osPlatform) PriorityRange(c SchedClass) (Priority, Priority, error) {
	switch c {
	case ClassFIFO, ClassRR:
		return NewPriority(linuxMinRealTime), NewPriority(linuxMaxRealTime), nil
	case ClassOther:
		return NewPriority(0), NewPriority(0), nil
	default:
		return Priority{}, Priority{}, fmt.Errorf("unknown scheduling class %d", c)
	}
}

func (osPlatform) ThreadID() int {
	return unix.Gettid()
}

func (osPlatform) SetScheduler(tid int, c SchedClass, p Priority) error {
	policy, err := linuxPolicy(c)
	if err != nil {
		return err
	}

	attr := &unix.SchedAttr{
		Policy:   policy,
		Priority: uint32(p.Int()),
	}
	if err := unix.SchedSetAttr(tid, attr, 0); err != nil {
		return fmt.Errorf("sched_setattr(%d): %w", tid, err)
	}
	return nil
}

func (osPlatform) GetScheduler(tid int) (SchedClass, Priority, error) {
	attr, err := unix.SchedGetAttr(tid, 0)
	if err != nil {
		return ClassOther, Priority{}, fmt.Errorf("sched_getattr(%d): %w", tid, err)
	}

	var c SchedClass
	switch attr.Policy {
	case unix.SCHED_FIFO:
		c = ClassFIFO
	case unix.SCHED_RR:
		c = ClassRR
	default:
		c = ClassOther
	}
	return c, NewPriority(int(attr.Priority)), nil
}

func (osPlatform) SetAffinity(tid int, cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(tid, &set); err != nil {
		return fmt.Errorf("sched_setaffinity(%d, cpu %d): %w", tid, cpu, err)
	}
	return nil
}

// Supports reports every protocol as available. Inheritance and ceiling boosts
// are applied with sched_setattr on the holder's thread, which Linux allows for
// any thread of the process.
func (osPlatform) Supports(mode ProtocolMode) error {
	if !mode.IsValid() {
		return &UnsupportedProtocolError{Mode: mode}
	}
	return nil
}

func linuxPolicy(c SchedClass) (uint32, error) {
	switch c {
	case ClassFIFO:
		return unix.SCHED_FIFO, nil
	case ClassRR:
		return unix.SCHED_RR, nil
	case ClassOther:
		return unix.SCHED_NORMAL, nil
	default:
		return 0, fmt.Errorf("unknown scheduling class %d", c)
	}
}
