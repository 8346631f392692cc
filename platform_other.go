//go:build !linux

package prioinv

type osPlatform struct{}

// OSPlatform returns the [Platform] backed by the running kernel. Only Linux
// exposes per-thread real-time scheduling; everywhere else every scheduling
// request fails with [ErrUnsupportedPlatform].
func OSPlatform() Platform {
	return osPlatform{}
}

// Nominal range reported so that descriptors validate and the refusal comes
// from SetScheduler, where fallback can take over.
const (
	nominalMinRealTime = 1
	nominalMaxRealTime = 99
)

func (osPlatform) PriorityRange(c SchedClass) (Priority, Priority, error) {
	switch c {
	case ClassFIFO, ClassRR:
		return NewPriority(nominalMinRealTime), NewPriority(nominalMaxRealTime), nil
	case ClassOther:
		return NewPriority(0), NewPriority(0), nil
	default:
		return Priority{}, Priority{}, ErrUnsupportedPlatform
	}
}

func (osPlatform) ThreadID() int { return 0 }

func (osPlatform) SetScheduler(int, SchedClass, Priority) error {
	return ErrUnsupportedPlatform
}

func (osPlatform) GetScheduler(int) (SchedClass, Priority, error) {
	return ClassOther, Priority{}, ErrUnsupportedPlatform
}

func (osPlatform) SetAffinity(int, int) error {
	return ErrUnsupportedPlatform
}

// Supports only reports the unprotected lock as available, since boosting a
// holder requires changing another thread's priority.
func (osPlatform) Supports(mode ProtocolMode) error {
	if mode == NoProtection {
		return nil
	}
	return &UnsupportedProtocolError{Mode: mode, Err: ErrUnsupportedPlatform}
}
