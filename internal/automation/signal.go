package automation

import (
	"sync/atomic"
	"time"
)

// DefaultStaleAfter bounds how long an armed signal stays valid.
const DefaultStaleAfter = 10 * time.Second

// PendingSignal tells the driver a send screen is expected. Arm, disarm and
// the staleness check all act on one atomic word, so a reader never sees a
// flag that disagrees with its timestamp.
type PendingSignal struct {
	armedAt    atomic.Int64
	staleAfter time.Duration
}

func NewPendingSignal(staleAfter time.Duration) *PendingSignal {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &PendingSignal{staleAfter: staleAfter}
}

func (s *PendingSignal) Arm(now time.Time) {
	nanos := now.UnixNano()
	if nanos == 0 {
		nanos = 1
	}
	s.armedAt.Store(nanos)
}

func (s *PendingSignal) Disarm() {
	s.armedAt.Store(0)
}

// Armed reports whether the signal was armed within the staleness window.
func (s *PendingSignal) Armed(now time.Time) bool {
	armedAt := s.armedAt.Load()
	if armedAt == 0 {
		return false
	}
	return now.UnixNano()-armedAt <= int64(s.staleAfter)
}

// ArmedAt returns the arming time, or the zero time when disarmed.
func (s *PendingSignal) ArmedAt() time.Time {
	armedAt := s.armedAt.Load()
	if armedAt == 0 {
		return time.Time{}
	}
	return time.Unix(0, armedAt)
}
