// Package tracker turns the telephony state stream into missed-call events.
package tracker

import (
	"strings"
	"sync"
	"time"

	"github.com/teeshirtminute/tm-autoreply/internal/domain"
)

// DefaultRingCeiling is the longest ring still treated as a missed call.
// Longer rings are assumed to have reached voicemail.
const DefaultRingCeiling = 30 * time.Second

// Tracker keeps the state of the last observed call. Observe is safe for
// concurrent use.
type Tracker struct {
	mu sync.Mutex

	ringCeiling time.Duration

	lastState      domain.PhoneState
	incomingNumber string
	ringStartedAt  time.Time
}

func New(ringCeiling time.Duration) *Tracker {
	if ringCeiling <= 0 {
		ringCeiling = DefaultRingCeiling
	}
	return &Tracker{
		ringCeiling: ringCeiling,
		lastState:   domain.PhoneStateIdle,
	}
}

// Observe feeds one state change. It returns a missed-call event when a
// short ring ends in IDLE without having been answered.
func (t *Tracker) Observe(change domain.PhoneStateChange) (*domain.MissedCallEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var event *domain.MissedCallEvent

	switch change.State {
	case domain.PhoneStateRinging:
		if number := strings.TrimSpace(change.Number); number != "" {
			t.incomingNumber = number
			t.ringStartedAt = change.OccurredAt
		}
	case domain.PhoneStateIdle:
		if t.lastState == domain.PhoneStateRinging && t.incomingNumber != "" {
			if change.OccurredAt.Sub(t.ringStartedAt) < t.ringCeiling {
				event = &domain.MissedCallEvent{
					PhoneNumber: t.incomingNumber,
					DetectedAt:  change.OccurredAt,
				}
			}
		}
		t.incomingNumber = ""
		t.ringStartedAt = time.Time{}
	case domain.PhoneStateOffhook:
	default:
		return nil, false
	}

	t.lastState = change.State
	return event, event != nil
}

// Reset returns the tracker to IDLE with no recorded call.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastState = domain.PhoneStateIdle
	t.incomingNumber = ""
	t.ringStartedAt = time.Time{}
}

// State returns the last observed state.
func (t *Tracker) State() domain.PhoneState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastState
}
