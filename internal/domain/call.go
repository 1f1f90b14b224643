package domain

import (
	"fmt"
	"strings"
	"time"
)

// PhoneState mirrors the telephony call states broadcast by the handset.
type PhoneState string

const (
	PhoneStateIdle    PhoneState = "IDLE"
	PhoneStateRinging PhoneState = "RINGING"
	PhoneStateOffhook PhoneState = "OFFHOOK"
)

func (s PhoneState) String() string { return string(s) }

func (s PhoneState) IsValid() bool {
	switch s {
	case PhoneStateIdle, PhoneStateRinging, PhoneStateOffhook:
		return true
	}
	return false
}

func ParsePhoneStateFromString(s string) (PhoneState, error) {
	st := PhoneState(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid phone state %q", ErrValidation, s)
	}
	return st, nil
}

// PhoneStateChange is one telephony broadcast.
type PhoneStateChange struct {
	State      PhoneState
	Number     string
	OccurredAt time.Time
}

// MissedCallEvent is derived by the call tracker and consumed once by the dispatcher.
type MissedCallEvent struct {
	PhoneNumber string
	DetectedAt  time.Time
}
