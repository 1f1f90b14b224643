package queue

import (
	"fmt"
	"strings"
	"time"
)

// MissedCallMessage is the queue payload for one missed call.
type MissedCallMessage struct {
	PhoneNumber   string    `json:"phoneNumber"`
	DetectedAt    time.Time `json:"detectedAt"`
	CorrelationID string    `json:"correlationId,omitempty"`
}

func (m MissedCallMessage) Validate() error {
	if strings.TrimSpace(m.PhoneNumber) == "" {
		return fmt.Errorf("phoneNumber is required")
	}
	if m.DetectedAt.IsZero() {
		return fmt.Errorf("detectedAt is required")
	}
	return nil
}
