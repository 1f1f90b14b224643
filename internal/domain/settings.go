package domain

import (
	"fmt"
	"strings"
	"time"
)

// SIM slot preferences.
const (
	SIMSlotFirst  = 0
	SIMSlotSecond = 1
	SIMSlotBoth   = -1
)

// Settings is the operator-editable configuration persisted between restarts.
type Settings struct {
	Enabled     bool
	EndpointURL string
	APIKey      string
	SIMSlot     int
	UpdatedAt   time.Time
}

// Normalize trims the endpoint and API key.
func (s *Settings) Normalize() {
	s.EndpointURL = NormalizeEndpointURL(s.EndpointURL)
	s.APIKey = strings.TrimSpace(s.APIKey)
}

func (s *Settings) Validate() error {
	switch s.SIMSlot {
	case SIMSlotFirst, SIMSlotSecond, SIMSlotBoth:
	default:
		return fmt.Errorf("%w: invalid sim slot %d", ErrValidation, s.SIMSlot)
	}
	return nil
}

// Configured reports whether a remote endpoint is set.
func (s Settings) Configured() bool {
	return s.EndpointURL != ""
}

func NormalizeEndpointURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
