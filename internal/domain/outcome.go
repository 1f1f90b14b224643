package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel is the outbound delivery channel.
type Channel string

const (
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelSMS      Channel = "SMS"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelWhatsApp, ChannelSMS:
		return true
	}
	return false
}

// DisplayName is the label shown to the shop owner.
func (c Channel) DisplayName() string {
	switch c {
	case ChannelWhatsApp:
		return "WhatsApp"
	case ChannelSMS:
		return "SMS"
	}
	return string(c)
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Result is the recorded result of a dispatch attempt.
type Result string

const (
	ResultSent   Result = "SENT"
	ResultFailed Result = "FAILED"
)

func (r Result) String() string { return string(r) }

func (r Result) IsValid() bool {
	switch r {
	case ResultSent, ResultFailed:
		return true
	}
	return false
}

func ParseResultFromString(s string) (Result, error) {
	r := Result(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: invalid result %q", ErrValidation, s)
	}
	return r, nil
}

// MaxHistoryEntries caps the persisted dispatch history.
const MaxHistoryEntries = 100

// DispatchOutcome is one history entry. StoreStatus carries the store status
// label for sent messages and the failure diagnostic for failed ones.
type DispatchOutcome struct {
	ID          string
	PhoneNumber string
	Timestamp   time.Time
	Channel     Channel
	Result      Result
	StoreStatus string
}

func (o *DispatchOutcome) Validate() error {
	if strings.TrimSpace(o.PhoneNumber) == "" {
		return fmt.Errorf("%w: phone number is required", ErrValidation)
	}
	if !o.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, o.Channel)
	}
	if !o.Result.IsValid() {
		return fmt.Errorf("%w: invalid result %q", ErrValidation, o.Result)
	}
	return nil
}
