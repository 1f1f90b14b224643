package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teeshirtminute/tm-autoreply/internal/domain"
)

// ChannelError classifies a failed send. Unavailable means the channel
// cannot be used at all on this handset, as opposed to a one-off failure.
type ChannelError struct {
	Channel     domain.Channel
	Message     string
	Unavailable bool
	Cause       error
}

func (e *ChannelError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, fmt.Sprintf("%s channel error", strings.ToLower(e.Channel.String())))

	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ChannelError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsUnavailable reports whether err says the channel is not installed or not
// usable on the handset.
func IsUnavailable(err error) bool {
	var channelErr *ChannelError
	if errors.As(err, &channelErr) {
		return channelErr.Unavailable
	}
	return false
}
