package provider

import (
	"context"

	"github.com/teeshirtminute/tm-autoreply/internal/bridge"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
)

// Channel is the outbound message delivery port.
type Channel interface {
	Name() domain.Channel
	Send(ctx context.Context, msg Message) error
}

// Message is one reply to a missed call.
type Message struct {
	PhoneNumber string
	Text        string
	SIMSlot     int
}

// Launcher opens a deep link in a given app on the handset.
type Launcher interface {
	Launch(ctx context.Context, req bridge.LaunchRequest) error
}

// SMSSender sends native text messages from the handset.
type SMSSender interface {
	SendSMS(ctx context.Context, req bridge.SMSRequest) error
}

var (
	_ Launcher  = (*bridge.Client)(nil)
	_ SMSSender = (*bridge.Client)(nil)
)
