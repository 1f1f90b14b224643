package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/teeshirtminute/tm-autoreply/internal/bridge"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
)

// DefaultWhatsAppPackage is WhatsApp Business.
const DefaultWhatsAppPackage = "com.whatsapp.w4b"

// WhatsAppChannel opens a pre-filled conversation. A nil error only means the
// conversation was opened; pressing send is left to the automation driver.
type WhatsAppChannel struct {
	launcher    Launcher
	packageName string
}

func NewWhatsAppChannel(launcher Launcher, packageName string) *WhatsAppChannel {
	if strings.TrimSpace(packageName) == "" {
		packageName = DefaultWhatsAppPackage
	}
	return &WhatsAppChannel{launcher: launcher, packageName: packageName}
}

func (c *WhatsAppChannel) Name() domain.Channel { return domain.ChannelWhatsApp }

// Send launches the conversation even when the text is empty; the owner then
// sees an open chat with nothing to send.
func (c *WhatsAppChannel) Send(ctx context.Context, msg Message) error {
	req := bridge.LaunchRequest{
		URL:     domain.WhatsAppDeepLink(msg.PhoneNumber, msg.Text),
		Package: c.packageName,
	}
	if err := c.launcher.Launch(ctx, req); err != nil {
		return &ChannelError{
			Channel:     domain.ChannelWhatsApp,
			Message:     "launch failed",
			Unavailable: errors.Is(err, bridge.ErrPackageNotFound),
			Cause:       err,
		}
	}
	return nil
}
