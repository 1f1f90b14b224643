package provider

import (
	"context"
	"strings"
	"unicode/utf16"

	"github.com/teeshirtminute/tm-autoreply/internal/bridge"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
)

// Segment sizes, in septets for GSM-7 and UTF-16 code units for UCS-2.
const (
	gsmSingleLimit = 160
	gsmPartLimit   = 153
	ucsSingleLimit = 70
	ucsPartLimit   = 67
)

const (
	gsmBasic     = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"
	gsmExtension = "\f^{}\\[~]|€"
)

// SMSChannel sends the reply as a native, possibly multipart, text message.
type SMSChannel struct {
	sender SMSSender
}

func NewSMSChannel(sender SMSSender) *SMSChannel {
	return &SMSChannel{sender: sender}
}

func (c *SMSChannel) Name() domain.Channel { return domain.ChannelSMS }

func (c *SMSChannel) Send(ctx context.Context, msg Message) error {
	parts := SplitSMS(msg.Text)
	if len(parts) == 0 {
		return &ChannelError{Channel: domain.ChannelSMS, Message: "empty message"}
	}

	req := bridge.SMSRequest{
		To:      msg.PhoneNumber,
		Parts:   parts,
		SIMSlot: msg.SIMSlot,
	}
	if err := c.sender.SendSMS(ctx, req); err != nil {
		return &ChannelError{Channel: domain.ChannelSMS, Message: "send failed", Cause: err}
	}
	return nil
}

// SplitSMS splits text into segments. GSM-7 text fits 160 septets in a single
// message and 153 per part otherwise; extension characters cost two septets
// and are never split. Anything else is sent as UCS-2 with 70 and 67 code
// units, keeping surrogate pairs together.
func SplitSMS(text string) []string {
	if text == "" {
		return nil
	}

	if isGSM7(text) {
		return splitByCost(text, gsmSingleLimit, gsmPartLimit, gsmCost)
	}
	return splitByCost(text, ucsSingleLimit, ucsPartLimit, utf16.RuneLen)
}

func isGSM7(text string) bool {
	for _, r := range text {
		if gsmCost(r) == 0 {
			return false
		}
	}
	return true
}

// gsmCost returns the septets needed for r, or 0 when r is not in GSM-7.
func gsmCost(r rune) int {
	switch {
	case strings.ContainsRune(gsmBasic, r):
		return 1
	case strings.ContainsRune(gsmExtension, r):
		return 2
	}
	return 0
}

func splitByCost(text string, singleLimit int, partLimit int, cost func(rune) int) []string {
	total := 0
	for _, r := range text {
		total += cost(r)
	}
	if total <= singleLimit {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	used := 0
	for _, r := range text {
		c := cost(r)
		if used+c > partLimit {
			parts = append(parts, current.String())
			current.Reset()
			used = 0
		}
		current.WriteRune(r)
		used += c
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
