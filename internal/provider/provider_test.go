package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/teeshirtminute/tm-autoreply/internal/bridge"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
)

type fakeLauncher struct {
	launchFn func(ctx context.Context, req bridge.LaunchRequest) error
	got      []bridge.LaunchRequest
}

func (f *fakeLauncher) Launch(ctx context.Context, req bridge.LaunchRequest) error {
	f.got = append(f.got, req)
	if f.launchFn == nil {
		return nil
	}
	return f.launchFn(ctx, req)
}

type fakeSMSSender struct {
	sendFn func(ctx context.Context, req bridge.SMSRequest) error
	got    []bridge.SMSRequest
}

func (f *fakeSMSSender) SendSMS(ctx context.Context, req bridge.SMSRequest) error {
	f.got = append(f.got, req)
	if f.sendFn == nil {
		return nil
	}
	return f.sendFn(ctx, req)
}

func TestWhatsAppChannelSend(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	ch := NewWhatsAppChannel(launcher, "")

	err := ch.Send(context.Background(), Message{PhoneNumber: "06 12 34 56 78", Text: "Bonjour !"})
	if err != nil {
		t.Fatalf("Send() unexpected error = %v", err)
	}
	if ch.Name() != domain.ChannelWhatsApp {
		t.Fatalf("Name() = %s", ch.Name())
	}
	if len(launcher.got) != 1 {
		t.Fatalf("launches = %d, want 1", len(launcher.got))
	}
	want := bridge.LaunchRequest{URL: "https://wa.me/33612345678?text=Bonjour%20%21", Package: DefaultWhatsAppPackage}
	if launcher.got[0] != want {
		t.Fatalf("launch = %+v, want %+v", launcher.got[0], want)
	}
}

func TestWhatsAppChannelErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name            string
		launchErr       error
		wantUnavailable bool
	}{
		{name: "not installed", launchErr: fmt.Errorf("launch: %w", bridge.ErrPackageNotFound), wantUnavailable: true},
		{name: "bridge failure", launchErr: &bridge.Error{StatusCode: 500}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			launcher := &fakeLauncher{launchFn: func(context.Context, bridge.LaunchRequest) error { return tc.launchErr }}
			err := NewWhatsAppChannel(launcher, "com.example").Send(context.Background(), Message{PhoneNumber: "0612345678", Text: "x"})

			var channelErr *ChannelError
			if !errors.As(err, &channelErr) {
				t.Fatalf("error = %v, want *ChannelError", err)
			}
			if channelErr.Channel != domain.ChannelWhatsApp {
				t.Fatalf("Channel = %s", channelErr.Channel)
			}
			if got := IsUnavailable(err); got != tc.wantUnavailable {
				t.Fatalf("IsUnavailable() = %v, want %v", got, tc.wantUnavailable)
			}
			if !errors.Is(err, tc.launchErr) {
				t.Fatal("cause should be preserved")
			}
		})
	}
}

func TestWhatsAppChannelEmptyTextStillLaunches(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	err := NewWhatsAppChannel(launcher, "").Send(context.Background(), Message{PhoneNumber: "0612345678", Text: ""})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(launcher.got) != 1 {
		t.Fatalf("launches = %d, want 1", len(launcher.got))
	}
	if want := "https://wa.me/33612345678?text="; launcher.got[0].URL != want {
		t.Fatalf("URL = %q, want %q", launcher.got[0].URL, want)
	}
	if launcher.got[0].Package != DefaultWhatsAppPackage {
		t.Fatalf("Package = %q", launcher.got[0].Package)
	}
}

func TestSMSChannelSend(t *testing.T) {
	t.Parallel()

	sender := &fakeSMSSender{}
	ch := NewSMSChannel(sender)

	text := strings.Repeat("a", 200)
	if err := ch.Send(context.Background(), Message{PhoneNumber: "06 12 34 56 78", Text: text, SIMSlot: domain.SIMSlotBoth}); err != nil {
		t.Fatalf("Send() unexpected error = %v", err)
	}
	if len(sender.got) != 1 {
		t.Fatalf("requests = %d, want 1", len(sender.got))
	}
	req := sender.got[0]
	if req.To != "06 12 34 56 78" {
		t.Fatalf("To = %q, want the number as received", req.To)
	}
	if len(req.Parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(req.Parts))
	}
	if req.SIMSlot != domain.SIMSlotBoth {
		t.Fatalf("SIMSlot = %d", req.SIMSlot)
	}
}

func TestSMSChannelErrors(t *testing.T) {
	t.Parallel()

	sender := &fakeSMSSender{sendFn: func(context.Context, bridge.SMSRequest) error { return errors.New("radio off") }}
	ch := NewSMSChannel(sender)

	err := ch.Send(context.Background(), Message{PhoneNumber: "0612345678", Text: "S"})
	var channelErr *ChannelError
	if !errors.As(err, &channelErr) || channelErr.Channel != domain.ChannelSMS {
		t.Fatalf("error = %v, want sms *ChannelError", err)
	}
	if IsUnavailable(err) {
		t.Fatal("send failure should not mark the channel unavailable")
	}

	if err := ch.Send(context.Background(), Message{PhoneNumber: "0612345678"}); err == nil {
		t.Fatal("expected error for empty text")
	}
	if len(sender.got) != 1 {
		t.Fatalf("requests = %d, want 1", len(sender.got))
	}
}

func TestSplitSMS(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		text      string
		wantParts []int
	}{
		{name: "empty", text: ""},
		{name: "gsm single", text: strings.Repeat("é", 160), wantParts: []int{160}},
		{name: "gsm multipart", text: strings.Repeat("a", 161), wantParts: []int{153, 8}},
		{name: "gsm extension costs two", text: strings.Repeat("€", 80), wantParts: []int{80}},
		{name: "gsm extension not split", text: strings.Repeat("a", 152) + "€" + strings.Repeat("a", 10), wantParts: []int{152, 11}},
		{name: "ucs2 single", text: strings.Repeat("ê", 70), wantParts: []int{70}},
		{name: "ucs2 multipart", text: strings.Repeat("ê", 71), wantParts: []int{67, 4}},
		{name: "surrogate pair kept whole", text: strings.Repeat("a", 66) + "😀" + strings.Repeat("a", 5), wantParts: []int{66, 6}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			parts := SplitSMS(tc.text)
			if len(parts) != len(tc.wantParts) {
				t.Fatalf("parts = %d, want %d", len(parts), len(tc.wantParts))
			}
			for i, p := range parts {
				if got := len([]rune(p)); got != tc.wantParts[i] {
					t.Fatalf("part %d has %d runes, want %d", i, got, tc.wantParts[i])
				}
			}
			if strings.Join(parts, "") != tc.text {
				t.Fatal("parts do not rebuild the original text")
			}
		})
	}
}
