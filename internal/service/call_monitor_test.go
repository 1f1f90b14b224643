package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/observability"
	"github.com/teeshirtminute/tm-autoreply/internal/queue"
	"github.com/teeshirtminute/tm-autoreply/internal/tracker"
)

var callStart = time.Date(2026, 5, 12, 19, 45, 0, 0, time.UTC)

func newTestCallMonitor(t *testing.T, settings domain.Settings, publisher *fakePublisher) (*CallMonitor, *tracker.Tracker) {
	t.Helper()

	tr := tracker.New(tracker.DefaultRingCeiling)
	monitor, err := NewCallMonitor(settingsRepo(settings), tr, publisher, nil)
	if err != nil {
		t.Fatalf("NewCallMonitor() error = %v", err)
	}
	monitor.now = func() time.Time { return callStart }
	return monitor, tr
}

func ringThenIdle(t *testing.T, m *CallMonitor, ctx context.Context, number string, ring time.Duration) MonitorResult {
	t.Helper()

	if _, err := m.HandlePhoneState(ctx, domain.PhoneStateChange{
		State:      domain.PhoneStateRinging,
		Number:     number,
		OccurredAt: callStart,
	}); err != nil {
		t.Fatalf("HandlePhoneState(RINGING) error = %v", err)
	}
	result, err := m.HandlePhoneState(ctx, domain.PhoneStateChange{
		State:      domain.PhoneStateIdle,
		OccurredAt: callStart.Add(ring),
	})
	if err != nil {
		t.Fatalf("HandlePhoneState(IDLE) error = %v", err)
	}
	return result
}

func TestCallMonitorQueuesMissedMobileCall(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{}
	monitor, _ := newTestCallMonitor(t, domain.Settings{Enabled: true}, publisher)
	ctx := observability.WithCorrelationID(context.Background(), "corr-1")

	result := ringThenIdle(t, monitor, ctx, "06 12 34 56 78", 5*time.Second)

	if !result.Missed || !result.Queued {
		t.Fatalf("result = %+v, want missed and queued", result)
	}
	if result.CorrelationID != "corr-1" {
		t.Fatalf("correlation id = %q, want corr-1", result.CorrelationID)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published = %d, want 1", len(publisher.published))
	}
	msg := publisher.published[0]
	if msg.PhoneNumber != "06 12 34 56 78" || !msg.DetectedAt.Equal(callStart.Add(5*time.Second)) {
		t.Fatalf("message = %+v", msg)
	}
}

func TestCallMonitorGeneratesCorrelationID(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{}
	monitor, _ := newTestCallMonitor(t, domain.Settings{Enabled: true}, publisher)

	result := ringThenIdle(t, monitor, context.Background(), "0712345678", time.Second)
	if result.CorrelationID == "" {
		t.Fatal("expected generated correlation id")
	}
	if publisher.published[0].CorrelationID != result.CorrelationID {
		t.Fatal("published message should carry the correlation id")
	}
}

func TestCallMonitorSkipsNonDispatchable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		number string
	}{
		{name: "fixed line", number: "0145454545"},
		{name: "foreign", number: "+4915112345678"},
		{name: "short code", number: "3631"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			publisher := &fakePublisher{}
			monitor, _ := newTestCallMonitor(t, domain.Settings{Enabled: true}, publisher)

			result := ringThenIdle(t, monitor, context.Background(), tt.number, time.Second)
			if !result.Missed || result.Queued {
				t.Fatalf("result = %+v, want missed but not queued", result)
			}
			if len(publisher.published) != 0 {
				t.Fatal("non-dispatchable numbers must not be queued")
			}
		})
	}
}

func TestCallMonitorLongRingIsNotMissed(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{}
	monitor, _ := newTestCallMonitor(t, domain.Settings{Enabled: true}, publisher)

	result := ringThenIdle(t, monitor, context.Background(), "0612345678", 35*time.Second)
	if result.Missed || len(publisher.published) != 0 {
		t.Fatalf("result = %+v, want nothing", result)
	}
}

func TestCallMonitorDisabledIgnoresEvents(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{}
	monitor, tr := newTestCallMonitor(t, domain.Settings{Enabled: false}, publisher)

	result, err := monitor.HandlePhoneState(context.Background(), domain.PhoneStateChange{
		State:  domain.PhoneStateRinging,
		Number: "0612345678",
	})
	if err != nil {
		t.Fatalf("HandlePhoneState() error = %v", err)
	}
	if !result.Ignored {
		t.Fatalf("result = %+v, want ignored", result)
	}
	if tr.State() == domain.PhoneStateRinging {
		t.Fatal("tracker must not observe events while disabled")
	}
}

func TestCallMonitorRejectsInvalidState(t *testing.T) {
	t.Parallel()

	monitor, _ := newTestCallMonitor(t, domain.Settings{Enabled: true}, &fakePublisher{})

	_, err := monitor.HandlePhoneState(context.Background(), domain.PhoneStateChange{State: "DIALING"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestCallMonitorPublishError(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{
		publishFn: func(context.Context, string, queue.MissedCallMessage) error {
			return queue.ErrQueueFull
		},
	}
	monitor, _ := newTestCallMonitor(t, domain.Settings{Enabled: true}, publisher)

	_, _ = monitor.HandlePhoneState(context.Background(), domain.PhoneStateChange{
		State: domain.PhoneStateRinging, Number: "0612345678", OccurredAt: callStart,
	})
	result, err := monitor.HandlePhoneState(context.Background(), domain.PhoneStateChange{
		State: domain.PhoneStateIdle, OccurredAt: callStart.Add(time.Second),
	})
	if !errors.Is(err, queue.ErrQueueFull) {
		t.Fatalf("error = %v, want ErrQueueFull", err)
	}
	if !result.Missed || result.Queued {
		t.Fatalf("result = %+v", result)
	}
}

func TestCallMonitorBootResetsTracker(t *testing.T) {
	t.Parallel()

	monitor, tr := newTestCallMonitor(t, domain.Settings{Enabled: true}, &fakePublisher{})
	tr.Observe(domain.PhoneStateChange{State: domain.PhoneStateRinging, Number: "0612345678", OccurredAt: callStart})

	armed, err := monitor.Boot(context.Background())
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if !armed {
		t.Fatal("monitoring should be armed when enabled")
	}
	if tr.State() != domain.PhoneStateIdle {
		t.Fatalf("tracker state = %s, want IDLE", tr.State())
	}
}
