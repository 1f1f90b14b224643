package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/teeshirtminute/tm-autoreply/internal/automation"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/observability"
	"github.com/teeshirtminute/tm-autoreply/internal/service"
)

type stubMonitor struct {
	handleFn func(ctx context.Context, change domain.PhoneStateChange) (service.MonitorResult, error)
}

func (s *stubMonitor) HandlePhoneState(ctx context.Context, change domain.PhoneStateChange) (service.MonitorResult, error) {
	if s.handleFn != nil {
		return s.handleFn(ctx, change)
	}
	return service.MonitorResult{}, nil
}

type stubEventSink struct {
	events []automation.UIEvent
	result bool
}

func (s *stubEventSink) HandleEvent(event automation.UIEvent) bool {
	s.events = append(s.events, event)
	return s.result
}

func newCallTestApp(t *testing.T, monitor PhoneStateMonitor, events UIEventSink) *fiber.App {
	t.Helper()

	return newTestApp(t, func(app *fiber.App) error {
		return RegisterCallRoutes(app, monitor, events)
	})
}

func TestCallHandlerPhoneState(t *testing.T) {
	t.Parallel()

	var got domain.PhoneStateChange
	var gotCorrelation string
	monitor := &stubMonitor{
		handleFn: func(ctx context.Context, change domain.PhoneStateChange) (service.MonitorResult, error) {
			got = change
			gotCorrelation, _ = observability.CorrelationIDFromContext(ctx)
			return service.MonitorResult{Missed: true, Queued: true, PhoneNumber: change.Number, CorrelationID: gotCorrelation}, nil
		},
	}
	app := newCallTestApp(t, monitor, &stubEventSink{})

	req, _ := http.NewRequest(http.MethodPost, "/v1/phone-state",
		strings.NewReader(`{"state":"idle","number":" 0612345678 ","occurredAt":"2026-05-12T19:45:05Z"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderXRequestID, "req-42")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	if got.State != domain.PhoneStateIdle || got.Number != "0612345678" {
		t.Fatalf("change = %+v", got)
	}
	if !got.OccurredAt.Equal(time.Date(2026, 5, 12, 19, 45, 5, 0, time.UTC)) {
		t.Fatalf("occurredAt = %v", got.OccurredAt)
	}
	if gotCorrelation != "req-42" {
		t.Fatalf("correlation id = %q, want req-42", gotCorrelation)
	}

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("json decode error = %v", err)
	}
	if parsed["missed"] != true || parsed["queued"] != true {
		t.Fatalf("response = %v", parsed)
	}
}

func TestCallHandlerPhoneStateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		monitor *stubMonitor
		want    int
	}{
		{name: "malformed body", body: `{`, monitor: &stubMonitor{}, want: fiber.StatusBadRequest},
		{name: "unknown state", body: `{"state":"DIALING"}`, monitor: &stubMonitor{}, want: fiber.StatusBadRequest},
		{
			name: "queue failure",
			body: `{"state":"IDLE"}`,
			monitor: &stubMonitor{handleFn: func(context.Context, domain.PhoneStateChange) (service.MonitorResult, error) {
				return service.MonitorResult{}, fmt.Errorf("failed to queue missed call: queue is full")
			}},
			want: fiber.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := newCallTestApp(t, tt.monitor, &stubEventSink{})
			resp, body := performRequest(t, app, http.MethodPost, "/v1/phone-state", tt.body)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d, body=%s", resp.StatusCode, tt.want, string(body))
			}
		})
	}
}

func TestCallHandlerUIEvent(t *testing.T) {
	t.Parallel()

	sink := &stubEventSink{result: true}
	app := newCallTestApp(t, &stubMonitor{}, sink)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/ui-events",
		`{"package":"com.whatsapp.w4b","eventType":"WINDOW_STATE_CHANGED"}`)
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", resp.StatusCode, string(body))
	}
	if len(sink.events) != 1 || sink.events[0].Package != "com.whatsapp.w4b" || sink.events[0].Type != automation.EventWindowStateChanged {
		t.Fatalf("events = %+v", sink.events)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/ui-events", `{"eventType":"WINDOW_STATE_CHANGED"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without package", resp.StatusCode)
	}
}
