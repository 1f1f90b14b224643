package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/repository"
)

type historyFixture struct {
	app     *fiber.App
	history *repository.GormHistoryRepo
	counter *repository.GormCounterRepo
}

func newHistoryFixture(t *testing.T, now time.Time) historyFixture {
	t.Helper()

	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("LoadLocation() error = %v", err)
	}

	db := newTestDB(t)
	history := repository.NewGormHistoryRepo(db)
	counter := repository.NewGormCounterRepo(db, paris)

	h, err := NewHistoryHandler(history, counter, paris)
	if err != nil {
		t.Fatalf("NewHistoryHandler() error = %v", err)
	}
	h.now = func() time.Time { return now }

	app := newTestApp(t, func(app *fiber.App) error {
		h.mount(app)
		return nil
	})
	return historyFixture{app: app, history: history, counter: counter}
}

func addOutcome(t *testing.T, repo *repository.GormHistoryRepo, phone string, at time.Time, channel domain.Channel) {
	t.Helper()

	err := repo.Add(context.Background(), &domain.DispatchOutcome{
		PhoneNumber: phone,
		Timestamp:   at,
		Channel:     channel,
		Result:      domain.ResultSent,
		StoreStatus: "closed",
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
}

func TestHistoryHandlerListAndClear(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 12, 18, 0, 0, 0, time.UTC)
	f := newHistoryFixture(t, now)
	addOutcome(t, f.history, "0611111111", now.Add(-time.Hour), domain.ChannelWhatsApp)
	addOutcome(t, f.history, "0622222222", now, domain.ChannelSMS)

	resp, body := performRequest(t, f.app, http.MethodGet, "/v1/history?limit=10", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	var parsed listHistoryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.Meta.Count != 2 || len(parsed.Data) != 2 {
		t.Fatalf("history = %+v", parsed)
	}
	first := parsed.Data[0]
	if first.PhoneNumber != "0622222222" || first.DisplayNumber != "06 22 22 22 22" || first.ChannelName != "SMS" {
		t.Fatalf("newest entry = %+v", first)
	}

	resp, _ = performRequest(t, f.app, http.MethodGet, "/v1/history?limit=0", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for limit=0", resp.StatusCode)
	}
	resp, _ = performRequest(t, f.app, http.MethodGet, "/v1/history?limit=101", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for limit=101", resp.StatusCode)
	}

	resp, _ = performRequest(t, f.app, http.MethodDelete, "/v1/history", "")
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	_, body = performRequest(t, f.app, http.MethodGet, "/v1/history", "")
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(parsed.Data) != 0 {
		t.Fatalf("history after clear = %d entries, want 0", len(parsed.Data))
	}
}

func TestHistoryHandlerStats(t *testing.T) {
	t.Parallel()

	// 00:30 in Paris, so 22:00 UTC the previous evening belongs to yesterday.
	now := time.Date(2026, 5, 12, 22, 30, 0, 0, time.UTC)
	f := newHistoryFixture(t, now)
	ctx := context.Background()

	yesterday := time.Date(2026, 5, 12, 21, 0, 0, 0, time.UTC)
	addOutcome(t, f.history, "0611111111", yesterday, domain.ChannelWhatsApp)
	if _, err := f.counter.Increment(ctx, "0611111111", yesterday); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}

	resp, body := performRequest(t, f.app, http.MethodGet, "/v1/stats", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	var stats statsResponse
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if stats.DateKey != "2026-05-13" || stats.SentToday != 0 || stats.OutcomeCount != 0 {
		t.Fatalf("stats before today's send = %+v", stats)
	}
	if stats.LastOutcome == nil || stats.LastOutcome.PhoneNumber != "0611111111" {
		t.Fatalf("last outcome = %+v", stats.LastOutcome)
	}

	today := now.Add(-10 * time.Minute)
	addOutcome(t, f.history, "0622222222", today, domain.ChannelSMS)
	if _, err := f.counter.Increment(ctx, "0622222222", today); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}

	_, body = performRequest(t, f.app, http.MethodGet, "/v1/stats", "")
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if stats.SentToday != 1 || stats.OutcomeCount != 1 || stats.LastPhone != "0622222222" {
		t.Fatalf("stats after today's send = %+v", stats)
	}
}

func TestHistoryHandlerStatsEmpty(t *testing.T) {
	t.Parallel()

	f := newHistoryFixture(t, time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC))

	resp, body := performRequest(t, f.app, http.MethodGet, "/v1/stats", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	var stats statsResponse
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if stats.SentToday != 0 || stats.LastOutcome != nil {
		t.Fatalf("stats = %+v", stats)
	}
}
