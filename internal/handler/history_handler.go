package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/repository"
)

type HistoryHandler struct {
	history repository.HistoryRepository
	counter repository.CounterStore
	loc     *time.Location
	now     func() time.Time
}

func NewHistoryHandler(
	history repository.HistoryRepository,
	counter repository.CounterStore,
	loc *time.Location,
) (*HistoryHandler, error) {
	if history == nil || counter == nil {
		return nil, fmt.Errorf("history repository and counter store are required")
	}
	if loc == nil {
		loc = time.Local
	}
	return &HistoryHandler{
		history: history,
		counter: counter,
		loc:     loc,
		now:     time.Now,
	}, nil
}

func RegisterHistoryRoutes(
	router fiber.Router,
	history repository.HistoryRepository,
	counter repository.CounterStore,
	loc *time.Location,
) error {
	h, err := NewHistoryHandler(history, counter, loc)
	if err != nil {
		return err
	}
	h.mount(router)
	return nil
}

func (h *HistoryHandler) mount(router fiber.Router) {
	v1 := router.Group("/v1")
	v1.Get("/history", h.ListHistory)
	v1.Delete("/history", h.ClearHistory)
	v1.Get("/stats", h.GetStats)
}

type outcomeResponse struct {
	ID            string    `json:"id"`
	PhoneNumber   string    `json:"phoneNumber"`
	DisplayNumber string    `json:"displayNumber"`
	Timestamp     time.Time `json:"timestamp"`
	Channel       string    `json:"channel"`
	ChannelName   string    `json:"channelName"`
	Result        string    `json:"result"`
	StoreStatus   string    `json:"storeStatus"`
}

type listHistoryResponse struct {
	Data []outcomeResponse `json:"data"`
	Meta historyMeta       `json:"meta"`
}

type historyMeta struct {
	Count int `json:"count"`
	Limit int `json:"limit"`
}

type statsResponse struct {
	DateKey      string           `json:"dateKey"`
	SentToday    int              `json:"sentToday"`
	LastPhone    string           `json:"lastPhone,omitempty"`
	LastSentAt   *time.Time       `json:"lastSentAt,omitempty"`
	OutcomeCount int64            `json:"outcomesToday"`
	LastOutcome  *outcomeResponse `json:"lastOutcome,omitempty"`
}

func (h *HistoryHandler) ListHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", domain.MaxHistoryEntries)
	if limit < 1 || limit > domain.MaxHistoryEntries {
		return toHTTPError(fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, domain.MaxHistoryEntries))
	}

	outcomes, err := h.history.List(c.UserContext(), limit)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]outcomeResponse, 0, len(outcomes))
	for i := range outcomes {
		data = append(data, toOutcomeResponse(&outcomes[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listHistoryResponse{
		Data: data,
		Meta: historyMeta{Count: len(data), Limit: limit},
	})
}

func (h *HistoryHandler) ClearHistory(c *fiber.Ctx) error {
	if err := h.history.Clear(c.UserContext()); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetStats reports today's send counter next to the history-derived view of
// the same day.
func (h *HistoryHandler) GetStats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	now := h.now()

	counter, err := h.counter.Get(ctx)
	if err != nil {
		return toHTTPError(err)
	}

	local := now.In(h.loc)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, h.loc)
	outcomesToday, err := h.history.CountSince(ctx, startOfDay)
	if err != nil {
		return toHTTPError(err)
	}

	resp := statsResponse{
		DateKey:      domain.DateKey(now, h.loc),
		SentToday:    counter.Today(now, h.loc),
		OutcomeCount: outcomesToday,
	}
	if resp.SentToday > 0 {
		resp.LastPhone = counter.LastPhone
		lastAt := counter.LastAt
		resp.LastSentAt = &lastAt
	}

	last, err := h.history.Last(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return toHTTPError(err)
	default:
		o := toOutcomeResponse(last)
		resp.LastOutcome = &o
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func toOutcomeResponse(o *domain.DispatchOutcome) outcomeResponse {
	return outcomeResponse{
		ID:            o.ID,
		PhoneNumber:   o.PhoneNumber,
		DisplayNumber: domain.FormatForDisplay(o.PhoneNumber),
		Timestamp:     o.Timestamp,
		Channel:       o.Channel.String(),
		ChannelName:   o.Channel.DisplayName(),
		Result:        o.Result.String(),
		StoreStatus:   o.StoreStatus,
	}
}
