package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/teeshirtminute/tm-autoreply/internal/automation"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/observability"
	"github.com/teeshirtminute/tm-autoreply/internal/service"
)

// PhoneStateMonitor consumes telephony state broadcasts.
type PhoneStateMonitor interface {
	HandlePhoneState(ctx context.Context, change domain.PhoneStateChange) (service.MonitorResult, error)
}

// UIEventSink consumes accessibility events forwarded by the device bridge.
type UIEventSink interface {
	HandleEvent(event automation.UIEvent) bool
}

var (
	_ PhoneStateMonitor = (*service.CallMonitor)(nil)
	_ UIEventSink       = (*automation.Driver)(nil)
)

type CallHandler struct {
	monitor PhoneStateMonitor
	events  UIEventSink
}

func NewCallHandler(monitor PhoneStateMonitor, events UIEventSink) (*CallHandler, error) {
	if monitor == nil || events == nil {
		return nil, fmt.Errorf("phone state monitor and ui event sink are required")
	}
	return &CallHandler{monitor: monitor, events: events}, nil
}

func RegisterCallRoutes(router fiber.Router, monitor PhoneStateMonitor, events UIEventSink) error {
	h, err := NewCallHandler(monitor, events)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/phone-state", h.PhoneState)
	v1.Post("/ui-events", h.UIEvent)

	return nil
}

type phoneStateRequest struct {
	State      string     `json:"state"`
	Number     string     `json:"number"`
	OccurredAt *time.Time `json:"occurredAt,omitempty"`
}

type phoneStateResponse struct {
	Ignored       bool   `json:"ignored"`
	Missed        bool   `json:"missed"`
	Queued        bool   `json:"queued"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

type uiEventRequest struct {
	Package   string `json:"package"`
	EventType string `json:"eventType"`
}

func (h *CallHandler) PhoneState(c *fiber.Ctx) error {
	var req phoneStateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	state, err := domain.ParsePhoneStateFromString(req.State)
	if err != nil {
		return toHTTPError(err)
	}
	change := domain.PhoneStateChange{
		State:  state,
		Number: strings.TrimSpace(req.Number),
	}
	if req.OccurredAt != nil {
		change.OccurredAt = *req.OccurredAt
	}

	ctx := c.UserContext()
	if correlationID := requestCorrelationID(c); correlationID != "" {
		ctx = observability.WithCorrelationID(ctx, correlationID)
	}

	result, err := h.monitor.HandlePhoneState(ctx, change)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(phoneStateResponse{
		Ignored:       result.Ignored,
		Missed:        result.Missed,
		Queued:        result.Queued,
		PhoneNumber:   result.PhoneNumber,
		CorrelationID: result.CorrelationID,
	})
}

func (h *CallHandler) UIEvent(c *fiber.Ctx) error {
	var req uiEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Package) == "" {
		return toHTTPError(fmt.Errorf("%w: package is required", domain.ErrValidation))
	}

	scheduled := h.events.HandleEvent(automation.UIEvent{
		Package: strings.TrimSpace(req.Package),
		Type:    strings.TrimSpace(req.EventType),
	})

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"scheduled": scheduled,
	})
}
