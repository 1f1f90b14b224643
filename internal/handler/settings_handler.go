package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/repository"
	"github.com/teeshirtminute/tm-autoreply/internal/storeapi"
)

// StoreClient reads the store API on behalf of the operator screens.
type StoreClient interface {
	FetchStoreStatus(ctx context.Context, endpoint storeapi.Endpoint) (*domain.StoreStatus, error)
	TestConnection(ctx context.Context, endpoint storeapi.Endpoint) bool
}

var _ StoreClient = (*storeapi.Client)(nil)

type SettingsHandler struct {
	settings repository.SettingsRepository
	store    StoreClient
}

func NewSettingsHandler(settings repository.SettingsRepository, store StoreClient) (*SettingsHandler, error) {
	if settings == nil || store == nil {
		return nil, fmt.Errorf("settings repository and store client are required")
	}
	return &SettingsHandler{settings: settings, store: store}, nil
}

func RegisterSettingsRoutes(router fiber.Router, settings repository.SettingsRepository, store StoreClient) error {
	h, err := NewSettingsHandler(settings, store)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/settings", h.GetSettings)
	v1.Put("/settings", h.UpdateSettings)
	v1.Post("/settings/test-connection", h.TestConnection)
	v1.Get("/store-status", h.GetStoreStatus)

	return nil
}

// updateSettingsRequest is a partial update: absent fields keep their value.
type updateSettingsRequest struct {
	Enabled     *bool   `json:"enabled"`
	EndpointURL *string `json:"endpointUrl"`
	APIKey      *string `json:"apiKey"`
	SIMSlot     *int    `json:"simSlot"`
}

type testConnectionRequest struct {
	EndpointURL string `json:"endpointUrl"`
	APIKey      string `json:"apiKey"`
}

type settingsResponse struct {
	Enabled     bool       `json:"enabled"`
	EndpointURL string     `json:"endpointUrl"`
	APIKeySet   bool       `json:"apiKeySet"`
	SIMSlot     int        `json:"simSlot"`
	Configured  bool       `json:"configured"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toSettingsResponse(settings))
}

func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var req updateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	settings, err := h.settings.Get(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	if req.Enabled != nil {
		settings.Enabled = *req.Enabled
	}
	if req.EndpointURL != nil {
		settings.EndpointURL = *req.EndpointURL
	}
	if req.APIKey != nil {
		settings.APIKey = *req.APIKey
	}
	if req.SIMSlot != nil {
		settings.SIMSlot = *req.SIMSlot
	}

	if err := h.settings.Save(c.UserContext(), settings); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toSettingsResponse(settings))
}

// TestConnection probes the given endpoint, or the saved one when the body
// leaves it empty. Nothing is persisted.
func (h *SettingsHandler) TestConnection(c *fiber.Ctx) error {
	var req testConnectionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	endpoint := storeapi.Endpoint{
		BaseURL: domain.NormalizeEndpointURL(req.EndpointURL),
		APIKey:  req.APIKey,
	}
	if endpoint.BaseURL == "" {
		settings, err := h.settings.Get(c.UserContext())
		if err != nil {
			return toHTTPError(err)
		}
		endpoint = storeapi.Endpoint{BaseURL: settings.EndpointURL, APIKey: settings.APIKey}
	}
	if endpoint.BaseURL == "" {
		return toHTTPError(fmt.Errorf("%w: endpointUrl is required", domain.ErrValidation))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": h.store.TestConnection(c.UserContext(), endpoint),
	})
}

// GetStoreStatus always asks the store; the status is never cached.
func (h *SettingsHandler) GetStoreStatus(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	if !settings.Configured() {
		return toHTTPError(fmt.Errorf("store endpoint: %w", domain.ErrNotConfigured))
	}

	status, err := h.store.FetchStoreStatus(c.UserContext(), storeapi.Endpoint{
		BaseURL: settings.EndpointURL,
		APIKey:  settings.APIKey,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(status)
}

func toSettingsResponse(s *domain.Settings) settingsResponse {
	resp := settingsResponse{
		Enabled:     s.Enabled,
		EndpointURL: s.EndpointURL,
		APIKeySet:   s.APIKey != "",
		SIMSlot:     s.SIMSlot,
		Configured:  s.Configured(),
	}
	if !s.UpdatedAt.IsZero() {
		updatedAt := s.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp
}
