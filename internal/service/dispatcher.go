package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teeshirtminute/tm-autoreply/internal/bridge"
	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/observability"
	"github.com/teeshirtminute/tm-autoreply/internal/provider"
	"github.com/teeshirtminute/tm-autoreply/internal/repository"
	"github.com/teeshirtminute/tm-autoreply/internal/storeapi"
	"go.uber.org/zap"
)

// History labels for failures that happen before any channel is tried.
const (
	labelNotConfigured  = "not configured"
	labelAPIErrorPrefix = "api error: "
)

// MessageFetcher fetches the reply decided by the store.
type MessageFetcher interface {
	FetchOutboundMessage(ctx context.Context, endpoint storeapi.Endpoint) (*domain.RemoteStatusMessage, error)
}

// Notifier shows a local notification to the shop owner.
type Notifier interface {
	Notify(ctx context.Context, n bridge.Notification) error
}

// SendSignal is armed right before the primary channel opens the
// conversation so the automation driver knows a send is expected.
type SendSignal interface {
	Arm(now time.Time)
	Disarm()
}

type DispatcherDeps struct {
	Settings repository.SettingsRepository
	History  repository.HistoryRepository
	Counter  repository.CounterStore
	Store    MessageFetcher
	Primary  provider.Channel
	Fallback provider.Channel
	Signal   SendSignal
	Notifier Notifier
}

// Dispatcher answers one missed call: fetch the store's reply, try the
// primary channel, fall back once, then record the outcome.
type Dispatcher struct {
	deps    DispatcherDeps
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewDispatcher(deps DispatcherDeps, logger *zap.Logger) (*Dispatcher, error) {
	switch {
	case deps.Settings == nil:
		return nil, errors.New("settings repository is required")
	case deps.History == nil:
		return nil, errors.New("history repository is required")
	case deps.Counter == nil:
		return nil, errors.New("counter store is required")
	case deps.Store == nil:
		return nil, errors.New("store api client is required")
	case deps.Primary == nil || deps.Fallback == nil:
		return nil, errors.New("primary and fallback channels are required")
	case deps.Signal == nil:
		return nil, errors.New("send signal is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// HandleMissedCall runs the dispatch flow for phoneNumber. It returns a nil
// outcome when the store asked not to answer. Only persistence failures are
// returned as errors; channel and store API failures become FAILED outcomes.
func (d *Dispatcher) HandleMissedCall(ctx context.Context, phoneNumber string) (*domain.DispatchOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.WithContextLogger(d.logger, ctx).With(zap.String("phone", phoneNumber))

	settings, err := d.deps.Settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.Configured() {
		logger.Warn("store endpoint not configured, recording failure")
		return d.record(ctx, phoneNumber, domain.ChannelWhatsApp, domain.ResultFailed, labelNotConfigured)
	}

	endpoint := storeapi.Endpoint{BaseURL: settings.EndpointURL, APIKey: settings.APIKey}
	msg, err := d.deps.Store.FetchOutboundMessage(ctx, endpoint)
	if err != nil {
		logger.Warn("failed to fetch outbound message", zap.Error(err))
		return d.record(ctx, phoneNumber, domain.ChannelWhatsApp, domain.ResultFailed, labelAPIErrorPrefix+err.Error())
	}
	if !msg.ShouldSend {
		logger.Info("store asked not to answer", zap.String("storeStatus", msg.StoreStatus))
		return nil, nil
	}

	primary := d.deps.Primary
	d.deps.Signal.Arm(d.now())
	err = primary.Send(ctx, provider.Message{
		PhoneNumber: phoneNumber,
		Text:        msg.WhatsAppText,
		SIMSlot:     settings.SIMSlot,
	})
	if err == nil {
		logger.Info("conversation opened", zap.String("channel", primary.Name().String()))
		return d.recordSent(ctx, phoneNumber, primary.Name(), msg.StoreStatus)
	}
	d.deps.Signal.Disarm()
	logger.Warn("primary channel failed, falling back",
		zap.String("channel", primary.Name().String()),
		zap.Bool("unavailable", provider.IsUnavailable(err)),
		zap.Error(err),
	)

	fallback := d.deps.Fallback
	err = fallback.Send(ctx, provider.Message{
		PhoneNumber: phoneNumber,
		Text:        msg.SMSText,
		SIMSlot:     settings.SIMSlot,
	})
	if err == nil {
		logger.Info("reply sent through fallback", zap.String("channel", fallback.Name().String()))
		return d.recordSent(ctx, phoneNumber, fallback.Name(), msg.StoreStatus)
	}

	logger.Error("fallback channel failed", zap.String("channel", fallback.Name().String()), zap.Error(err))
	return d.record(ctx, phoneNumber, domain.ChannelWhatsApp, domain.ResultFailed, msg.StoreStatus)
}

func (d *Dispatcher) recordSent(ctx context.Context, phoneNumber string, channel domain.Channel, label string) (*domain.DispatchOutcome, error) {
	outcome, err := d.record(ctx, phoneNumber, channel, domain.ResultSent, label)
	if err != nil {
		return nil, err
	}

	if _, err := d.deps.Counter.Increment(ctx, phoneNumber, outcome.Timestamp); err != nil {
		return outcome, fmt.Errorf("failed to increment daily counter: %w", err)
	}

	if d.deps.Notifier != nil {
		n := bridge.Notification{
			Title: "Message envoyé via " + channel.DisplayName(),
			Text:  "Réponse auto envoyée à " + domain.FormatForDisplay(phoneNumber),
		}
		if err := d.deps.Notifier.Notify(ctx, n); err != nil {
			d.logger.Warn("failed to post notification", zap.Error(err))
		}
	}

	return outcome, nil
}

func (d *Dispatcher) record(ctx context.Context, phoneNumber string, channel domain.Channel, result domain.Result, label string) (*domain.DispatchOutcome, error) {
	outcome := &domain.DispatchOutcome{
		PhoneNumber: phoneNumber,
		Timestamp:   d.now().UTC(),
		Channel:     channel,
		Result:      result,
		StoreStatus: label,
	}
	if err := d.deps.History.Add(ctx, outcome); err != nil {
		return nil, fmt.Errorf("failed to record dispatch outcome: %w", err)
	}
	d.metrics.IncDispatchOutcome(channel.String(), result.String())
	return outcome, nil
}
