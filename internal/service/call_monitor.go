package service

import (
	"context"
	"fmt"
	"time"

	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/observability"
	"github.com/teeshirtminute/tm-autoreply/internal/queue"
	"github.com/teeshirtminute/tm-autoreply/internal/repository"
	"github.com/teeshirtminute/tm-autoreply/internal/tracker"
	"go.uber.org/zap"
)

// CallTracker turns phone state changes into missed-call events.
type CallTracker interface {
	Observe(change domain.PhoneStateChange) (*domain.MissedCallEvent, bool)
	Reset()
}

var _ CallTracker = (*tracker.Tracker)(nil)

// MonitorResult reports what a phone state change led to.
type MonitorResult struct {
	Ignored       bool
	Missed        bool
	Queued        bool
	PhoneNumber   string
	CorrelationID string
}

// CallMonitor receives the telephony broadcasts of the handset and queues
// dispatchable missed calls.
type CallMonitor struct {
	settings  repository.SettingsRepository
	tracker   CallTracker
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewCallMonitor(
	settings repository.SettingsRepository,
	callTracker CallTracker,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*CallMonitor, error) {
	if settings == nil || callTracker == nil || publisher == nil {
		return nil, fmt.Errorf("settings, tracker and publisher are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CallMonitor{
		settings:  settings,
		tracker:   callTracker,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (m *CallMonitor) SetMetrics(metrics *observability.Metrics) {
	if m == nil {
		return
	}
	m.metrics = metrics
}

// HandlePhoneState feeds one state change. While the feature is disabled the
// change is ignored entirely and the tracker keeps its previous state.
func (m *CallMonitor) HandlePhoneState(ctx context.Context, change domain.PhoneStateChange) (MonitorResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !change.State.IsValid() {
		return MonitorResult{}, fmt.Errorf("%w: invalid phone state %q", domain.ErrValidation, change.State)
	}

	settings, err := m.settings.Get(ctx)
	if err != nil {
		return MonitorResult{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.Enabled {
		return MonitorResult{Ignored: true}, nil
	}

	if change.OccurredAt.IsZero() {
		change.OccurredAt = m.now()
	}

	event, ok := m.tracker.Observe(change)
	if !ok {
		return MonitorResult{}, nil
	}

	result := MonitorResult{Missed: true, PhoneNumber: event.PhoneNumber}
	if !domain.IsDispatchable(event.PhoneNumber) {
		m.logger.Info("missed call from non-mobile number, not answering",
			zap.String("phone", event.PhoneNumber),
		)
		return result, nil
	}
	m.metrics.IncMissedCall()

	ctx, correlationID := observability.EnsureCorrelationID(ctx)
	msg := queue.MissedCallMessage{
		PhoneNumber:   event.PhoneNumber,
		DetectedAt:    event.DetectedAt,
		CorrelationID: correlationID,
	}
	if err := m.publisher.Publish(ctx, queue.MissedCallsQueue, msg); err != nil {
		return result, fmt.Errorf("failed to queue missed call: %w", err)
	}

	m.logger.Info("missed call queued",
		zap.String("phone", event.PhoneNumber),
		zap.String("correlationId", correlationID),
	)
	result.Queued = true
	result.CorrelationID = correlationID
	return result, nil
}

// Boot runs once at process start, standing in for the device boot signal.
// It clears any half-observed call and reports whether monitoring is armed.
func (m *CallMonitor) Boot(ctx context.Context) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	m.tracker.Reset()

	settings, err := m.settings.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.Enabled {
		m.logger.Info("call monitoring armed", zap.Bool("storeConfigured", settings.Configured()))
	} else {
		m.logger.Info("call monitoring disabled")
	}
	return settings.Enabled, nil
}
