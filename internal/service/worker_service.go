package service

import (
	"context"
	"fmt"
	"time"

	"github.com/teeshirtminute/tm-autoreply/internal/domain"
	"github.com/teeshirtminute/tm-autoreply/internal/observability"
	"github.com/teeshirtminute/tm-autoreply/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// MissedCallHandler answers one missed call.
type MissedCallHandler interface {
	HandleMissedCall(ctx context.Context, phoneNumber string) (*domain.DispatchOutcome, error)
}

var _ MissedCallHandler = (*Dispatcher)(nil)

type WorkerService struct {
	consumer    queue.Consumer
	handler     MissedCallHandler
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	maxAge      time.Duration
	now         func() time.Time
}

func NewWorkerService(
	consumer queue.Consumer,
	handler MissedCallHandler,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if consumer == nil || handler == nil {
		return nil, fmt.Errorf("consumer and handler are required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		consumer:    consumer,
		handler:     handler,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// SetMaxAge drops missed calls detected longer ago than d. Zero disables the check.
func (s *WorkerService) SetMaxAge(d time.Duration) {
	if s == nil || d < 0 {
		return
	}
	s.maxAge = d
}

// Start consumes the missed-call queue until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := s.consumer.Consume(groupCtx, queueName, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.MissedCallMessage) error {
	s.metrics.IncWorkerInFlight()
	defer s.metrics.DecWorkerInFlight()

	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}
	logger := observability.WithContextLogger(s.logger, ctx)

	if s.isStale(msg) {
		s.metrics.IncStaleMissedCall()
		logger.Warn("stale missed call skipped",
			zap.String("phone", msg.PhoneNumber),
			zap.Time("detectedAt", msg.DetectedAt),
			zap.Duration("maxAge", s.maxAge),
		)
		return nil
	}

	outcome, err := s.handler.HandleMissedCall(ctx, msg.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to dispatch missed call: %w", err)
	}

	if outcome == nil {
		logger.Info("missed call not answered", zap.String("phone", msg.PhoneNumber))
		return nil
	}
	logger.Info("missed call dispatched",
		zap.String("phone", outcome.PhoneNumber),
		zap.String("channel", outcome.Channel.String()),
		zap.String("result", outcome.Result.String()),
		zap.String("outcomeId", outcome.ID),
	)
	return nil
}

func (s *WorkerService) isStale(msg queue.MissedCallMessage) bool {
	if s.maxAge <= 0 || msg.DetectedAt.IsZero() {
		return false
	}
	return s.now().Sub(msg.DetectedAt) > s.maxAge
}
