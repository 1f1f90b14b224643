package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var errDeliveriesClosed = errors.New("delivery channel closed")

type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

var _ Consumer = (*RabbitMQConsumer)(nil)

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

// Consume keeps a subscription on queue alive until ctx is canceled,
// resubscribing with backoff whenever the channel or connection drops.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	wait := reconnectBackoff
	for {
		err := c.subscribe(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			wait = reconnectBackoff
			continue
		}

		c.logger.Warn("rabbitmq subscription lost",
			zap.String("queue", queue),
			zap.Duration("retryIn", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		wait = min(wait*2, maxBackoff)
	}
}

func (c *RabbitMQConsumer) subscribe(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			if err := c.settle(d, c.handle(ctx, d, handler)); err != nil {
				return err
			}
		}
	}
}

// verdict is what happens to a delivery once it has been looked at.
type verdict int

const (
	verdictAck verdict = iota
	verdictDeadLetter
)

// handle runs at most one dispatch per missed call. Anything that might
// already have reached the customer is dead-lettered, never requeued.
func (c *RabbitMQConsumer) handle(ctx context.Context, d amqp.Delivery, handler MessageHandler) verdict {
	msg, err := decodeDelivery(d)
	if err != nil {
		c.logger.Warn("dead-lettering undecodable missed call",
			zap.String("messageId", d.MessageId),
			zap.Error(err),
		)
		return verdictDeadLetter
	}
	logger := c.logger.With(
		zap.String("correlationId", msg.CorrelationID),
		zap.String("phone", msg.PhoneNumber),
	)

	if d.Redelivered {
		logger.Warn("dead-lettering redelivered missed call, it may already have been answered")
		return verdictDeadLetter
	}

	if err := handler(ctx, msg); err != nil {
		logger.Error("dead-lettering missed call: handler failed", zap.Error(err))
		return verdictDeadLetter
	}
	return verdictAck
}

func (c *RabbitMQConsumer) settle(d amqp.Delivery, v verdict) error {
	switch v {
	case verdictAck:
		if err := d.Ack(false); err != nil {
			return fmt.Errorf("failed to ack delivery: %w", err)
		}
	default:
		if err := d.Reject(false); err != nil {
			return fmt.Errorf("failed to reject delivery: %w", err)
		}
	}
	return nil
}

func decodeDelivery(d amqp.Delivery) (MissedCallMessage, error) {
	var msg MissedCallMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return MissedCallMessage{}, fmt.Errorf("invalid json: %w", err)
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = d.CorrelationId
	}
	if err := msg.Validate(); err != nil {
		return MissedCallMessage{}, err
	}
	return msg, nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
