package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQPublisher publishes with broker confirms: Publish returns only once
// the broker has taken responsibility for the missed call.
type RabbitMQPublisher struct {
	client *RabbitMQ
}

var _ Publisher = (*RabbitMQPublisher)(nil)

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, msg MissedCallMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid missed call message: %w", err)
	}

	publishing, err := toPublishing(msg)
	if err != nil {
		return err
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, publishing)
	if err != nil {
		return fmt.Errorf("failed to publish missed call to queue %q: %w", queue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for broker confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker refused missed call %q", msg.CorrelationID)
	}

	return nil
}

func toPublishing(msg MissedCallMessage) (amqp.Publishing, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal missed call message: %w", err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     msg.DetectedAt.UTC(),
		MessageId:     msg.CorrelationID,
		CorrelationId: msg.CorrelationID,
		Type:          "missed_call",
		Body:          payload,
	}, nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
