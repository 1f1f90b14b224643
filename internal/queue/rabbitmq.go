package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	dlxExchangeName  = "autoreply.dlx"
	connectionName   = "tm-autoreply"
	connectTimeout   = 15 * time.Second
	heartbeat        = 10 * time.Second
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
)

type RabbitMQOptions struct {
	URL string
	// MessageTTL expires missed calls nobody picked up in time; expired
	// messages are dead-lettered. Zero keeps them forever.
	MessageTTL time.Duration
	Logger     *zap.Logger
}

// RabbitMQ owns one broker connection shared by the publisher and the
// consumers, redialing it with backoff when it drops.
type RabbitMQ struct {
	url        string
	messageTTL time.Duration
	logger     *zap.Logger

	mu     sync.RWMutex
	dialMu sync.Mutex
	conn   *amqp.Connection
}

func NewRabbitMQ(opts RabbitMQOptions) (*RabbitMQ, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	if opts.MessageTTL < 0 {
		return nil, fmt.Errorf("rabbitmq message ttl must not be negative")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := &RabbitMQ{
		url:        opts.URL,
		messageTTL: opts.MessageTTL,
		logger:     opts.Logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if _, err := r.connection(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	return conn.Close()
}

// channel opens a channel with the topology declared. A channel failure on a
// live connection drops that connection and retries once on a fresh one.
func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		conn, err := r.connection(ctx)
		if err != nil {
			return nil, err
		}

		ch, err := conn.Channel()
		if err != nil {
			lastErr = err
			r.logger.Warn("rabbitmq channel open failed, redialing", zap.Error(err))
			r.drop(conn)
			continue
		}

		if err := declareTopology(ch, r.messageTTL); err != nil {
			_ = ch.Close()
			return nil, err
		}
		return ch, nil
	}

	return nil, fmt.Errorf("failed to open rabbitmq channel: %w", lastErr)
}

func (r *RabbitMQ) connection(ctx context.Context) (*amqp.Connection, error) {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()

	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}

	return r.dial(ctx)
}

func (r *RabbitMQ) drop(conn *amqp.Connection) {
	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
	}
	r.mu.Unlock()

	if !conn.IsClosed() {
		_ = conn.Close()
	}
}

func (r *RabbitMQ) dial(ctx context.Context) (*amqp.Connection, error) {
	r.dialMu.Lock()
	defer r.dialMu.Unlock()

	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}

	wait := reconnectBackoff
	for attempt := 1; ; attempt++ {
		newConn, err := amqp.DialConfig(r.url, amqp.Config{
			Heartbeat:  heartbeat,
			Locale:     "en_US",
			Properties: amqp.Table{"connection_name": connectionName},
		})
		if err == nil {
			r.mu.Lock()
			r.conn = newConn
			r.mu.Unlock()

			if attempt > 1 {
				r.logger.Info("rabbitmq connected", zap.Int("attempts", attempt))
			}
			return newConn, nil
		}

		r.logger.Warn("rabbitmq dial failed",
			zap.Int("attempt", attempt),
			zap.Duration("retryIn", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq dial canceled: %w", ctx.Err())
		case <-time.After(wait):
		}

		wait = min(wait*2, maxBackoff)
	}
}

// queueArguments routes rejected and expired messages of queue to its DLQ.
func queueArguments(queue string, messageTTL time.Duration) amqp.Table {
	args := amqp.Table{
		"x-dead-letter-exchange":    dlxExchangeName,
		"x-dead-letter-routing-key": queue,
	}
	if messageTTL > 0 {
		args["x-message-ttl"] = messageTTL.Milliseconds()
	}
	return args
}

func declareTopology(ch *amqp.Channel, messageTTL time.Duration) error {
	if err := ch.ExchangeDeclare(dlxExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlx exchange: %w", err)
	}

	for _, queueName := range WorkQueueNames() {
		dlqName := DLQName(queueName)

		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare dlq %q: %w", dlqName, err)
		}
		if err := ch.QueueBind(dlqName, queueName, dlxExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind dlq %q: %w", dlqName, err)
		}
		if _, err := ch.QueueDeclare(queueName, true, false, false, false, queueArguments(queueName, messageTTL)); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", queueName, err)
		}
	}

	return nil
}
