package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const defaultMemoryBuffer = 64

// ErrQueueFull is returned when an in-memory queue cannot accept more work.
var ErrQueueFull = errors.New("queue is full")

// MemoryQueue is an in-process Publisher and Consumer backed by buffered
// channels. Messages are lost on restart.
type MemoryQueue struct {
	buffer int
	logger *zap.Logger

	mu     sync.Mutex
	queues map[string]chan MissedCallMessage
	closed bool
}

var (
	_ Publisher = (*MemoryQueue)(nil)
	_ Consumer  = (*MemoryQueue)(nil)
)

func NewMemoryQueue(buffer int, logger *zap.Logger) *MemoryQueue {
	if buffer < 1 {
		buffer = defaultMemoryBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryQueue{
		buffer: buffer,
		logger: logger,
		queues: make(map[string]chan MissedCallMessage),
	}
}

func (q *MemoryQueue) Publish(ctx context.Context, queue string, msg MissedCallMessage) error {
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid missed call message: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// The send never blocks, so holding the lock keeps it ordered with Close.
	q.mu.Lock()
	defer q.mu.Unlock()

	ch, err := q.queueLocked(queue)
	if err != nil {
		return err
	}

	select {
	case ch <- msg:
		return nil
	default:
		return fmt.Errorf("publish to %q: %w", queue, ErrQueueFull)
	}
}

// Consume delivers messages to handler until ctx is canceled or the queue is
// closed. Handler errors are logged and the message is dropped.
func (q *MemoryQueue) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	ch, err := q.queue(queue)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := handler(ctx, msg); err != nil {
				q.logger.Error("dropping message: handler failed",
					zap.Error(err),
					zap.String("queue", queue),
					zap.String("correlationId", msg.CorrelationID),
				)
			}
		}
	}
}

// Len returns the number of buffered messages in queue.
func (q *MemoryQueue) Len(queue string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[queue])
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for _, ch := range q.queues {
		close(ch)
	}
	return nil
}

func (q *MemoryQueue) queue(name string) (chan MissedCallMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queueLocked(name)
}

func (q *MemoryQueue) queueLocked(name string) (chan MissedCallMessage, error) {
	if q.closed {
		return nil, fmt.Errorf("queue %q is closed", name)
	}
	ch, ok := q.queues[name]
	if !ok {
		ch = make(chan MissedCallMessage, q.buffer)
		q.queues[name] = ch
	}
	return ch, nil
}
