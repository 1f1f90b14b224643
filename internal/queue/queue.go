package queue

import (
	"context"
	"fmt"
)

// Publisher publishes missed-call messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg MissedCallMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg MissedCallMessage) error

// Consumer consumes missed-call messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// MissedCallsQueue is the single work queue between the call monitor and the
// dispatch workers.
const MissedCallsQueue = "missed_calls"

// DLQName returns the dead-letter queue name, e.g. dlq.missed_calls.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// WorkQueueNames returns all work queues.
func WorkQueueNames() []string {
	return []string{MissedCallsQueue}
}

// DLQNames returns all dead-letter queues.
func DLQNames() []string {
	return []string{DLQName(MissedCallsQueue)}
}
