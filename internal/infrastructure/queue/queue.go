package queue

import (
	"context"
	"errors"
	"time"
)

// MaxBatch is the largest receive or delete batch a FIFO queue accepts.
const MaxBatch = 10

// ErrBatchTooLarge is returned when more than MaxBatch handles are acknowledged at once.
var ErrBatchTooLarge = errors.New("queue: batch exceeds 10 entries")

// Message is a received queue message. Handle is what Acknowledge expects.
type Message struct {
	ID           string
	Body         string
	Handle       string
	ReceiveCount int
}

// OutgoingMessage is one FIFO send. GroupID orders, DeduplicationID collapses retries.
type OutgoingMessage struct {
	Body            string
	GroupID         string
	DeduplicationID string
}

// ReceiveOptions bounds a single poll.
type ReceiveOptions struct {
	MaxMessages int
	Wait        time.Duration
	Visibility  time.Duration
}

// Queue is the FIFO transport shared by the publisher and the consumer.
type Queue interface {
	Send(ctx context.Context, msg OutgoingMessage) (string, error)
	Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error)
	// Acknowledge deletes up to MaxBatch messages and returns the handles
	// the queue refused.
	Acknowledge(ctx context.Context, handles []string) ([]string, error)
	Ping(ctx context.Context) error
}

func clampBatch(n int) int {
	if n <= 0 || n > MaxBatch {
		return MaxBatch
	}
	return n
}
