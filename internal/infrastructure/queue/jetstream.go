package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"
)

// JetStreamConfig describes the stream and durable pull consumer.
type JetStreamConfig struct {
	Stream      string
	Subject     string
	Durable     string
	AckWait     time.Duration
	MaxDeliver  int
	DedupWindow time.Duration
}

// pullSubscription is the part of *nats.Subscription the queue polls with.
type pullSubscription interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
}

// JetStreamQueue is a FIFO queue on a JetStream stream. Nats-Msg-Id carries
// the deduplication id; unacknowledged messages are redelivered after AckWait
// and dropped after MaxDeliver attempts. The stream keeps one publish order
// for its subject, which already holds every owner's events in order, so the
// group id is not sent.
type JetStreamQueue struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	sub  pullSubscription
	cfg  JetStreamConfig
	ack  func(ctx context.Context, msg *nats.Msg) error

	mu       sync.Mutex
	inflight map[string]*nats.Msg
}

// ConnectJetStream dials NATS, ensures the stream and binds the pull consumer.
func ConnectJetStream(url string, cfg JetStreamConfig) (*JetStreamQueue, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, err
	}
	q, err := NewJetStreamQueue(conn, js, cfg)
	if err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, err
	}
	return q, nil
}

// NewJetStreamQueue wires an existing JetStream context.
func NewJetStreamQueue(conn *nats.Conn, js nats.JetStreamContext, cfg JetStreamConfig) (*JetStreamQueue, error) {
	if cfg.AckWait <= 0 {
		cfg.AckWait = time.Minute
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 5
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 5 * time.Minute
	}
	if err := EnsureStream(js, cfg); err != nil {
		return nil, err
	}

	sub, err := js.PullSubscribe(cfg.Subject, cfg.Durable,
		nats.BindStream(cfg.Stream),
		nats.ManualAck(),
		nats.AckWait(cfg.AckWait),
		nats.MaxDeliver(cfg.MaxDeliver),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", cfg.Subject, err)
	}

	return &JetStreamQueue{
		conn:     conn,
		js:       js,
		sub:      sub,
		cfg:      cfg,
		ack:      ackSync,
		inflight: make(map[string]*nats.Msg),
	}, nil
}

func ackSync(ctx context.Context, msg *nats.Msg) error {
	return msg.AckSync(nats.Context(ctx))
}

// EnsureStream creates the stream when it does not exist yet.
func EnsureStream(js nats.JetStreamContext, cfg JetStreamConfig) error {
	if _, err := js.StreamInfo(cfg.Stream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return err
		}
		if _, addErr := js.AddStream(&nats.StreamConfig{
			Name:       cfg.Stream,
			Subjects:   []string{cfg.Subject},
			Retention:  nats.LimitsPolicy,
			Storage:    nats.FileStorage,
			Replicas:   1,
			Duplicates: cfg.DedupWindow,
		}); addErr != nil {
			return addErr
		}
	}
	return nil
}

var _ Queue = (*JetStreamQueue)(nil)

func (q *JetStreamQueue) Send(ctx context.Context, msg OutgoingMessage) (string, error) {
	out := nats.NewMsg(q.cfg.Subject)
	out.Data = []byte(msg.Body)

	ack, err := q.js.PublishMsg(out, nats.MsgId(msg.DeduplicationID), nats.Context(ctx))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", ack.Stream, ack.Sequence), nil
}

func (q *JetStreamQueue) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	wait := opts.Wait
	if wait <= 0 {
		wait = time.Second
	}
	fetchCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	msgs, err := q.sub.Fetch(clampBatch(opts.MaxMessages), nats.Context(fetchCtx))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	messages := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		handle := nuid.Next()
		q.inflight[handle] = m

		message := Message{Handle: handle, Body: string(m.Data)}
		if meta, err := m.Metadata(); err == nil {
			message.ID = fmt.Sprintf("%s:%d", meta.Stream, meta.Sequence.Stream)
			message.ReceiveCount = int(meta.NumDelivered)
		}
		if message.ID == "" {
			message.ID = handle
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (q *JetStreamQueue) Acknowledge(ctx context.Context, handles []string) ([]string, error) {
	if len(handles) > MaxBatch {
		return handles, ErrBatchTooLarge
	}

	var failed []string
	for _, handle := range handles {
		q.mu.Lock()
		msg, ok := q.inflight[handle]
		delete(q.inflight, handle)
		q.mu.Unlock()

		if !ok {
			failed = append(failed, handle)
			continue
		}
		if err := q.ack(ctx, msg); err != nil {
			failed = append(failed, handle)
		}
	}
	return failed, nil
}

// Release forgets handles that will not be acknowledged; the server
// redelivers them once AckWait expires.
func (q *JetStreamQueue) Release(handles []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, handle := range handles {
		delete(q.inflight, handle)
	}
}

func (q *JetStreamQueue) Ping(ctx context.Context) error {
	if q.conn != nil && !q.conn.IsConnected() {
		return nats.ErrConnectionClosed
	}
	_, err := q.js.StreamInfo(q.cfg.Stream, nats.Context(ctx))
	return err
}

// Close drains the connection.
func (q *JetStreamQueue) Close() error {
	if q == nil || q.conn == nil {
		return nil
	}
	if err := q.conn.Drain(); err != nil {
		q.conn.Close()
		return err
	}
	return nil
}
