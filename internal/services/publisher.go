package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/internal/infrastructure/queue"
)

const (
	minPublishDelay = 50 * time.Millisecond
	publishJitter   = 0.05
)

// MessageSender is the sending half of the FIFO queue.
type MessageSender interface {
	Send(ctx context.Context, msg queue.OutgoingMessage) (string, error)
}

// PublisherConfig controls retry behaviour.
type PublisherConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Publisher turns committed mutations into FIFO queue messages grouped by owner.
type Publisher struct {
	sender MessageSender
	logger *zap.Logger
	cfg    PublisherConfig

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

func NewPublisher(sender MessageSender, cfg PublisherConfig, logger *zap.Logger) *Publisher {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 250 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		sender: sender,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		sleep:  sleepContext,
		jitter: func() float64 { return rand.Float64()*2 - 1 },
	}
}

// DeduplicationID is hex(sha256("owner:entity:timestamp")).
func DeduplicationID(ownerID, entityID, timestamp string) string {
	sum := sha256.Sum256([]byte(ownerID + ":" + entityID + ":" + timestamp))
	return hex.EncodeToString(sum[:])
}

// Publish builds the event for a mutation and sends it. The timestamp, and
// therefore the deduplication id, is fixed before the first attempt.
func (p *Publisher) Publish(ctx context.Context, ownerID string, action domain.EventAction, kind domain.EntityKind, entityID string, data map[string]any) (domain.Event, error) {
	event := domain.NewEvent(ownerID, action, kind, entityID, p.now())
	event.Data = data
	return event, p.Send(ctx, event)
}

// Send delivers an already stamped event with bounded exponential backoff.
func (p *Publisher) Send(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return domain.WrapError(domain.ErrCodePublishFailed, "encode event", err)
	}
	msg := queue.OutgoingMessage{
		Body:            string(body),
		GroupID:         event.OwnerID,
		DeduplicationID: DeduplicationID(event.OwnerID, event.EntityID, event.Timestamp),
	}

	attempts := p.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		messageID, err := p.sender.Send(ctx, msg)
		if err == nil {
			p.logger.Debug("event published",
				zap.String("owner_id", event.OwnerID),
				zap.String("event_type", event.EventType),
				zap.String("entity_id", event.EntityID),
				zap.String("message_id", messageID),
				zap.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		if attempt == attempts || errors.Is(err, context.Canceled) {
			break
		}
		delay := p.backoff(attempt)
		p.logger.Warn("event publish failed, retrying",
			zap.String("owner_id", event.OwnerID),
			zap.String("event_type", event.EventType),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := p.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	return domain.WrapError(domain.ErrCodePublishFailed,
		fmt.Sprintf("publish %s for %s/%s", event.EventType, event.OwnerID, event.EntityID), lastErr)
}

// backoff is base * 2^(attempt-1) with +/-5% jitter, never below 50ms.
func (p *Publisher) backoff(attempt int) time.Duration {
	delay := float64(p.cfg.BaseDelay) * float64(uint64(1)<<uint(attempt-1))
	delay += delay * publishJitter * p.jitter()
	if d := time.Duration(delay); d > minPublishDelay {
		return d
	}
	return minPublishDelay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
