package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/repository"
)

const (
	defaultListKey  = "catalog:deadletter"
	defaultMaxItems = 1000
)

type deadLetterRepository struct {
	client   redislib.Cmdable
	listKey  string
	prefix   string
	maxItems int64
	ttl      time.Duration
}

// NewDeadLetterRepository creates a Redis-backed dead-letter sink. Letters
// are pushed to a capped list; a per-message marker key with ttl keeps
// redeliveries of the same message from being recorded twice.
func NewDeadLetterRepository(client redislib.Cmdable, maxItems int, ttl time.Duration) repository.DeadLetterRepository {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &deadLetterRepository{
		client:   client,
		listKey:  defaultListKey,
		prefix:   defaultListKey + ":seen:",
		maxItems: int64(maxItems),
		ttl:      ttl,
	}
}

func (r *deadLetterRepository) Record(ctx context.Context, letter domain.DeadLetter) (bool, error) {
	if letter.MessageID == "" {
		return false, domain.ErrInvalidPayload
	}
	if letter.RecordedAt.IsZero() {
		letter.RecordedAt = time.Now().UTC()
	}

	fresh, err := r.client.SetNX(ctx, r.key(letter.MessageID), letter.RecordedAt.Unix(), r.ttl).Result()
	if err != nil {
		return false, err
	}
	if !fresh {
		return false, nil
	}

	payload, err := json.Marshal(letter)
	if err != nil {
		return false, err
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.listKey, payload)
	pipe.LTrim(ctx, r.listKey, 0, r.maxItems-1)
	if _, err := pipe.Exec(ctx); err != nil {
		// Drop the marker so a redelivery can record the letter again.
		if delErr := r.client.Del(context.WithoutCancel(ctx), r.key(letter.MessageID)).Err(); delErr != nil {
			return false, errors.Join(err, fmt.Errorf("release dead letter marker: %w", delErr))
		}
		return false, err
	}
	return true, nil
}

func (r *deadLetterRepository) List(ctx context.Context, limit int) ([]domain.DeadLetter, error) {
	if limit <= 0 || int64(limit) > r.maxItems {
		limit = int(r.maxItems)
	}
	raw, err := r.client.LRange(ctx, r.listKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	letters := make([]domain.DeadLetter, 0, len(raw))
	for _, item := range raw {
		var letter domain.DeadLetter
		if err := json.Unmarshal([]byte(item), &letter); err != nil {
			return nil, err
		}
		letters = append(letters, letter)
	}
	return letters, nil
}

func (r *deadLetterRepository) key(messageID string) string {
	return fmt.Sprintf("%s%s", r.prefix, messageID)
}
