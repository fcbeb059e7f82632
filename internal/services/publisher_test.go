package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/internal/infrastructure/queue"
)

type fakeSender struct {
	failures int
	err      error
	sent     []queue.OutgoingMessage
	calls    int
}

func (f *fakeSender) Send(_ context.Context, msg queue.OutgoingMessage) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "mid", nil
}

func newTestPublisher(sender MessageSender, retries int) (*Publisher, *[]time.Duration) {
	var delays []time.Duration
	p := NewPublisher(sender, PublisherConfig{MaxRetries: retries, BaseDelay: 250 * time.Millisecond}, nil)
	p.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC) }
	p.jitter = func() float64 { return 0 }
	p.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return p, &delays
}

func TestPublishRetriesWithExponentialBackoff(t *testing.T) {
	sender := &fakeSender{failures: 2, err: errors.New("throttled")}
	p, delays := newTestPublisher(sender, 3)

	event, err := p.Publish(context.Background(), "o1", domain.ActionUpdated, domain.KindProduct, "p1", nil)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if sender.calls != 3 || len(sender.sent) != 1 {
		t.Fatalf("expected success on third attempt, calls=%d", sender.calls)
	}
	want := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond}
	if len(*delays) != 2 || (*delays)[0] != want[0] || (*delays)[1] != want[1] {
		t.Fatalf("unexpected delays %v", *delays)
	}

	msg := sender.sent[0]
	if msg.GroupID != "o1" || msg.DeduplicationID != DeduplicationID("o1", "p1", event.Timestamp) {
		t.Fatalf("unexpected message attributes %+v", msg)
	}
	if event.EventType != "PRODUCT_UPDATED" {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
}

func TestPublishExhaustionIsPublishFailed(t *testing.T) {
	cause := errors.New("queue unavailable")
	sender := &fakeSender{failures: 100, err: cause}
	p, delays := newTestPublisher(sender, 3)

	_, err := p.Publish(context.Background(), "o1", domain.ActionCreated, domain.KindCategory, "c1", nil)
	if !errors.Is(err, domain.ErrPublishFailed) || !errors.Is(err, cause) {
		t.Fatalf("expected PublishFailed wrapping cause, got %v", err)
	}
	if sender.calls != 4 || len(*delays) != 3 {
		t.Fatalf("expected 4 attempts and 3 sleeps, got %d and %d", sender.calls, len(*delays))
	}
}

func TestPublishStopsWhenContextCancelled(t *testing.T) {
	sender := &fakeSender{failures: 100, err: errors.New("down")}
	p := NewPublisher(sender, PublisherConfig{MaxRetries: 3, BaseDelay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Publish(ctx, "o1", domain.ActionDeleted, domain.KindProduct, "p1", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", sender.calls)
	}
}

func TestBackoffJitterAndFloor(t *testing.T) {
	p := NewPublisher(&fakeSender{}, PublisherConfig{BaseDelay: 10 * time.Millisecond}, nil)
	p.jitter = func() float64 { return 1 }
	if d := p.backoff(1); d != minPublishDelay {
		t.Fatalf("expected floor, got %v", d)
	}

	p = NewPublisher(&fakeSender{}, PublisherConfig{BaseDelay: time.Second}, nil)
	p.jitter = func() float64 { return -1 }
	if d := p.backoff(3); d != 3800*time.Millisecond {
		t.Fatalf("expected 4s minus 5%%, got %v", d)
	}
}

func TestDeduplicationIDProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("deterministic and 64 hex chars", prop.ForAll(
		func(owner, entity, ts string) bool {
			id := DeduplicationID(owner, entity, ts)
			return id == DeduplicationID(owner, entity, ts) && len(id) == 64
		},
		gen.Identifier(), gen.Identifier(), gen.AlphaString(),
	))

	properties.Property("distinct timestamps give distinct ids", prop.ForAll(
		func(owner, entity string, a, b int64) bool {
			ta := time.Unix(0, a).UTC().Format(domain.EventTimestampLayout)
			tb := time.Unix(0, b).UTC().Format(domain.EventTimestampLayout)
			if a == b {
				return DeduplicationID(owner, entity, ta) == DeduplicationID(owner, entity, tb)
			}
			return DeduplicationID(owner, entity, ta) != DeduplicationID(owner, entity, tb)
		},
		gen.Identifier(), gen.Identifier(),
		gen.Int64Range(0, 1<<50), gen.Int64Range(0, 1<<50),
	))

	distinctEntities := gopter.CombineGens(gen.Identifier(), gen.Identifier()).
		SuchThat(func(pair []interface{}) bool { return pair[0].(string) != pair[1].(string) })

	properties.Property("distinct entities of one owner and timestamp give distinct ids", prop.ForAll(
		func(owner string, entities []interface{}, at int64) bool {
			ts := time.Unix(0, at).UTC().Format(domain.EventTimestampLayout)
			e1, e2 := entities[0].(string), entities[1].(string)
			return DeduplicationID(owner, e1, ts) != DeduplicationID(owner, e2, ts)
		},
		gen.Identifier(), distinctEntities, gen.Int64Range(0, 1<<50),
	))

	properties.TestingRun(t)
}
