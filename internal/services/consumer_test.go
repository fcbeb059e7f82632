package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/internal/infrastructure/queue"
)

type fakeSource struct {
	mu        sync.Mutex
	batches   [][]queue.Message
	receives  int
	ackCalls  [][]string
	failBatch int // 1-based index of the Acknowledge call that errors
	released  []string
}

func (f *fakeSource) Receive(_ context.Context, _ queue.ReceiveOptions) ([]queue.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receives++
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeSource) Acknowledge(_ context.Context, handles []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ackCalls = append(f.ackCalls, append([]string(nil), handles...))
	if f.failBatch == len(f.ackCalls) {
		return nil, errors.New("delete batch failed")
	}
	return nil, nil
}

func (f *fakeSource) Release(handles []string) {
	f.released = append(f.released, handles...)
}

func (f *fakeSource) acked() map[string]bool {
	out := map[string]bool{}
	for _, call := range f.ackCalls {
		for _, h := range call {
			out[h] = true
		}
	}
	return out
}

type fakeAssembler struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls map[string]int
}

func (f *fakeAssembler) Assemble(_ context.Context, ownerID string) (*domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[ownerID]++
	if f.fail[ownerID] {
		return nil, domain.WrapError(domain.ErrCodeAssemblyFailed, "boom", nil)
	}
	return domain.NewSnapshot(ownerID, nil, time.Unix(0, 0)), nil
}

type fakeWriter struct {
	mu     sync.Mutex
	fail   map[string]bool
	writes []string
}

func (f *fakeWriter) Write(_ context.Context, ownerID string, _ *domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[ownerID] {
		return domain.WrapError(domain.ErrCodeWriteFailed, "boom", nil)
	}
	f.writes = append(f.writes, ownerID)
	return nil
}

type fakeDeadLetters struct {
	letters []domain.DeadLetter
}

func (f *fakeDeadLetters) Record(_ context.Context, letter domain.DeadLetter) (bool, error) {
	f.letters = append(f.letters, letter)
	return true, nil
}

func (f *fakeDeadLetters) List(context.Context, int) ([]domain.DeadLetter, error) {
	return f.letters, nil
}

func eventMessage(handle, owner string) queue.Message {
	return queue.Message{
		ID:     "id-" + handle,
		Handle: handle,
		Body:   fmt.Sprintf(`{"owner_id":%q,"event_type":"PRODUCT_UPDATED","entity_type":"PRODUCT","entity_id":"p","timestamp":"2024-01-01T00:00:00Z"}`, owner),
	}
}

func TestRunOnceAcknowledgesOnlySucceededOwners(t *testing.T) {
	source := &fakeSource{batches: [][]queue.Message{{
		eventMessage("a1", "A"),
		eventMessage("b1", "B"),
		eventMessage("a2", "A"),
		eventMessage("c1", "C"),
	}}}
	assembler := &fakeAssembler{fail: map[string]bool{"B": true}}
	writer := &fakeWriter{fail: map[string]bool{"C": true}}
	consumer := NewConsumer(source, assembler, writer, nil, nil, ConsumerConfig{})

	result, err := consumer.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}

	acked := source.acked()
	if !acked["a1"] || !acked["a2"] || acked["b1"] || acked["c1"] {
		t.Fatalf("unexpected acknowledged set %v", acked)
	}
	if assembler.calls["A"] != 1 {
		t.Fatalf("owner A should be assembled once per batch, got %d", assembler.calls["A"])
	}
	if result.Owners != 3 || result.FailedOwners != 2 || result.Acknowledged != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(source.released) != 2 {
		t.Fatalf("expected unacknowledged handles released, got %v", source.released)
	}
}

func TestRunOnceIsolatesMalformedMessages(t *testing.T) {
	source := &fakeSource{batches: [][]queue.Message{{
		{ID: "m-empty", Handle: "h-empty", Body: ""},
		{ID: "m-bad", Handle: "h-bad", Body: "{not json"},
		{ID: "m-noowner", Handle: "h-noowner", Body: `{"event_type":"PRODUCT_CREATED"}`},
		eventMessage("ok", "A"),
	}}}
	deadLetters := &fakeDeadLetters{}
	consumer := NewConsumer(source, &fakeAssembler{}, &fakeWriter{}, deadLetters, nil, ConsumerConfig{})

	result, err := consumer.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}

	acked := source.acked()
	if len(acked) != 1 || !acked["ok"] {
		t.Fatalf("only the valid message should be acknowledged, got %v", acked)
	}
	if result.Malformed != 3 || len(deadLetters.letters) != 3 {
		t.Fatalf("expected 3 dead letters, got %d (result %+v)", len(deadLetters.letters), result)
	}
	if deadLetters.letters[1].MessageID != "m-bad" || deadLetters.letters[1].Body != "{not json" {
		t.Fatalf("unexpected dead letter %+v", deadLetters.letters[1])
	}
}

func TestAcknowledgeChunksAndSurvivesFailedBatch(t *testing.T) {
	source := &fakeSource{failBatch: 1}
	consumer := NewConsumer(source, &fakeAssembler{}, &fakeWriter{}, nil, nil, ConsumerConfig{})

	handles := make([]string, 23)
	for i := range handles {
		handles[i] = fmt.Sprintf("h%d", i)
	}
	acked, failed := consumer.acknowledge(context.Background(), handles)

	if len(source.ackCalls) != 3 {
		t.Fatalf("expected 3 sub-batches, got %d", len(source.ackCalls))
	}
	for _, call := range source.ackCalls {
		if len(call) > queue.MaxBatch {
			t.Fatalf("sub-batch too large: %d", len(call))
		}
	}
	if acked != 13 || failed != 10 {
		t.Fatalf("expected 13 acked / 10 failed, got %d / %d", acked, failed)
	}
}

func TestRunOnceConcurrentOwners(t *testing.T) {
	var batch []queue.Message
	for i := 0; i < 10; i++ {
		batch = append(batch, eventMessage(fmt.Sprintf("h%d", i), fmt.Sprintf("owner-%d", i%4)))
	}
	source := &fakeSource{batches: [][]queue.Message{batch}}
	writer := &fakeWriter{}
	consumer := NewConsumer(source, &fakeAssembler{}, writer, nil, nil, ConsumerConfig{Concurrency: 3})

	result, err := consumer.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if result.Owners != 4 || len(writer.writes) != 4 || result.Acknowledged != 10 {
		t.Fatalf("unexpected result %+v writes=%v", result, writer.writes)
	}
}

func TestRunStopsBetweenCycles(t *testing.T) {
	source := &fakeSource{}
	consumer := NewConsumer(source, &fakeAssembler{}, &fakeWriter{}, nil, nil, ConsumerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	sleeps := 0
	consumer.sleep = func(context.Context, time.Duration) error {
		sleeps++
		if sleeps == 2 {
			cancel()
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
	if source.receives != 2 {
		t.Fatalf("expected 2 idle polls, got %d", source.receives)
	}
}
