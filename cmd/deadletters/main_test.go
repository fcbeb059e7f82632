package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fastygo/catalog-sync/domain"
)

type stubLetters struct {
	letters []domain.DeadLetter
	err     error
	limit   int
}

func (s *stubLetters) Record(context.Context, domain.DeadLetter) (bool, error) { return false, nil }

func (s *stubLetters) List(_ context.Context, limit int) ([]domain.DeadLetter, error) {
	s.limit = limit
	return s.letters, s.err
}

func TestRunPrintsOneLinePerLetter(t *testing.T) {
	letters := &stubLetters{letters: []domain.DeadLetter{
		{MessageID: "m2", Body: "{", Reason: "invalid event json", ReceiveCount: 2},
		{MessageID: "m1", Body: "", Reason: "empty event body", ReceiveCount: 1},
	}}
	var out bytes.Buffer
	if err := run(context.Background(), letters, 5, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if letters.limit != 5 {
		t.Fatalf("expected limit 5, got %d", letters.limit)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"message_id":"m2"`) {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunPropagatesListError(t *testing.T) {
	boom := errors.New("redis down")
	if err := run(context.Background(), &stubLetters{err: boom}, 5, &bytes.Buffer{}); !errors.Is(err, boom) {
		t.Fatalf("expected list error, got %v", err)
	}
}
