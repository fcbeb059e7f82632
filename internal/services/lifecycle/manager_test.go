package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestShutdownRunsHooksInReverse(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	m.Register("first", func(context.Context) error { order = append(order, "first"); return nil })
	m.RegisterCloser("second", func() error { order = append(order, "second"); return errors.New("boom") })
	m.Register("third", func(context.Context) error { order = append(order, "third"); return nil })

	err := m.Shutdown(context.Background())
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(order) != 3 || order[0] != "third" || order[2] != "first" {
		t.Fatalf("unexpected order %v", order)
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown should be a no-op: %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	m := New(time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, map[string]RunFunc{
			"worker": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		})
	}()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}
}

func TestRunPropagatesFailure(t *testing.T) {
	m := New(time.Second, nil)
	boom := errors.New("boom")
	err := m.Run(context.Background(), map[string]RunFunc{
		"failing": func(context.Context) error { return boom },
		"waiting": func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
