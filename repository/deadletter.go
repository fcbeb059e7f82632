package repository

import (
	"context"

	"github.com/fastygo/catalog-sync/domain"
)

// DeadLetterRepository keeps copies of queue messages that could not be parsed.
// Record reports false when the message id was already recorded.
type DeadLetterRepository interface {
	Record(ctx context.Context, letter domain.DeadLetter) (bool, error)
	List(ctx context.Context, limit int) ([]domain.DeadLetter, error)
}

// NopDeadLetters discards everything.
type NopDeadLetters struct{}

func (NopDeadLetters) Record(context.Context, domain.DeadLetter) (bool, error) { return false, nil }

func (NopDeadLetters) List(context.Context, int) ([]domain.DeadLetter, error) { return nil, nil }
