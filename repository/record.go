package repository

import (
	"context"

	"github.com/fastygo/catalog-sync/domain"
)

// DefaultPageSize bounds each page fetched while listing records.
const DefaultPageSize = 100

// RecordRepository is the versioned record store. Update is a single
// conditional write: a missing key and a stale version both surface as
// domain.ErrVersionConflict.
type RecordRepository interface {
	Create(ctx context.Context, record *domain.Record) (*domain.Record, error)
	Get(ctx context.Context, key domain.RecordKey) (*domain.Record, bool, error)
	Update(ctx context.Context, key domain.RecordKey, changes domain.Changes, expectedVersion int) (*domain.Record, error)
	Delete(ctx context.Context, key domain.RecordKey) error
	ListByOwnerAndKind(ctx context.Context, ownerID string, kind domain.EntityKind) ([]domain.Record, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Record, error)
}
