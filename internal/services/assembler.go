package services

import (
	"context"
	"fmt"
	"time"

	"github.com/fastygo/catalog-sync/domain"
)

// RecordLister reads every record of one owner.
type RecordLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Record, error)
}

// Assembler renders the consolidated catalog of an owner.
type Assembler struct {
	records RecordLister
	now     func() time.Time
}

func NewAssembler(records RecordLister) *Assembler {
	return &Assembler{
		records: records,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Assemble is a full regeneration; it never merges with a previous snapshot.
func (a *Assembler) Assemble(ctx context.Context, ownerID string) (*domain.Snapshot, error) {
	records, err := a.records.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeAssemblyFailed, fmt.Sprintf("list records of %s", ownerID), err)
	}
	return domain.NewSnapshot(ownerID, records, a.now()), nil
}
