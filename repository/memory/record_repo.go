package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/repository"
)

// RecordStore is an in-process RecordRepository used for local runs and tests.
type RecordStore struct {
	mu      sync.Mutex
	records map[domain.RecordKey]*domain.Record
	now     func() time.Time
}

// NewRecordStore returns an empty store. A nil clock defaults to time.Now in UTC.
func NewRecordStore(now func() time.Time) *RecordStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &RecordStore{
		records: make(map[domain.RecordKey]*domain.Record),
		now:     now,
	}
}

var _ repository.RecordRepository = (*RecordStore)(nil)

func (s *RecordStore) Create(ctx context.Context, record *domain.Record) (*domain.Record, error) {
	if record == nil {
		return nil, domain.ErrInvalidPayload
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := record.Key()
	if _, exists := s.records[key]; exists {
		return nil, domain.ErrAlreadyExists
	}
	stored := record.Clone()
	stored.Version = 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
		stored.UpdatedAt = stored.CreatedAt
	}
	s.records[key] = stored
	return stored.Clone(), nil
}

func (s *RecordStore) Get(ctx context.Context, key domain.RecordKey) (*domain.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (s *RecordStore) Update(ctx context.Context, key domain.RecordKey, changes domain.Changes, expectedVersion int) (*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[key]
	if !ok || current.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	next := current.Clone()
	changes.Apply(next)
	next.Version++
	next.Touch(s.now())
	s.records[key] = next
	return next.Clone(), nil
}

func (s *RecordStore) Delete(ctx context.Context, key domain.RecordKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; !ok {
		return domain.ErrRecordNotFound
	}
	delete(s.records, key)
	return nil
}

func (s *RecordStore) ListByOwnerAndKind(ctx context.Context, ownerID string, kind domain.EntityKind) ([]domain.Record, error) {
	return s.list(ctx, func(r *domain.Record) bool {
		return r.OwnerID == ownerID && r.Kind == kind
	})
}

func (s *RecordStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Record, error) {
	return s.list(ctx, func(r *domain.Record) bool {
		return r.OwnerID == ownerID
	})
}

func (s *RecordStore) list(ctx context.Context, match func(*domain.Record) bool) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Record, 0)
	for _, record := range s.records {
		if match(record) {
			out = append(out, *record.Clone())
		}
	}
	// Same order as the sort key layout of the other backends.
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().SortKey() < out[j].Key().SortKey()
	})
	return out, nil
}

// Ping satisfies the health probe contract.
func (s *RecordStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
