package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/catalog-sync/domain"
)

// Runs against a migrated database named by CATALOG_TEST_DATABASE_URL.
func newTestStore(t *testing.T) *RecordStore {
	t.Helper()
	dsn := os.Getenv("CATALOG_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CATALOG_TEST_DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return NewRecordStore(pool, 0, 2)
}

func TestRecordStoreOptimisticUpdate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	owner := uuid.NewString()

	price := 10.5
	title := "Widget"
	key := domain.RecordKey{OwnerID: owner, Kind: domain.KindProduct, ID: "p1"}
	record, err := domain.NewRecord(key, domain.Changes{Title: &title, Price: &price}, store.now())
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	if _, err := store.Create(ctx, record); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, record); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}

	newPrice := 12.0
	updated, err := store.Update(ctx, key, domain.Changes{Price: &newPrice}, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 || *updated.Price != 12.0 {
		t.Fatalf("unexpected record %+v", updated)
	}
	if _, err := store.Update(ctx, key, domain.Changes{Price: &newPrice}, 1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestRecordStoreListPaginates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	owner := uuid.NewString()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		title := "Category " + id
		record, err := domain.NewRecord(domain.RecordKey{OwnerID: owner, Kind: domain.KindCategory, ID: id}, domain.Changes{Title: &title}, store.now())
		if err != nil {
			t.Fatalf("new record: %v", err)
		}
		if _, err := store.Create(ctx, record); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	records, err := store.ListByOwnerAndKind(ctx, owner, domain.KindCategory)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 5 || records[0].ID != "a" || records[4].ID != "e" {
		t.Fatalf("unexpected records %+v", records)
	}
}
