package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/fastygo/catalog-sync/domain"
)

func float(v float64) *float64 { return &v }
func str(v string) *string     { return &v }

func newProduct(t *testing.T, store *RecordStore, owner, id string, price float64) *domain.Record {
	t.Helper()
	key := domain.RecordKey{OwnerID: owner, Kind: domain.KindProduct, ID: id}
	record, err := domain.NewRecord(key, domain.Changes{Title: str("Widget"), Price: float(price)}, time.Unix(100, 0).UTC())
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	created, err := store.Create(context.Background(), record)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return created
}

func TestRecordStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := time.Unix(200, 0).UTC()
	store := NewRecordStore(func() time.Time { return clock })

	created := newProduct(t, store, "o1", "p1", 10.5)
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}

	updated, err := store.Update(ctx, created.Key(), domain.Changes{Price: float(12.0)}, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 || *updated.Price != 12.0 || updated.Title != "Widget" {
		t.Fatalf("unexpected record after update: %+v", updated)
	}
	if !updated.UpdatedAt.Equal(clock) {
		t.Fatalf("updated_at not refreshed: %v", updated.UpdatedAt)
	}

	got, found, err := store.Get(ctx, created.Key())
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got.Version != 2 || *got.Price != 12.0 {
		t.Fatalf("stored record not updated: %+v", got)
	}
}

func TestRecordStoreStaleUpdateConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(nil)
	created := newProduct(t, store, "o1", "p1", 1)

	if _, err := store.Update(ctx, created.Key(), domain.Changes{Title: str("A")}, 1); err != nil {
		t.Fatalf("first update: %v", err)
	}
	_, err := store.Update(ctx, created.Key(), domain.Changes{Title: str("B")}, 1)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	missing := domain.RecordKey{OwnerID: "o1", Kind: domain.KindProduct, ID: "nope"}
	if _, err := store.Update(ctx, missing, domain.Changes{Title: str("C")}, 1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected coalesced conflict for missing key, got %v", err)
	}
}

func TestRecordStoreCreateAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(nil)
	created := newProduct(t, store, "o1", "p1", 1)

	if _, err := store.Create(ctx, created); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	if err := store.Delete(ctx, created.Key()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, created.Key()); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, found, _ := store.Get(ctx, created.Key()); found {
		t.Fatal("record still present after delete")
	}
}

func TestRecordStoreListScopesByOwnerAndKind(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(nil)
	newProduct(t, store, "o1", "p2", 1)
	newProduct(t, store, "o1", "p1", 1)
	newProduct(t, store, "o2", "p3", 1)

	category, err := domain.NewRecord(domain.RecordKey{OwnerID: "o1", Kind: domain.KindCategory, ID: "c1"}, domain.Changes{Title: str("Tools")}, time.Now())
	if err != nil {
		t.Fatalf("new category: %v", err)
	}
	if _, err := store.Create(ctx, category); err != nil {
		t.Fatalf("create category: %v", err)
	}

	products, err := store.ListByOwnerAndKind(ctx, "o1", domain.KindProduct)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 2 || products[0].ID != "p1" || products[1].ID != "p2" {
		t.Fatalf("unexpected products: %+v", products)
	}

	all, err := store.ListByOwner(ctx, "o1")
	if err != nil {
		t.Fatalf("list owner: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
}

func TestConcurrentUpdatesExactlyOneWins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("same-version updates produce a single winner", prop.ForAll(
		func(writers int) bool {
			ctx := context.Background()
			store := NewRecordStore(nil)
			key := domain.RecordKey{OwnerID: "owner", Kind: domain.KindProduct, ID: "p"}
			record, err := domain.NewRecord(key, domain.Changes{Title: str("Widget"), Price: float(1)}, time.Now())
			if err != nil {
				return false
			}
			if _, err := store.Create(ctx, record); err != nil {
				return false
			}

			var (
				wg        sync.WaitGroup
				wins      int32
				conflicts int32
			)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := store.Update(ctx, key, domain.Changes{Price: float(float64(i))}, 1)
					switch {
					case err == nil:
						atomic.AddInt32(&wins, 1)
					case errors.Is(err, domain.ErrVersionConflict):
						atomic.AddInt32(&conflicts, 1)
					}
				}(i)
			}
			wg.Wait()

			got, _, _ := store.Get(ctx, key)
			return wins == 1 && int(conflicts) == writers-1 && got.Version == 2
		},
		gen.IntRange(2, 32),
	))

	properties.TestingRun(t)
}
