package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestNewRecordValidation(t *testing.T) {
	now := time.Unix(0, 0).UTC()
	productKey := RecordKey{OwnerID: "o1", Kind: KindProduct, ID: "p1"}
	categoryKey := RecordKey{OwnerID: "o1", Kind: KindCategory, ID: "c1"}

	cases := []struct {
		name  string
		key   RecordKey
		input Changes
		ok    bool
	}{
		{"product", productKey, Changes{Title: ptr(" Widget "), Price: ptr(10.5)}, true},
		{"free product", productKey, Changes{Title: ptr("Sample"), Price: ptr(0.0)}, true},
		{"missing price", productKey, Changes{Title: ptr("Widget")}, false},
		{"negative price", productKey, Changes{Title: ptr("Widget"), Price: ptr(-1.0)}, false},
		{"blank title", productKey, Changes{Title: ptr("   "), Price: ptr(1.0)}, false},
		{"long title", productKey, Changes{Title: ptr(strings.Repeat("x", 151)), Price: ptr(1.0)}, false},
		{"long description", categoryKey, Changes{Title: ptr("Tools"), Description: ptr(strings.Repeat("x", 2001))}, false},
		{"category", categoryKey, Changes{Title: ptr("Tools")}, true},
		{"category with price", categoryKey, Changes{Title: ptr("Tools"), Price: ptr(1.0)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record, err := NewRecord(tc.key, tc.input, now)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				if !IsDomainError(err, ErrCodeInvalid) {
					t.Fatalf("expected INVALID, got %v", err)
				}
				return
			}
			if record.Version != 1 || strings.TrimSpace(record.Title) != record.Title {
				t.Fatalf("unexpected record %+v", record)
			}
		})
	}
}

func TestTouchNeverMovesBackwards(t *testing.T) {
	later := time.Unix(200, 0)
	record := &Record{UpdatedAt: later, CreatedAt: later}
	record.Touch(time.Unix(100, 0))
	if !record.UpdatedAt.Equal(later) {
		t.Fatalf("updated_at moved backwards: %v", record.UpdatedAt)
	}
}

func TestErrorsMatchByCode(t *testing.T) {
	wrapped := WrapError(ErrCodeVersionConflict, "conditional check failed", errors.New("boom"))
	if !errors.Is(wrapped, ErrVersionConflict) {
		t.Fatal("wrapped conflict should match sentinel")
	}
	if errors.Is(wrapped, ErrRecordNotFound) {
		t.Fatal("codes must not cross-match")
	}
}

func TestParseSortKey(t *testing.T) {
	kind, id, err := ParseSortKey(RecordKey{Kind: KindProduct, ID: "a#b"}.SortKey())
	if err != nil || kind != KindProduct || id != "a#b" {
		t.Fatalf("got %s %s %v", kind, id, err)
	}
	if _, _, err := ParseSortKey("PRODUCT"); err == nil {
		t.Fatal("expected error for key without separator")
	}
}

func TestClearedCategoryIDOnCategory(t *testing.T) {
	key := RecordKey{OwnerID: "o1", Kind: KindCategory, ID: "c1"}
	cleared := Changes{Title: ptr("Tools"), CategoryID: ptr("")}

	if _, err := NewRecord(key, cleared, time.Unix(0, 0).UTC()); err != nil {
		t.Fatalf("create with cleared category_id: %v", err)
	}
	if err := cleared.Validate(KindCategory); err != nil {
		t.Fatalf("update with cleared category_id: %v", err)
	}
	if err := (Changes{CategoryID: ptr("c2")}).Validate(KindCategory); !IsDomainError(err, ErrCodeInvalid) {
		t.Fatalf("expected INVALID for a category reference on a category, got %v", err)
	}
}
