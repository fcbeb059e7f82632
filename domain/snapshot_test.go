package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewSnapshotSortsAndKeepsEmptyPartitions(t *testing.T) {
	snap := NewSnapshot("o1", []Record{
		{OwnerID: "o1", Kind: KindProduct, ID: "b"},
		{OwnerID: "o1", Kind: KindProduct, ID: "a"},
	}, time.Unix(0, 0))

	if snap.Products[0].ID != "a" || snap.Products[1].ID != "b" {
		t.Fatalf("products not sorted: %+v", snap.Products)
	}

	body, err := snap.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(body), `"categories": []`) {
		t.Fatalf("empty partition should encode as []: %s", body)
	}
	if !strings.Contains(string(body), "\n  \"owner_id\"") {
		t.Fatalf("expected 2-space indentation: %s", body)
	}
}
