package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// Snapshot is the consolidated catalog of one owner at generation time.
type Snapshot struct {
	OwnerID     string    `json:"owner_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Categories  []Record  `json:"categories"`
	Products    []Record  `json:"products"`
}

// NewSnapshot partitions records by kind, ordered by id.
func NewSnapshot(ownerID string, records []Record, generatedAt time.Time) *Snapshot {
	snap := &Snapshot{
		OwnerID:     ownerID,
		GeneratedAt: generatedAt.UTC(),
		Categories:  []Record{},
		Products:    []Record{},
	}
	for _, r := range records {
		switch r.Kind {
		case KindCategory:
			snap.Categories = append(snap.Categories, r)
		case KindProduct:
			snap.Products = append(snap.Products, r)
		}
	}
	sort.Slice(snap.Categories, func(i, j int) bool { return snap.Categories[i].ID < snap.Categories[j].ID })
	sort.Slice(snap.Products, func(i, j int) bool { return snap.Products[i].ID < snap.Products[j].ID })
	return snap
}

// Encode renders the snapshot document.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
