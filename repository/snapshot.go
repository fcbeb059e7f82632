package repository

import (
	"context"
	"fmt"
)

// SnapshotKey is the object key of an owner's catalog document.
func SnapshotKey(ownerID string) string {
	return fmt.Sprintf("catalogs/%s/catalog.json", ownerID)
}

// SnapshotRepository stores rendered catalog documents. Put overwrites.
type SnapshotRepository interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
