package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/repository"
)

// SnapshotWriter persists catalog documents at catalogs/{owner_id}/catalog.json.
type SnapshotWriter struct {
	store  repository.SnapshotRepository
	logger *zap.Logger
}

func NewSnapshotWriter(store repository.SnapshotRepository, logger *zap.Logger) *SnapshotWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotWriter{store: store, logger: logger}
}

func (w *SnapshotWriter) Write(ctx context.Context, ownerID string, snapshot *domain.Snapshot) error {
	if snapshot == nil {
		return domain.WrapError(domain.ErrCodeWriteFailed, "nil snapshot", nil)
	}
	body, err := snapshot.Encode()
	if err != nil {
		return domain.WrapError(domain.ErrCodeWriteFailed, "encode snapshot", err)
	}

	key := repository.SnapshotKey(ownerID)
	if err := w.store.Put(ctx, key, body); err != nil {
		return domain.WrapError(domain.ErrCodeWriteFailed, fmt.Sprintf("put %s", key), err)
	}
	w.logger.Info("catalog snapshot written",
		zap.String("owner_id", ownerID),
		zap.String("key", key),
		zap.Int("categories", len(snapshot.Categories)),
		zap.Int("products", len(snapshot.Products)))
	return nil
}

// Read returns the last written document of an owner.
func (w *SnapshotWriter) Read(ctx context.Context, ownerID string) ([]byte, error) {
	return w.store.Get(ctx, repository.SnapshotKey(ownerID))
}
