package usecase

import (
	"context"

	"github.com/fastygo/catalog-sync/domain"
)

// EventNotifier abstracts event publication so use cases stay transport-agnostic.
type EventNotifier interface {
	Notify(ctx context.Context, ownerID string, action domain.EventAction, kind domain.EntityKind, entityID string, data map[string]any) error
}
