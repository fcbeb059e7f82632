package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/internal/infrastructure/journal"
	"github.com/fastygo/catalog-sync/usecase"
)

// EventPublisher is implemented by Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, ownerID string, action domain.EventAction, kind domain.EntityKind, entityID string, data map[string]any) (domain.Event, error)
}

// Notifier bridges the use cases to the publisher. When a journal is set,
// events whose publish failed are kept for the replay processor.
type Notifier struct {
	publisher EventPublisher
	journal   JournalStore
	logger    *zap.Logger
}

func NewNotifier(publisher EventPublisher, store JournalStore, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{publisher: publisher, journal: store, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, ownerID string, action domain.EventAction, kind domain.EntityKind, entityID string, data map[string]any) error {
	event, err := n.publisher.Publish(ctx, ownerID, action, kind, entityID, data)
	if err == nil || n.journal == nil {
		return err
	}

	entry := journal.Entry{
		Event:           event,
		DeduplicationID: DeduplicationID(event.OwnerID, event.EntityID, event.Timestamp),
	}
	if jErr := n.journal.Append(entry); jErr != nil {
		n.logger.Error("event journal append failed",
			zap.String("owner_id", ownerID),
			zap.String("entity_id", entityID),
			zap.Error(jErr))
		return err
	}
	n.logger.Warn("event journaled for replay",
		zap.String("owner_id", ownerID),
		zap.String("event_type", event.EventType),
		zap.String("deduplication_id", entry.DeduplicationID))
	return err
}

var _ usecase.EventNotifier = (*Notifier)(nil)
