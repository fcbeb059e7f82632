package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/repository"
	"github.com/fastygo/catalog-sync/usecase"
)

// UseCase runs the write path: commit to the record store, then notify.
// A failed notification is logged and never undoes the committed write.
type UseCase struct {
	records  repository.RecordRepository
	notifier usecase.EventNotifier
	logger   *zap.Logger
	newID    func() string
	now      func() time.Time
}

func New(records repository.RecordRepository, notifier usecase.EventNotifier, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		records:  records,
		notifier: notifier,
		logger:   logger,
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *UseCase) Create(ctx context.Context, ownerID string, kind domain.EntityKind, input domain.Changes) (*domain.Record, error) {
	key := domain.RecordKey{OwnerID: ownerID, Kind: kind, ID: uc.newID()}
	record, err := domain.NewRecord(key, input, uc.now())
	if err != nil {
		return nil, err
	}

	created, err := uc.records.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	uc.notify(ctx, created, domain.ActionCreated)
	return created, nil
}

func (uc *UseCase) Get(ctx context.Context, key domain.RecordKey) (*domain.Record, error) {
	record, found, err := uc.records.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrRecordNotFound
	}
	return record, nil
}

func (uc *UseCase) List(ctx context.Context, ownerID string, kind domain.EntityKind) ([]domain.Record, error) {
	return uc.records.ListByOwnerAndKind(ctx, ownerID, kind)
}

// Update applies changes only if the stored version still equals
// expectedVersion. A missing record and a stale version both yield
// domain.ErrVersionConflict.
func (uc *UseCase) Update(ctx context.Context, key domain.RecordKey, changes domain.Changes, expectedVersion int) (*domain.Record, error) {
	if expectedVersion < 1 {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "version must be >= 1", nil)
	}
	changes.Normalize()
	if err := changes.Validate(key.Kind); err != nil {
		return nil, err
	}

	updated, err := uc.records.Update(ctx, key, changes, expectedVersion)
	if err != nil {
		return nil, err
	}
	uc.notify(ctx, updated, domain.ActionUpdated)
	return updated, nil
}

// Delete removes a record. A category still referenced by a product of the
// same owner is refused. The check and the delete are separate calls, so a
// product linked in between is not detected.
func (uc *UseCase) Delete(ctx context.Context, key domain.RecordKey) error {
	if key.Kind == domain.KindCategory {
		linked, err := uc.hasLinkedProducts(ctx, key.OwnerID, key.ID)
		if err != nil {
			return err
		}
		if linked {
			return domain.ErrHasLinkedChildren
		}
	}

	if err := uc.records.Delete(ctx, key); err != nil {
		return err
	}
	uc.notify(ctx, &domain.Record{OwnerID: key.OwnerID, Kind: key.Kind, ID: key.ID}, domain.ActionDeleted)
	return nil
}

func (uc *UseCase) hasLinkedProducts(ctx context.Context, ownerID, categoryID string) (bool, error) {
	products, err := uc.records.ListByOwnerAndKind(ctx, ownerID, domain.KindProduct)
	if err != nil {
		return false, err
	}
	for _, product := range products {
		if product.CategoryID == categoryID {
			return true, nil
		}
	}
	return false, nil
}

func (uc *UseCase) notify(ctx context.Context, record *domain.Record, action domain.EventAction) {
	if uc.notifier == nil {
		return
	}
	var data map[string]any
	if action != domain.ActionDeleted {
		data = map[string]any{"version": record.Version}
	}
	if err := uc.notifier.Notify(ctx, record.OwnerID, action, record.Kind, record.ID, data); err != nil {
		uc.logger.Error("catalog event not published",
			zap.String("owner_id", record.OwnerID),
			zap.String("event_type", domain.EventType(record.Kind, action)),
			zap.String("entity_id", record.ID),
			zap.Error(err))
	}
}
