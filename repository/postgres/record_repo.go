package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/repository"
)

const recordColumns = `owner_id, entity_type, id, title, description, price, category_id, version, created_at, updated_at`

// RecordStore is a Postgres-backed RecordRepository. Optimistic concurrency
// rides on "WHERE version = $n" in a single UPDATE statement.
type RecordStore struct {
	pool     *pgxpool.Pool
	timeout  time.Duration
	pageSize int
	now      func() time.Time
}

// NewRecordStore returns a Postgres-backed implementation of RecordRepository.
func NewRecordStore(pool *pgxpool.Pool, timeout time.Duration, pageSize int) *RecordStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RecordStore{
		pool:     pool,
		timeout:  timeout,
		pageSize: clampLimit(pageSize),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ repository.RecordRepository = (*RecordStore)(nil)

func (r *RecordStore) Create(ctx context.Context, record *domain.Record) (*domain.Record, error) {
	if record == nil {
		return nil, domain.ErrInvalidPayload
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	created := record.Clone()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = r.now()
		created.UpdatedAt = created.CreatedAt
	}

	const query = `
	INSERT INTO catalog_records (` + recordColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)
	ON CONFLICT (owner_id, entity_type, id) DO NOTHING
	RETURNING ` + recordColumns

	row := r.pool.QueryRow(ctx, query,
		created.OwnerID,
		string(created.Kind),
		created.ID,
		created.Title,
		created.Description,
		created.Price,
		nullString(created.CategoryID),
		created.CreatedAt,
		created.UpdatedAt,
	)
	stored, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return stored, nil
}

func (r *RecordStore) Get(ctx context.Context, key domain.RecordKey) (*domain.Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
	SELECT ` + recordColumns + `
	FROM catalog_records
	WHERE owner_id = $1 AND entity_type = $2 AND id = $3
	`
	record, err := scanRecord(r.pool.QueryRow(ctx, query, key.OwnerID, string(key.Kind), key.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return record, true, nil
}

func (r *RecordStore) Update(ctx context.Context, key domain.RecordKey, changes domain.Changes, expectedVersion int) (*domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
	UPDATE catalog_records
	SET title = COALESCE($4::text, title),
		description = COALESCE($5::text, description),
		price = COALESCE($6::double precision, price),
		category_id = CASE WHEN $7::boolean THEN NULLIF($8::text, '') ELSE category_id END,
		version = version + 1,
		updated_at = GREATEST(updated_at, $9)
	WHERE owner_id = $1 AND entity_type = $2 AND id = $3 AND version = $10
	RETURNING ` + recordColumns

	row := r.pool.QueryRow(ctx, query,
		key.OwnerID,
		string(key.Kind),
		key.ID,
		changes.Title,
		changes.Description,
		changes.Price,
		changes.CategoryID != nil,
		derefString(changes.CategoryID),
		r.now(),
		expectedVersion,
	)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVersionConflict
		}
		return nil, err
	}
	return record, nil
}

func (r *RecordStore) Delete(ctx context.Context, key domain.RecordKey) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `DELETE FROM catalog_records WHERE owner_id = $1 AND entity_type = $2 AND id = $3`
	tag, err := r.pool.Exec(ctx, query, key.OwnerID, string(key.Kind), key.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (r *RecordStore) ListByOwnerAndKind(ctx context.Context, ownerID string, kind domain.EntityKind) ([]domain.Record, error) {
	return r.list(ctx, ownerID, string(kind))
}

func (r *RecordStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Record, error) {
	return r.list(ctx, ownerID, "")
}

// list walks the owner's rows with keyset pagination.
func (r *RecordStore) list(ctx context.Context, ownerID, kind string) ([]domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
	SELECT ` + recordColumns + `
	FROM catalog_records
	WHERE owner_id = $1
	  AND ($2 = '' OR entity_type = $2)
	  AND (entity_type, id) > ($3, $4)
	ORDER BY entity_type, id
	LIMIT $5
	`

	records := make([]domain.Record, 0)
	var afterKind, afterID string
	for {
		rows, err := r.pool.Query(ctx, query, ownerID, kind, afterKind, afterID, r.pageSize)
		if err != nil {
			return nil, err
		}
		page, err := collectRecords(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, page...)
		if len(page) < r.pageSize {
			return records, nil
		}
		last := page[len(page)-1]
		afterKind, afterID = string(last.Kind), last.ID
	}
}

// Ping checks connectivity.
func (r *RecordStore) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func collectRecords(rows pgx.Rows) ([]domain.Record, error) {
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func scanRecord(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Record, error) {
	var (
		record     domain.Record
		kind       string
		categoryID *string
	)

	if err := row.Scan(
		&record.OwnerID,
		&kind,
		&record.ID,
		&record.Title,
		&record.Description,
		&record.Price,
		&categoryID,
		&record.Version,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}

	record.Kind = domain.EntityKind(kind)
	record.CategoryID = derefString(categoryID)
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return &record, nil
}

