package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/repository"
)

const (
	attrOwner   = "ownerId"
	attrSortKey = "sk"
	attrVersion = "version"
)

// API is the subset of the DynamoDB client the repository needs.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Options tunes the repository.
type Options struct {
	Table    string
	Timeout  time.Duration
	PageSize int32
	Now      func() time.Time
}

type RecordStore struct {
	client   API
	table    string
	timeout  time.Duration
	pageSize int32
	now      func() time.Time
}

// NewRecordStore returns a DynamoDB-backed RecordRepository using the
// ownerId/sk single-table layout.
func NewRecordStore(client API, opts Options) *RecordStore {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = repository.DefaultPageSize
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &RecordStore{
		client:   client,
		table:    opts.Table,
		timeout:  opts.Timeout,
		pageSize: opts.PageSize,
		now:      opts.Now,
	}
}

var _ repository.RecordRepository = (*RecordStore)(nil)

func (r *RecordStore) Create(ctx context.Context, record *domain.Record) (*domain.Record, error) {
	if record == nil {
		return nil, domain.ErrInvalidPayload
	}
	stored := record.Clone()
	stored.Version = 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now()
		stored.UpdatedAt = stored.CreatedAt
	}

	item, err := attributevalue.MarshalMap(toItem(stored))
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(attrSortKey))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build create expression: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.table),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("put record %s: %w", stored.Key(), err)
	}
	return stored, nil
}

func (r *RecordStore) Get(ctx context.Context, key domain.RecordKey) (*domain.Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("get record %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}
	record, err := fromAttributes(out.Item)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (r *RecordStore) Update(ctx context.Context, key domain.RecordKey, changes domain.Changes, expectedVersion int) (*domain.Record, error) {
	update := expression.
		Set(expression.Name(attrVersion), expression.Name(attrVersion).Plus(expression.Value(1))).
		Set(expression.Name("updated_at"), expression.Value(formatTime(r.now())))
	if changes.Title != nil {
		update = update.Set(expression.Name("title"), expression.Value(*changes.Title))
	}
	if changes.Description != nil {
		update = update.Set(expression.Name("description"), expression.Value(*changes.Description))
	}
	if changes.Price != nil {
		update = update.Set(expression.Name("price"), expression.Value(*changes.Price))
	}
	if changes.CategoryID != nil {
		if *changes.CategoryID == "" {
			update = update.Remove(expression.Name("category_id"))
		} else {
			update = update.Set(expression.Name("category_id"), expression.Value(*changes.CategoryID))
		}
	}

	condition := expression.AttributeExists(expression.Name(attrSortKey)).
		And(expression.Name(attrVersion).Equal(expression.Value(expectedVersion)))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
	if err != nil {
		return nil, fmt.Errorf("build update expression: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       itemKey(key),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, domain.ErrVersionConflict
		}
		return nil, fmt.Errorf("update record %s: %w", key, err)
	}
	return fromAttributes(out.Attributes)
}

func (r *RecordStore) Delete(ctx context.Context, key domain.RecordKey) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name(attrSortKey))).
		Build()
	if err != nil {
		return fmt.Errorf("build delete expression: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.table),
		Key:                      itemKey(key),
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.ErrRecordNotFound
		}
		return fmt.Errorf("delete record %s: %w", key, err)
	}
	return nil
}

func (r *RecordStore) ListByOwnerAndKind(ctx context.Context, ownerID string, kind domain.EntityKind) ([]domain.Record, error) {
	cond := expression.Key(attrOwner).Equal(expression.Value(ownerID)).
		And(expression.Key(attrSortKey).BeginsWith(string(kind) + "#"))
	return r.query(ctx, cond)
}

func (r *RecordStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Record, error) {
	return r.query(ctx, expression.Key(attrOwner).Equal(expression.Value(ownerID)))
}

func (r *RecordStore) query(ctx context.Context, cond expression.KeyConditionBuilder) ([]domain.Record, error) {
	expr, err := expression.NewBuilder().WithKeyCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("build query expression: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
		Limit:                     aws.Int32(r.pageSize),
	})

	records := make([]domain.Record, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query records: %w", err)
		}
		for _, raw := range page.Items {
			record, err := fromAttributes(raw)
			if err != nil {
				return nil, err
			}
			records = append(records, *record)
		}
	}
	return records, nil
}

// Ping checks that the table is reachable.
func (r *RecordStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)})
	return err
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func itemKey(key domain.RecordKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrOwner:   &types.AttributeValueMemberS{Value: key.OwnerID},
		attrSortKey: &types.AttributeValueMemberS{Value: key.SortKey()},
	}
}
