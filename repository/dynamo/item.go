package dynamo

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/fastygo/catalog-sync/domain"
)

type recordItem struct {
	OwnerID     string   `dynamodbav:"ownerId"`
	SortKey     string   `dynamodbav:"sk"`
	ID          string   `dynamodbav:"id"`
	EntityType  string   `dynamodbav:"entityType"`
	Title       string   `dynamodbav:"title"`
	Description string   `dynamodbav:"description,omitempty"`
	Price       *float64 `dynamodbav:"price,omitempty"`
	CategoryID  string   `dynamodbav:"category_id,omitempty"`
	Version     int      `dynamodbav:"version"`
	CreatedAt   string   `dynamodbav:"created_at"`
	UpdatedAt   string   `dynamodbav:"updated_at"`
}

func toItem(r *domain.Record) recordItem {
	return recordItem{
		OwnerID:     r.OwnerID,
		SortKey:     r.Key().SortKey(),
		ID:          r.ID,
		EntityType:  string(r.Kind),
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		CategoryID:  r.CategoryID,
		Version:     r.Version,
		CreatedAt:   formatTime(r.CreatedAt),
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
}

func fromAttributes(av map[string]types.AttributeValue) (*domain.Record, error) {
	var item recordItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	kind, id, err := domain.ParseSortKey(item.SortKey)
	if err != nil {
		return nil, err
	}
	if item.ID != "" {
		id = item.ID
	}
	record := &domain.Record{
		OwnerID:     item.OwnerID,
		Kind:        kind,
		ID:          id,
		Title:       item.Title,
		Description: item.Description,
		Price:       item.Price,
		CategoryID:  item.CategoryID,
		Version:     item.Version,
	}
	if record.CreatedAt, err = parseTime(item.CreatedAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseTime(item.UpdatedAt); err != nil {
		return nil, err
	}
	return record, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}
