package transport

import (
	"bytes"
	"encoding/json"

	"github.com/fastygo/catalog-sync/domain"
)

// OptionalString distinguishes an absent field from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	o.Value = &value
	return nil
}

// RecordRequest is the body of product and category writes. Version is
// required on updates and ignored on creates.
type RecordRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Price       *float64       `json:"price"`
	CategoryID  OptionalString `json:"category_id"`
	Version     int            `json:"version"`
}

// Changes converts the request into a partial update. A null category_id
// clears the reference.
func (r RecordRequest) Changes() domain.Changes {
	changes := domain.Changes{
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
	}
	if r.CategoryID.Set {
		cleared := ""
		if r.CategoryID.Value != nil {
			cleared = *r.CategoryID.Value
		}
		changes.CategoryID = &cleared
	}
	return changes
}
