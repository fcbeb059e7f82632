package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// EntityKind distinguishes the record types kept per owner.
type EntityKind string

const (
	KindProduct  EntityKind = "PRODUCT"
	KindCategory EntityKind = "CATEGORY"
)

const (
	MaxTitleLength       = 150
	MaxDescriptionLength = 2000
)

// Kinds lists every supported entity kind in snapshot order.
var Kinds = []EntityKind{KindCategory, KindProduct}

func (k EntityKind) Valid() bool {
	return k == KindProduct || k == KindCategory
}

// ParseEntityKind accepts the upper-case kind name.
func ParseEntityKind(value string) (EntityKind, error) {
	kind := EntityKind(strings.ToUpper(strings.TrimSpace(value)))
	if !kind.Valid() {
		return "", WrapError(ErrCodeInvalid, fmt.Sprintf("unknown entity kind %q", value), nil)
	}
	return kind, nil
}

// RecordKey identifies a record. It never changes after creation.
type RecordKey struct {
	OwnerID string
	Kind    EntityKind
	ID      string
}

// SortKey renders the "{KIND}#{id}" form used by the key-value layout.
func (k RecordKey) SortKey() string {
	return string(k.Kind) + "#" + k.ID
}

func (k RecordKey) String() string {
	return k.OwnerID + "/" + k.SortKey()
}

// ParseSortKey splits a "{KIND}#{id}" sort key.
func ParseSortKey(sk string) (EntityKind, string, error) {
	kindPart, id, ok := strings.Cut(sk, "#")
	if !ok || id == "" {
		return "", "", fmt.Errorf("malformed sort key %q", sk)
	}
	kind, err := ParseEntityKind(kindPart)
	if err != nil {
		return "", "", err
	}
	return kind, id, nil
}

// Record is a product or category owned by a tenant.
type Record struct {
	OwnerID     string     `json:"owner_id"`
	Kind        EntityKind `json:"entity_type"`
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Price       *float64   `json:"price,omitempty"`
	CategoryID  string     `json:"category_id,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (r *Record) Key() RecordKey {
	return RecordKey{OwnerID: r.OwnerID, Kind: r.Kind, ID: r.ID}
}

// Touch refreshes UpdatedAt without ever moving it backwards.
func (r *Record) Touch(now time.Time) {
	if r == nil {
		return
	}
	if now.After(r.UpdatedAt) {
		r.UpdatedAt = now
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = r.UpdatedAt
	}
}

// Clone returns a deep copy so stores never share pointers with callers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Price != nil {
		price := *r.Price
		cp.Price = &price
	}
	return &cp
}

// Validate checks the kind-specific field rules of a complete record.
func (r *Record) Validate() error {
	if r == nil {
		return ErrInvalidPayload
	}
	if strings.TrimSpace(r.OwnerID) == "" || strings.TrimSpace(r.ID) == "" {
		return WrapError(ErrCodeInvalid, "owner_id and id are required", nil)
	}
	if !r.Kind.Valid() {
		return WrapError(ErrCodeInvalid, fmt.Sprintf("unknown entity kind %q", r.Kind), nil)
	}
	if err := validateTitle(r.Title); err != nil {
		return err
	}
	if err := validateDescription(r.Description); err != nil {
		return err
	}
	switch r.Kind {
	case KindProduct:
		if r.Price == nil {
			return WrapError(ErrCodeInvalid, "price is required", nil)
		}
		if *r.Price < 0 {
			return WrapError(ErrCodeInvalid, "price must be >= 0", nil)
		}
	case KindCategory:
		if r.Price != nil || r.CategoryID != "" {
			return WrapError(ErrCodeInvalid, "categories carry no price or category_id", nil)
		}
	}
	return nil
}

// Changes is a partial update. Nil fields are left untouched; an empty
// CategoryID removes the category reference.
type Changes struct {
	Title       *string
	Description *string
	Price       *float64
	CategoryID  *string
}

func (c Changes) Empty() bool {
	return c.Title == nil && c.Description == nil && c.Price == nil && c.CategoryID == nil
}

// Normalize trims the title in place.
func (c *Changes) Normalize() {
	if c.Title != nil {
		title := strings.TrimSpace(*c.Title)
		c.Title = &title
	}
	if c.CategoryID != nil {
		id := strings.TrimSpace(*c.CategoryID)
		c.CategoryID = &id
	}
}

// Validate checks the changes against the rules of the target kind.
func (c Changes) Validate(kind EntityKind) error {
	if c.Title != nil {
		if err := validateTitle(*c.Title); err != nil {
			return err
		}
	}
	if c.Description != nil {
		if err := validateDescription(*c.Description); err != nil {
			return err
		}
	}
	// A cleared category_id is a no-op on categories, as it is on create.
	if kind == KindCategory && (c.Price != nil || (c.CategoryID != nil && *c.CategoryID != "")) {
		return WrapError(ErrCodeInvalid, "categories carry no price or category_id", nil)
	}
	if c.Price != nil && *c.Price < 0 {
		return WrapError(ErrCodeInvalid, "price must be >= 0", nil)
	}
	return nil
}

// Apply copies the set fields onto the record.
func (c Changes) Apply(r *Record) {
	if c.Title != nil {
		r.Title = *c.Title
	}
	if c.Description != nil {
		r.Description = *c.Description
	}
	if c.Price != nil {
		price := *c.Price
		r.Price = &price
	}
	if c.CategoryID != nil {
		r.CategoryID = *c.CategoryID
	}
}

// NewRecord builds a version 1 record from creation input.
func NewRecord(key RecordKey, input Changes, now time.Time) (*Record, error) {
	input.Normalize()
	record := &Record{
		OwnerID:   key.OwnerID,
		Kind:      key.Kind,
		ID:        key.ID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	input.Apply(record)
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n == 0 {
		return WrapError(ErrCodeInvalid, "title is required", nil)
	}
	if n > MaxTitleLength {
		return WrapError(ErrCodeInvalid, fmt.Sprintf("title exceeds %d characters", MaxTitleLength), nil)
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return WrapError(ErrCodeInvalid, fmt.Sprintf("description exceeds %d characters", MaxDescriptionLength), nil)
	}
	return nil
}
