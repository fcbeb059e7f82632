package journal

import (
	"time"

	"github.com/fastygo/catalog-sync/domain"
)

// Entry is an event whose publish exhausted its retries. DeduplicationID is
// kept from the original attempt so a replay cannot produce a second delivery
// inside the queue's deduplication window.
type Entry struct {
	ID              string       `json:"id"`
	Event           domain.Event `json:"event"`
	DeduplicationID string       `json:"deduplication_id"`
	Replays         int          `json:"replays"`
	LastError       string       `json:"last_error,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`

	bucketKey []byte
}

func (e *Entry) normalize() {
	if e.ID == "" {
		e.ID = e.DeduplicationID
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
}
