package domain

import (
	"testing"
	"time"
)

func TestParseEvent(t *testing.T) {
	bad := []string{"", "   ", "{not json", `{"event_type":"PRODUCT_CREATED"}`, `{"owner_id":"  "}`}
	for _, body := range bad {
		if _, err := ParseEvent(body); !IsDomainError(err, ErrCodeMalformedEvent) {
			t.Fatalf("body %q: expected MALFORMED_EVENT, got %v", body, err)
		}
	}

	event, err := ParseEvent(`{"owner_id":"o1","event_type":"PRODUCT_UPDATED","entity_type":"PRODUCT","entity_id":"p1","timestamp":"2024-01-01T00:00:00Z"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.OwnerID != "o1" || event.EntityType != KindProduct {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestNewEventStampsUTC(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.FixedZone("X", 3600))
	event := NewEvent("o1", ActionCreated, KindCategory, "c1", at)
	if event.EventType != "CATEGORY_CREATED" {
		t.Fatalf("unexpected type %s", event.EventType)
	}
	if event.Timestamp != "2024-05-01T11:00:00.123456789Z" {
		t.Fatalf("unexpected timestamp %s", event.Timestamp)
	}
}
