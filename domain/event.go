package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// EventAction is the kind of mutation an event reports.
type EventAction string

const (
	ActionCreated EventAction = "CREATED"
	ActionUpdated EventAction = "UPDATED"
	ActionDeleted EventAction = "DELETED"
)

// EventTimestampLayout keeps sub-second precision so two writes to the same
// entity in one second never share a deduplication id.
const EventTimestampLayout = time.RFC3339Nano

// EventType renders the wire name, e.g. PRODUCT_CREATED.
func EventType(kind EntityKind, action EventAction) string {
	return string(kind) + "_" + string(action)
}

// Event is the immutable fact emitted after a committed write.
type Event struct {
	OwnerID    string         `json:"owner_id"`
	EventType  string         `json:"event_type"`
	EntityType EntityKind     `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Timestamp  string         `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`
}

// NewEvent stamps an event with the given time in UTC.
func NewEvent(ownerID string, action EventAction, kind EntityKind, entityID string, at time.Time) Event {
	return Event{
		OwnerID:    ownerID,
		EventType:  EventType(kind, action),
		EntityType: kind,
		EntityID:   entityID,
		Timestamp:  at.UTC().Format(EventTimestampLayout),
	}
}

// ParseEvent decodes a queue body. Only owner_id is mandatory; it is the
// grouping key for snapshot regeneration.
func ParseEvent(body string) (Event, error) {
	if strings.TrimSpace(body) == "" {
		return Event{}, WrapError(ErrCodeMalformedEvent, "empty event body", nil)
	}
	var event Event
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		return Event{}, WrapError(ErrCodeMalformedEvent, "invalid event json", err)
	}
	if strings.TrimSpace(event.OwnerID) == "" {
		return Event{}, WrapError(ErrCodeMalformedEvent, "event without owner_id", nil)
	}
	return event, nil
}

// DeadLetter captures an event body the consumer could not use.
type DeadLetter struct {
	MessageID    string    `json:"message_id"`
	Body         string    `json:"body"`
	Reason       string    `json:"reason"`
	ReceiveCount int       `json:"receive_count"`
	RecordedAt   time.Time `json:"recorded_at"`
}
