package store

import (
	"context"
	"time"
)

// EntryStatus is the lifecycle state of a schedule entry.
type EntryStatus string

const (
	// EntryPending is waiting for its fire time.
	EntryPending EntryStatus = "PENDING"
	// EntryFired has reached its fire time; delivery is in flight.
	EntryFired EntryStatus = "FIRED"
	// EntryDelivered was handed to the delivery collaborator.
	EntryDelivered EntryStatus = "DELIVERED"
	// EntryAcknowledged was confirmed received by the recipient.
	EntryAcknowledged EntryStatus = "ACKNOWLEDGED"
	// EntrySnoozed was postponed; a successor entry carries the new time.
	EntrySnoozed EntryStatus = "SNOOZED"
	// EntryCanceled will never fire.
	EntryCanceled EntryStatus = "CANCELED"
	// EntryFailed exhausted delivery retries.
	EntryFailed EntryStatus = "FAILED"
)

// Entry origins. Reason records why an entry exists, which matters once
// snoozes, escalations, and recurrences start chaining entries together.
const (
	ReasonReminder   = "reminder"
	ReasonDue        = "due"
	ReasonSnooze     = "snooze"
	ReasonEscalation = "escalation"
	ReasonRecurrence = "recurrence"
)

// ScheduleEntry is one planned notification. Entries are never deleted;
// state transitions update Status so the full history stays queryable.
type ScheduleEntry struct {
	ID        int32
	UID       string
	CreatedTs int64
	UpdatedTs int64

	TaskID      int32
	RecipientID string
	FireTs      int64
	Status      EntryStatus
	Reason      string

	// Attempts counts delivery tries for this entry.
	Attempts int32
	// IdempotencyToken is stable across redelivery of the same entry so
	// the delivery collaborator can deduplicate.
	IdempotencyToken string
	// ParentUID links a snooze or escalation entry back to the entry it
	// was derived from.
	ParentUID *string

	DeliveredTs *int64
	AckTs       *int64
}

// FireTime returns the fire instant as time.Time in UTC.
func (e *ScheduleEntry) FireTime() time.Time {
	return time.Unix(e.FireTs, 0).UTC()
}

// IsTerminal reports whether the entry can no longer change state.
func (e *ScheduleEntry) IsTerminal() bool {
	switch e.Status {
	case EntryAcknowledged, EntrySnoozed, EntryCanceled, EntryFailed:
		return true
	}
	return false
}

// FindScheduleEntry is the find condition for schedule entries.
type FindScheduleEntry struct {
	ID          *int32
	UID         *string
	TaskID      *int32
	RecipientID *string
	Statuses    []EntryStatus
	// FireBefore limits to entries firing strictly before the instant.
	FireBefore *int64

	Limit  *int
	Offset *int
}

// UpdateScheduleEntry transitions an entry. Only non-nil fields change.
type UpdateScheduleEntry struct {
	ID          int32
	Status      *EntryStatus
	FireTs      *int64
	Attempts    *int32
	DeliveredTs *int64
	AckTs       *int64
	UpdatedTs   *int64
}

// CreateScheduleEntry persists a new planned notification.
func (s *Store) CreateScheduleEntry(ctx context.Context, create *ScheduleEntry) (*ScheduleEntry, error) {
	return s.driver.CreateScheduleEntry(ctx, create)
}

// ListScheduleEntries lists entries with filter.
func (s *Store) ListScheduleEntries(ctx context.Context, find *FindScheduleEntry) ([]*ScheduleEntry, error) {
	return s.driver.ListScheduleEntries(ctx, find)
}

// GetScheduleEntry gets a single entry, or nil when absent.
func (s *Store) GetScheduleEntry(ctx context.Context, find *FindScheduleEntry) (*ScheduleEntry, error) {
	list, err := s.driver.ListScheduleEntries(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateScheduleEntry applies a state transition.
func (s *Store) UpdateScheduleEntry(ctx context.Context, update *UpdateScheduleEntry) error {
	return s.driver.UpdateScheduleEntry(ctx, update)
}
