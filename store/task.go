package store

import (
	"context"
	"time"
)

// ConfirmedTask is a task the requester confirmed. Tasks are append-only:
// once confirmed they are never edited, corrections before confirmation
// live in the correction history.
type ConfirmedTask struct {
	ID        int32
	UID       string
	CreatedTs int64

	RawText    string
	Task       string
	AssigneeID string
	AssignerID string

	// DueTs and ReminderTs are UTC unix seconds. Timezone records the IANA
	// zone the requester's wording resolved against, for display only.
	DueTs      int64
	ReminderTs int64
	Timezone   string
	// Provenance records how the timezone was chosen: explicit,
	// inferred-assigner, inferred-assignee, or clarified.
	Provenance string

	RepeatInterval string
	RecurrenceRule *string
	Site           string
	Confidence     float64

	// CorrectionHistory is the JSON-encoded list of correction rounds that
	// preceded confirmation.
	CorrectionHistory *string
}

// DueTime returns the due instant as time.Time in UTC.
func (t *ConfirmedTask) DueTime() time.Time {
	return time.Unix(t.DueTs, 0).UTC()
}

// ReminderTime returns the reminder instant as time.Time in UTC.
func (t *ConfirmedTask) ReminderTime() time.Time {
	return time.Unix(t.ReminderTs, 0).UTC()
}

// FindTask is the find condition for confirmed tasks.
type FindTask struct {
	ID         *int32
	UID        *string
	AssigneeID *string

	Limit  *int
	Offset *int
}

// CreateTask persists a confirmed task.
func (s *Store) CreateTask(ctx context.Context, create *ConfirmedTask) (*ConfirmedTask, error) {
	return s.driver.CreateTask(ctx, create)
}

// ListTasks lists confirmed tasks with filter.
func (s *Store) ListTasks(ctx context.Context, find *FindTask) ([]*ConfirmedTask, error) {
	return s.driver.ListTasks(ctx, find)
}

// GetTask gets a single confirmed task, or nil when absent.
func (s *Store) GetTask(ctx context.Context, find *FindTask) (*ConfirmedTask, error) {
	list, err := s.driver.ListTasks(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
