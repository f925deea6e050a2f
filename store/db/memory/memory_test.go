package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/remindd/store"
)

func TestTaskRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := NewDB()

	created, err := db.CreateTask(ctx, &store.ConfirmedTask{
		UID:        "t-1",
		RawText:    "tell sam to check the pump at 4pm",
		Task:       "check the pump",
		AssigneeID: "sam",
		AssignerID: "lee",
		DueTs:      1752076800,
		ReminderTs: 1752076800,
		Timezone:   "America/Chicago",
		Provenance: "inferred-assigner",
		Confidence: 0.92,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), created.ID)
	assert.NotZero(t, created.CreatedTs)

	uid := "t-1"
	got, err := db.ListTasks(ctx, &store.FindTask{UID: &uid})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "check the pump", got[0].Task)

	// Returned tasks are copies, not aliases into the store.
	got[0].Task = "mutated"
	again, err := db.ListTasks(ctx, &store.FindTask{UID: &uid})
	require.NoError(t, err)
	assert.Equal(t, "check the pump", again[0].Task)
}

func TestListTasksOrderedByDue(t *testing.T) {
	ctx := context.Background()
	db := NewDB()

	for i, due := range []int64{300, 100, 200} {
		_, err := db.CreateTask(ctx, &store.ConfirmedTask{
			UID:        string(rune('a' + i)),
			Task:       "x",
			AssigneeID: "sam",
			DueTs:      due,
			ReminderTs: due,
		})
		require.NoError(t, err)
	}

	list, err := db.ListTasks(ctx, &store.FindTask{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(100), list[0].DueTs)
	assert.Equal(t, int64(300), list[2].DueTs)
}

func TestScheduleEntryTransitions(t *testing.T) {
	ctx := context.Background()
	db := NewDB()

	entry, err := db.CreateScheduleEntry(ctx, &store.ScheduleEntry{
		UID:              "e-1",
		TaskID:           1,
		RecipientID:      "sam",
		FireTs:           1000,
		Reason:           store.ReasonReminder,
		IdempotencyToken: "tok-1",
	})
	require.NoError(t, err)
	assert.Equal(t, store.EntryPending, entry.Status)

	fired := store.EntryFired
	require.NoError(t, db.UpdateScheduleEntry(ctx, &store.UpdateScheduleEntry{
		ID:     entry.ID,
		Status: &fired,
	}))

	delivered := store.EntryDelivered
	deliveredTs := time.Now().Unix()
	require.NoError(t, db.UpdateScheduleEntry(ctx, &store.UpdateScheduleEntry{
		ID:          entry.ID,
		Status:      &delivered,
		DeliveredTs: &deliveredTs,
	}))

	uid := "e-1"
	got, err := db.ListScheduleEntries(ctx, &store.FindScheduleEntry{UID: &uid})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, store.EntryDelivered, got[0].Status)
	require.NotNil(t, got[0].DeliveredTs)
	assert.Equal(t, deliveredTs, *got[0].DeliveredTs)
	assert.False(t, got[0].IsTerminal())
}

func TestListScheduleEntriesFilters(t *testing.T) {
	ctx := context.Background()
	db := NewDB()

	seed := []struct {
		uid    string
		fireTs int64
		status store.EntryStatus
	}{
		{"a", 100, store.EntryPending},
		{"b", 200, store.EntryCanceled},
		{"c", 300, store.EntryPending},
	}
	for _, s := range seed {
		_, err := db.CreateScheduleEntry(ctx, &store.ScheduleEntry{
			UID: s.uid, TaskID: 1, RecipientID: "sam", FireTs: s.fireTs, Status: s.status,
		})
		require.NoError(t, err)
	}

	before := int64(250)
	got, err := db.ListScheduleEntries(ctx, &store.FindScheduleEntry{
		Statuses:   []store.EntryStatus{store.EntryPending},
		FireBefore: &before,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].UID)

	// Canceled entries stay queryable, nothing is ever deleted.
	all, err := db.ListScheduleEntries(ctx, &store.FindScheduleEntry{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
