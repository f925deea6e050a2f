package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldops/remindd/internal/profile"
	"github.com/fieldops/remindd/store"
	"github.com/fieldops/remindd/store/db/memory"
)

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(memory.NewDB(), &profile.Profile{Driver: "memory"})
	ctx := context.Background()
	now := time.Now()

	rule := "FREQ=DAILY"
	task, err := st.CreateTask(ctx, &store.ConfirmedTask{
		UID:            "t1",
		Task:           "check the generator",
		AssigneeID:     "sam",
		AssignerID:     "lee",
		DueTs:          now.Add(time.Hour).Unix(),
		ReminderTs:     now.Add(30 * time.Minute).Unix(),
		Timezone:       "UTC",
		RecurrenceRule: &rule,
	})
	require.NoError(t, err)

	for i, status := range []store.EntryStatus{store.EntryPending, store.EntryDelivered, store.EntryFailed} {
		_, err := st.CreateScheduleEntry(ctx, &store.ScheduleEntry{
			UID:              string(rune('a' + i)),
			TaskID:           task.ID,
			RecipientID:      "sam",
			FireTs:           now.Add(-time.Minute).Unix(),
			Status:           status,
			Reason:           store.ReasonReminder,
			IdempotencyToken: string(rune('x' + i)),
		})
		require.NoError(t, err)
	}
	return st
}

func TestCollectSnapshotsStoreState(t *testing.T) {
	c := NewCollector(seedStore(t))
	c.Refresh(context.Background())

	s := c.GetStats()
	require.Equal(t, int64(1), s.TotalTasks)
	require.Equal(t, int64(1), s.TasksLastWeek)
	require.Equal(t, int64(1), s.RecurringTasks)
	require.Equal(t, int64(1), s.PendingEntries)
	require.Equal(t, int64(1), s.OverduePending)
	require.Equal(t, int64(1), s.DeliveredEntries)
	require.Equal(t, int64(1), s.FailedEntries)
	require.False(t, s.LastUpdated.IsZero())
}

func TestLiveCountersFoldIntoSnapshot(t *testing.T) {
	c := NewCollector(seedStore(t))

	c.RecordMessage()
	c.RecordMessage()
	c.RecordClarification()
	c.RecordConfirmation()
	c.RecordAbandonment()
	c.RecordParserError()

	s := c.GetStats()
	require.Equal(t, int64(2), s.MessagesHandled)
	require.Equal(t, int64(1), s.Clarifications)
	require.Equal(t, int64(1), s.Confirmations)
	require.Equal(t, int64(1), s.Abandonments)
	require.Equal(t, int64(1), s.ParserErrors)
}

func TestSummary(t *testing.T) {
	c := NewCollector(seedStore(t))
	c.Refresh(context.Background())

	summary := c.GetStats().Summary()
	require.Contains(t, summary, "1 tasks")
	require.Contains(t, summary, "1 pending entries")
}
