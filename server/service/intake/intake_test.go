package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldops/remindd/internal/profile"
	"github.com/fieldops/remindd/plugin/delivery"
	"github.com/fieldops/remindd/server/clarify"
	"github.com/fieldops/remindd/server/roster"
	"github.com/fieldops/remindd/server/scheduler"
	"github.com/fieldops/remindd/server/temporal"
	"github.com/fieldops/remindd/server/validate"
	"github.com/fieldops/remindd/store"
	"github.com/fieldops/remindd/store/db/memory"
)

const testRoster = `
users:
  - id: sam
    name: Sam
    timezone: America/Chicago
  - id: lee
    name: Lee
    timezone: America/Los_Angeles
`

func newFixture(t *testing.T) (*Service, *store.Store, *roster.Roster) {
	t.Helper()
	st := store.New(memory.NewDB(), &profile.Profile{Driver: "memory"})
	r, err := roster.Parse([]byte(testRoster))
	require.NoError(t, err)

	sched := scheduler.New(st, delivery.NewMockDeliverer(), r, scheduler.Config{}, nil)
	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(sched.Stop)

	return NewService(st, sched, nil), st, r
}

func confirmation(r *roster.Roster, due, reminder time.Time) *clarify.Confirmation {
	sam, _ := r.Find("sam")
	lee, _ := r.Find("lee")
	return &clarify.Confirmation{
		ConversationID: "conv-1",
		RequesterID:    "lee",
		RawText:        "remind Sam to check the north pump at 4pm tomorrow",
		Draft: &validate.Draft{
			Task:       "check the north pump",
			Assignee:   sam,
			Assigner:   lee,
			Due:        due,
			Reminder:   reminder,
			ZoneName:   "America/Chicago",
			Provenance: temporal.ProvenanceInferredAssigner,
			Confidence: 0.9,
		},
	}
}

func TestConfirmPersistsTaskAndPlansEntries(t *testing.T) {
	svc, st, r := newFixture(t)
	ctx := context.Background()

	due := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	reminder := due.Add(-30 * time.Minute)
	task, entries, err := svc.Confirm(ctx, confirmation(r, due, reminder))
	require.NoError(t, err)

	require.NotEmpty(t, task.UID)
	require.Equal(t, "sam", task.AssigneeID)
	require.Equal(t, "lee", task.AssignerID)
	require.Equal(t, due.Unix(), task.DueTs)
	require.Equal(t, reminder.Unix(), task.ReminderTs)
	require.Nil(t, task.RecurrenceRule)

	require.Len(t, entries, 2)
	require.Equal(t, store.ReasonReminder, entries[0].Reason)
	require.Equal(t, store.ReasonDue, entries[1].Reason)

	persisted, err := st.GetTask(ctx, &store.FindTask{UID: &task.UID})
	require.NoError(t, err)
	require.Equal(t, task.Task, persisted.Task)
}

func TestConfirmLowersRepeatIntervalToRecurrenceRule(t *testing.T) {
	svc, _, r := newFixture(t)

	due := time.Now().Add(time.Hour).Truncate(time.Second)
	c := confirmation(r, due, due)
	c.Draft.RepeatInterval = "weekdays"

	task, entries, err := svc.Confirm(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, task.RecurrenceRule)
	require.Equal(t, "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR", *task.RecurrenceRule)
	require.Len(t, entries, 1)
}

func TestConfirmRecordsCorrectionHistory(t *testing.T) {
	svc, st, r := newFixture(t)

	due := time.Now().Add(time.Hour).Truncate(time.Second)
	c := confirmation(r, due, due)
	c.History = []clarify.Correction{
		{Round: 1, Text: "make it 5pm not 4pm", Ts: time.Now().Unix()},
	}

	task, _, err := svc.Confirm(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, task.CorrectionHistory)
	require.Contains(t, *task.CorrectionHistory, "make it 5pm not 4pm")

	persisted, err := st.GetTask(context.Background(), &store.FindTask{UID: &task.UID})
	require.NoError(t, err)
	require.NotNil(t, persisted.CorrectionHistory)
}

// outageDriver simulates a store that cannot accept new task rows.
type outageDriver struct {
	store.Driver
}

func (d *outageDriver) CreateTask(ctx context.Context, create *store.ConfirmedTask) (*store.ConfirmedTask, error) {
	return nil, errors.New("database is locked")
}

func TestConfirmSchedulesThroughStorageOutage(t *testing.T) {
	st := store.New(&outageDriver{Driver: memory.NewDB()}, &profile.Profile{Driver: "memory"})
	r, err := roster.Parse([]byte(testRoster))
	require.NoError(t, err)

	sched := scheduler.New(st, delivery.NewMockDeliverer(), r, scheduler.Config{}, nil)
	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(sched.Stop)
	svc := NewService(st, sched, nil)

	due := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	task, entries, err := svc.Confirm(context.Background(), confirmation(r, due, due.Add(-30*time.Minute)))
	require.NoError(t, err)

	// The task never reached the store, but the notifications are planned.
	require.Negative(t, task.ID)
	require.Len(t, entries, 2)
	require.Equal(t, task.ID, entries[0].TaskID)

	tasks, err := st.ListTasks(context.Background(), &store.FindTask{})
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestConfirmRejectsUnresolvedDraft(t *testing.T) {
	svc, _, _ := newFixture(t)

	_, _, err := svc.Confirm(context.Background(), &clarify.Confirmation{
		ConversationID: "conv-2",
		RequesterID:    "lee",
		RawText:        "nonsense",
	})
	require.Error(t, err)
}
