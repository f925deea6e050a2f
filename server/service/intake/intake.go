// Package intake turns confirmed drafts into persisted tasks with planned
// notifications. It is the bridge between the conversational front half of
// the pipeline and the scheduler behind it.
package intake

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/lithammer/shortuuid/v4"

	rerrors "github.com/fieldops/remindd/internal/errors"
	"github.com/fieldops/remindd/server/clarify"
	"github.com/fieldops/remindd/server/scheduler"
	"github.com/fieldops/remindd/server/scheduler/rrule"
	"github.com/fieldops/remindd/store"
)

// fallbackTaskID hands out in-memory task IDs during storage outages.
// Counting downward keeps them clear of store-assigned rows.
var fallbackTaskID atomic.Int32

// Service persists confirmed tasks and hands them to the scheduler.
type Service struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// NewService creates the intake service.
func NewService(st *store.Store, sched *scheduler.Scheduler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		scheduler: sched,
		logger:    logger.With(slog.String("component", "intake")),
	}
}

// Confirm satisfies clarify.ConfirmFunc: it records the confirmed draft as
// a task and plans its notifications. Called from inside the clarification
// coordinator once the requester says yes.
func (s *Service) Confirm(ctx context.Context, c *clarify.Confirmation) (*store.ConfirmedTask, []*store.ScheduleEntry, error) {
	draft := c.Draft
	if draft == nil || draft.Assignee == nil {
		return nil, nil, rerrors.New(rerrors.CodeInvalidArgument, "confirmation carries no resolved draft")
	}

	task := &store.ConfirmedTask{
		UID:            shortuuid.New(),
		RawText:        c.RawText,
		Task:           draft.Task,
		AssigneeID:     draft.Assignee.ID,
		AssignerID:     assignerID(c),
		DueTs:          draft.Due.Unix(),
		ReminderTs:     draft.Reminder.Unix(),
		Timezone:       draft.ZoneName,
		Provenance:     string(draft.Provenance),
		RepeatInterval: draft.RepeatInterval,
		Site:           draft.Site,
		Confidence:     draft.Confidence,
	}

	if rule, ok := rrule.FromRepeatInterval(draft.RepeatInterval); ok {
		encoded := rule.String()
		task.RecurrenceRule = &encoded
	}

	if history := encodeHistory(c.History); history != "" {
		task.CorrectionHistory = &history
	}

	created, err := s.store.CreateTask(ctx, task)
	if err != nil {
		// A storage outage at confirmation must not drop the reminder.
		// Schedule from the in-memory task; the row is missing until the
		// store recovers.
		perr := rerrors.Wrap(err, rerrors.CodePersistenceFailure, "failed to persist confirmed task")
		s.logger.Warn("task not persisted, scheduling from memory",
			slog.String("task_uid", task.UID),
			slog.String("error", perr.Error()))
		task.ID = fallbackTaskID.Add(-1)
		created = task
	}

	entries, err := s.scheduler.Submit(ctx, created)
	if err != nil {
		return created, nil, err
	}

	s.logger.Info("task confirmed",
		slog.String("task_uid", created.UID),
		slog.String("assignee", created.AssigneeID),
		slog.Int("planned_entries", len(entries)))
	return created, entries, nil
}

// ConfirmHook adapts Confirm to the coordinator's hook signature.
func (s *Service) ConfirmHook() clarify.ConfirmFunc {
	return func(ctx context.Context, c *clarify.Confirmation) error {
		_, _, err := s.Confirm(ctx, c)
		return err
	}
}

func assignerID(c *clarify.Confirmation) string {
	if c.Draft.Assigner != nil {
		return c.Draft.Assigner.ID
	}
	return c.RequesterID
}

// encodeHistory serializes the correction rounds for the task record.
// Corrections shape the final draft, so the audit trail keeps them.
func encodeHistory(history []clarify.Correction) string {
	if len(history) == 0 {
		return ""
	}
	data, err := json.Marshal(history)
	if err != nil {
		return ""
	}
	return string(data)
}
