package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	rerrors "github.com/fieldops/remindd/internal/errors"
	"github.com/fieldops/remindd/store"
)

// EntryView is the JSON shape of a schedule entry.
type EntryView struct {
	UID         string `json:"uid"`
	TaskID      int32  `json:"task_id"`
	Recipient   string `json:"recipient"`
	FireAt      string `json:"fire_at"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
	Attempts    int32  `json:"attempts"`
	ParentUID   string `json:"parent_uid,omitempty"`
	DeliveredTs *int64 `json:"delivered_ts,omitempty"`
	AckTs       *int64 `json:"ack_ts,omitempty"`
}

// ListEntries returns schedule entries with optional filters.
// GET /api/v1/entries?recipient=sam&status=PENDING&limit=50
func (s *APIV1Service) ListEntries(c echo.Context) error {
	find := &store.FindScheduleEntry{}
	if recipient := c.QueryParam("recipient"); recipient != "" {
		user, ok := s.Roster.Find(recipient)
		if !ok {
			return badRequest(c, "unknown recipient")
		}
		find.RecipientID = &user.ID
	}
	if status := c.QueryParam("status"); status != "" {
		find.Statuses = []store.EntryStatus{store.EntryStatus(status)}
	}
	if limit, ok := intQueryParam(c, "limit"); ok {
		find.Limit = &limit
	}
	if offset, ok := intQueryParam(c, "offset"); ok {
		find.Offset = &offset
	}

	entries, err := s.Store.ListScheduleEntries(c.Request().Context(), find)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list entries"})
	}

	views := make([]EntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, toEntryView(entry))
	}
	return c.JSON(http.StatusOK, views)
}

// SnoozeRequest carries an optional snooze duration in minutes.
type SnoozeRequest struct {
	Minutes int `json:"minutes"`
}

// SnoozeEntry closes the entry and plans a replacement.
// POST /api/v1/entries/:uid/snooze
func (s *APIV1Service) SnoozeEntry(c echo.Context) error {
	var req SnoozeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if req.Minutes < 0 {
		return badRequest(c, "minutes must not be negative")
	}

	delta := time.Duration(req.Minutes) * time.Minute
	replacement, err := s.Scheduler.Snooze(c.Request().Context(), c.Param("uid"), delta)
	if err != nil {
		if rerrors.IsCode(err, rerrors.CodeInvalidArgument) {
			return badRequest(c, err.Error())
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, toEntryView(replacement))
}

// AckEntry acknowledges a delivered entry.
// POST /api/v1/entries/:uid/ack
func (s *APIV1Service) AckEntry(c echo.Context) error {
	if err := s.Scheduler.Ack(c.Request().Context(), c.Param("uid")); err != nil {
		if rerrors.IsCode(err, rerrors.CodeInvalidArgument) {
			return badRequest(c, err.Error())
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// CancelEntry withdraws an entry. Canceling an unknown entry succeeds.
// POST /api/v1/entries/:uid/cancel
func (s *APIV1Service) CancelEntry(c echo.Context) error {
	if err := s.Scheduler.Cancel(c.Request().Context(), c.Param("uid")); err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func toEntryView(entry *store.ScheduleEntry) EntryView {
	view := EntryView{
		UID:         entry.UID,
		TaskID:      entry.TaskID,
		Recipient:   entry.RecipientID,
		FireAt:      entry.FireTime().Format(time.RFC3339),
		Status:      string(entry.Status),
		Reason:      entry.Reason,
		Attempts:    entry.Attempts,
		DeliveredTs: entry.DeliveredTs,
		AckTs:       entry.AckTs,
	}
	if entry.ParentUID != nil {
		view.ParentUID = *entry.ParentUID
	}
	return view
}
