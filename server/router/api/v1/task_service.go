package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/remindd/store"
)

// TaskView is the JSON shape of a confirmed task.
type TaskView struct {
	UID            string  `json:"uid"`
	Task           string  `json:"task"`
	RawText        string  `json:"raw_text"`
	Assignee       string  `json:"assignee"`
	Assigner       string  `json:"assigner"`
	Due            string  `json:"due"`
	Reminder       string  `json:"reminder"`
	Timezone       string  `json:"timezone"`
	Provenance     string  `json:"provenance"`
	RepeatInterval string  `json:"repeat_interval,omitempty"`
	RecurrenceRule string  `json:"recurrence_rule,omitempty"`
	Site           string  `json:"site,omitempty"`
	Confidence     float64 `json:"confidence"`
	CreatedTs      int64   `json:"created_ts"`
}

// ListTasks returns confirmed tasks, newest due first trimmed by limit.
// GET /api/v1/tasks?assignee=sam&limit=20&offset=0
func (s *APIV1Service) ListTasks(c echo.Context) error {
	find := &store.FindTask{}
	if assignee := c.QueryParam("assignee"); assignee != "" {
		user, ok := s.Roster.Find(assignee)
		if !ok {
			return badRequest(c, "unknown assignee")
		}
		find.AssigneeID = &user.ID
	}
	if limit, ok := intQueryParam(c, "limit"); ok {
		find.Limit = &limit
	}
	if offset, ok := intQueryParam(c, "offset"); ok {
		find.Offset = &offset
	}

	tasks, err := s.Store.ListTasks(c.Request().Context(), find)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list tasks"})
	}

	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, toTaskView(task))
	}
	return c.JSON(http.StatusOK, views)
}

// GetTask returns one task by its UID.
// GET /api/v1/tasks/:uid
func (s *APIV1Service) GetTask(c echo.Context) error {
	uid := c.Param("uid")
	task, err := s.Store.GetTask(c.Request().Context(), &store.FindTask{UID: &uid})
	if err != nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "task not found"})
	}
	return c.JSON(http.StatusOK, toTaskView(task))
}

func toTaskView(task *store.ConfirmedTask) TaskView {
	view := TaskView{
		UID:            task.UID,
		Task:           task.Task,
		RawText:        task.RawText,
		Assignee:       task.AssigneeID,
		Assigner:       task.AssignerID,
		Due:            task.DueTime().Format(time.RFC3339),
		Reminder:       task.ReminderTime().Format(time.RFC3339),
		Timezone:       task.Timezone,
		Provenance:     task.Provenance,
		RepeatInterval: task.RepeatInterval,
		Site:           task.Site,
		Confidence:     task.Confidence,
		CreatedTs:      task.CreatedTs,
	}
	if task.RecurrenceRule != nil {
		view.RecurrenceRule = *task.RecurrenceRule
	}
	return view
}

func intQueryParam(c echo.Context, name string) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}
