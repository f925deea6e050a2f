package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetStats returns the pipeline statistics snapshot.
// GET /api/v1/stats
func (s *APIV1Service) GetStats(c echo.Context) error {
	s.Stats.Refresh(c.Request().Context())
	snapshot := s.Stats.GetStats()
	return c.JSON(http.StatusOK, map[string]any{
		"total_tasks":          snapshot.TotalTasks,
		"tasks_last_week":      snapshot.TasksLastWeek,
		"recurring_tasks":      snapshot.RecurringTasks,
		"pending_entries":      snapshot.PendingEntries,
		"overdue_pending":      snapshot.OverduePending,
		"delivered_entries":    snapshot.DeliveredEntries,
		"acknowledged_entries": snapshot.AcknowledgedEntries,
		"failed_entries":       snapshot.FailedEntries,
		"messages_handled":     snapshot.MessagesHandled,
		"clarifications":       snapshot.Clarifications,
		"confirmations":        snapshot.Confirmations,
		"abandonments":         snapshot.Abandonments,
		"parser_errors":        snapshot.ParserErrors,
		"summary":              snapshot.Summary(),
	})
}
