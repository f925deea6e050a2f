// Package v1 exposes the reminder pipeline over HTTP. Handlers are thin:
// they decode, call the coordinator or scheduler, and encode the result.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/remindd/internal/profile"
	"github.com/fieldops/remindd/server/clarify"
	"github.com/fieldops/remindd/server/middleware"
	"github.com/fieldops/remindd/server/roster"
	"github.com/fieldops/remindd/server/scheduler"
	"github.com/fieldops/remindd/server/stats"
	"github.com/fieldops/remindd/store"
)

type APIV1Service struct {
	Profile     *profile.Profile
	Store       *store.Store
	Coordinator *clarify.Coordinator
	Scheduler   *scheduler.Scheduler
	Roster      *roster.Roster
	Stats       *stats.Collector

	// limiter throttles per-requester message traffic; every message may
	// cost a parser call.
	limiter *middleware.RateLimiter
}

func NewAPIV1Service(p *profile.Profile, st *store.Store, coordinator *clarify.Coordinator, sched *scheduler.Scheduler, r *roster.Roster, collector *stats.Collector) *APIV1Service {
	return &APIV1Service{
		Profile:     p,
		Store:       st,
		Coordinator: coordinator,
		Scheduler:   sched,
		Roster:      r,
		Stats:       collector,
		limiter:     middleware.NewRateLimiter(2, 5),
	}
}

// Register mounts all v1 routes on the echo server.
func (s *APIV1Service) Register(e *echo.Echo) {
	g := e.Group("/api/v1")

	g.POST("/messages", s.HandleMessage)

	g.GET("/tasks", s.ListTasks)
	g.GET("/tasks/:uid", s.GetTask)

	g.GET("/entries", s.ListEntries)
	g.POST("/entries/:uid/snooze", s.SnoozeEntry)
	g.POST("/entries/:uid/ack", s.AckEntry)
	g.POST("/entries/:uid/cancel", s.CancelEntry)

	g.GET("/roster", s.GetRoster)
	g.GET("/stats", s.GetStats)
}

type errorResponse struct {
	Error string `json:"error"`
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}
