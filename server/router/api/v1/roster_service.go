package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RosterUserView is the JSON shape of one roster user.
type RosterUserView struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Timezone string   `json:"timezone"`
	Aliases  []string `json:"aliases,omitempty"`
}

// RosterResponse lists the deployment's users and canonical sites.
type RosterResponse struct {
	Users []RosterUserView `json:"users"`
	Sites []string         `json:"sites"`
}

// GetRoster returns the active roster.
// GET /api/v1/roster
func (s *APIV1Service) GetRoster(c echo.Context) error {
	users := s.Roster.Users()
	views := make([]RosterUserView, 0, len(users))
	for _, u := range users {
		views = append(views, RosterUserView{
			ID:       u.ID,
			Name:     u.Name,
			Timezone: u.Timezone,
			Aliases:  u.Aliases,
		})
	}
	return c.JSON(http.StatusOK, RosterResponse{Users: views, Sites: s.Roster.Sites()})
}
