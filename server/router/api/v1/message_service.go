package v1

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	rerrors "github.com/fieldops/remindd/internal/errors"
	"github.com/fieldops/remindd/server/clarify"
)

// MessageRequest is one inbound chat message from a requester.
type MessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Requester      string `json:"requester"`
	Text           string `json:"text"`
}

// MessageResponse carries the coordinator's reply for the conversation.
type MessageResponse struct {
	ConversationID string               `json:"conversation_id"`
	Kind           clarify.ReplyKind    `json:"kind"`
	Message        string               `json:"message"`
	State          clarify.State        `json:"state"`
	Draft          *DraftView           `json:"draft,omitempty"`
	History        []clarify.Correction `json:"history,omitempty"`
}

// DraftView is the JSON shape of a resolved draft.
type DraftView struct {
	Task           string  `json:"task"`
	Assignee       string  `json:"assignee"`
	Assigner       string  `json:"assigner"`
	Due            string  `json:"due"`
	Reminder       string  `json:"reminder"`
	Timezone       string  `json:"timezone"`
	Provenance     string  `json:"provenance"`
	RepeatInterval string  `json:"repeat_interval,omitempty"`
	Site           string  `json:"site,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// HandleMessage runs one conversation turn through the pipeline.
// POST /api/v1/messages
func (s *APIV1Service) HandleMessage(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	req.Requester = strings.TrimSpace(req.Requester)
	req.Text = strings.TrimSpace(req.Text)
	if req.Requester == "" || req.Text == "" {
		return badRequest(c, "requester and text are required")
	}
	if req.ConversationID == "" {
		req.ConversationID = req.Requester
	}
	if _, ok := s.Roster.Find(req.Requester); !ok {
		return badRequest(c, "unknown requester")
	}
	if !s.limiter.Allow(req.Requester) {
		return c.JSON(http.StatusTooManyRequests, errorResponse{Error: "slow down"})
	}

	s.Stats.RecordMessage()
	reply, err := s.Coordinator.HandleMessage(c.Request().Context(), req.ConversationID, req.Requester, req.Text)
	if err != nil && reply == nil {
		if rerrors.IsCode(err, rerrors.CodeParserUnavailable) {
			s.Stats.RecordParserError()
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "parser unavailable, try again"})
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	switch reply.Kind {
	case clarify.ReplyClarification:
		s.Stats.RecordClarification()
	case clarify.ReplyConfirmed:
		s.Stats.RecordConfirmation()
	case clarify.ReplyAbandoned:
		s.Stats.RecordAbandonment()
	}

	// An abandoned conversation returns both a reply and an error; the
	// reply is what the requester should see.
	return c.JSON(http.StatusOK, toMessageResponse(req.ConversationID, reply))
}

func toMessageResponse(conversationID string, reply *clarify.Reply) MessageResponse {
	resp := MessageResponse{
		ConversationID: conversationID,
		Kind:           reply.Kind,
		Message:        reply.Message,
		State:          reply.State,
		History:        reply.History,
	}
	if reply.Draft != nil && reply.Draft.Assignee != nil {
		d := reply.Draft
		view := &DraftView{
			Task:           d.Task,
			Assignee:       d.Assignee.ID,
			Due:            d.Due.UTC().Format(time.RFC3339),
			Reminder:       d.Reminder.UTC().Format(time.RFC3339),
			Timezone:       d.ZoneName,
			Provenance:     string(d.Provenance),
			RepeatInterval: d.RepeatInterval,
			Site:           d.Site,
			Confidence:     d.Confidence,
		}
		if d.Assigner != nil {
			view.Assigner = d.Assigner.ID
		}
		resp.Draft = view
	}
	return resp
}
