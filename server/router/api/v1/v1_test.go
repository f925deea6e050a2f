package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/remindd/internal/profile"
	"github.com/fieldops/remindd/plugin/delivery"
	"github.com/fieldops/remindd/plugin/parser"
	"github.com/fieldops/remindd/server/clarify"
	"github.com/fieldops/remindd/server/roster"
	"github.com/fieldops/remindd/server/scheduler"
	"github.com/fieldops/remindd/server/service/intake"
	"github.com/fieldops/remindd/server/stats"
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
sites:
  - North Yard
`

type fixture struct {
	echo   *echo.Echo
	store  *store.Store
	parser *parser.MockClient
	mock   *delivery.MockDeliverer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := store.New(memory.NewDB(), &profile.Profile{Driver: "memory"})
	r, err := roster.Parse([]byte(testRoster))
	require.NoError(t, err)

	mock := delivery.NewMockDeliverer()
	sched := scheduler.New(st, mock, r, scheduler.Config{}, nil)
	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(sched.Stop)

	mockParser := parser.NewMockClient()
	validator := validate.NewValidator(r, 0.6)
	intakeService := intake.NewService(st, sched, nil)
	coordinator := clarify.NewCoordinator(mockParser, validator, r, intakeService.ConfirmHook())

	p := &profile.Profile{Driver: "memory", ConfidenceThreshold: 0.6}
	service := NewAPIV1Service(p, st, coordinator, sched, r, stats.NewCollector(st))

	e := echo.New()
	service.Register(e)
	return &fixture{echo: e, store: st, parser: mockParser, mock: mock}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func enqueueCleanCandidate(f *fixture) string {
	dueDate := time.Now().Add(24 * time.Hour).Format("2006-01-02")
	f.parser.Enqueue(&parser.Candidate{
		Task:       "check the north pump",
		Assignee:   "Sam",
		DueDate:    dueDate,
		DueTime:    "16:00",
		Site:       "north yard",
		Confidence: 0.95,
	}, nil)
	return dueDate
}

func TestHandleMessageReturnsConfirmationPrompt(t *testing.T) {
	f := newFixture(t)
	enqueueCleanCandidate(f)

	rec := f.do(t, http.MethodPost, "/api/v1/messages",
		`{"requester":"lee","text":"remind Sam to check the north pump at 4pm tomorrow"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, clarify.ReplyConfirmation, resp.Kind)
	require.NotNil(t, resp.Draft)
	require.Equal(t, "sam", resp.Draft.Assignee)
	require.Equal(t, "North Yard", resp.Draft.Site)
	require.Contains(t, resp.Message, "check the north pump")
}

func TestConfirmFlowPersistsTaskAndEntries(t *testing.T) {
	f := newFixture(t)
	enqueueCleanCandidate(f)

	rec := f.do(t, http.MethodPost, "/api/v1/messages",
		`{"conversation_id":"c1","requester":"lee","text":"remind Sam to check the north pump at 4pm tomorrow"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/messages",
		`{"conversation_id":"c1","requester":"lee","text":"yes"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, clarify.ReplyConfirmed, resp.Kind)

	rec = f.do(t, http.MethodGet, "/api/v1/tasks?assignee=sam", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []TaskView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	require.Equal(t, "check the north pump", tasks[0].Task)

	rec = f.do(t, http.MethodGet, "/api/v1/tasks/"+tasks[0].UID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/entries?recipient=sam", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []EntryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.NotEmpty(t, entries)
	require.Equal(t, string(store.EntryPending), entries[0].Status)
}

func TestHandleMessageRejectsUnknownRequester(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/messages",
		`{"requester":"stranger","text":"remind Sam to call"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMessageRequiresText(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/messages", `{"requester":"lee","text":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnoozeEndpointPlansReplacement(t *testing.T) {
	f := newFixture(t)
	enqueueCleanCandidate(f)

	f.do(t, http.MethodPost, "/api/v1/messages",
		`{"conversation_id":"c1","requester":"lee","text":"remind Sam to check the north pump at 4pm tomorrow"}`)
	f.do(t, http.MethodPost, "/api/v1/messages",
		`{"conversation_id":"c1","requester":"lee","text":"yes"}`)

	rec := f.do(t, http.MethodGet, "/api/v1/entries?recipient=sam", "")
	var entries []EntryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.NotEmpty(t, entries)

	rec = f.do(t, http.MethodPost, "/api/v1/entries/"+entries[0].UID+"/snooze", `{"minutes":15}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var replacement EntryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replacement))
	require.Equal(t, store.ReasonSnooze, replacement.Reason)
	require.Equal(t, entries[0].UID, replacement.ParentUID)

	rec = f.do(t, http.MethodPost, "/api/v1/entries/"+entries[0].UID+"/snooze", `{"minutes":15}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelEndpointIsIdempotent(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/entries/never-existed/cancel", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStatsEndpointCountsActivity(t *testing.T) {
	f := newFixture(t)
	enqueueCleanCandidate(f)

	f.do(t, http.MethodPost, "/api/v1/messages",
		`{"conversation_id":"c1","requester":"lee","text":"remind Sam to check the north pump at 4pm tomorrow"}`)
	f.do(t, http.MethodPost, "/api/v1/messages",
		`{"conversation_id":"c1","requester":"lee","text":"yes"}`)

	rec := f.do(t, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.EqualValues(t, 1, snapshot["total_tasks"])
	require.EqualValues(t, 2, snapshot["messages_handled"])
	require.EqualValues(t, 1, snapshot["confirmations"])
}

func TestGetRoster(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/roster", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RosterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Users, 2)
	require.Equal(t, []string{"North Yard"}, resp.Sites)
}
