package clarify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/fieldops/remindd/internal/errors"
	"github.com/fieldops/remindd/plugin/parser"
	"github.com/fieldops/remindd/server/roster"
	"github.com/fieldops/remindd/server/validate"
)

var fixedNow = time.Date(2025, 7, 9, 12, 0, 0, 0, time.UTC)

func testRoster(t *testing.T) *roster.Roster {
	t.Helper()
	r, err := roster.Parse([]byte(`
users:
  - id: sam
    name: Sam Kowalski
    timezone: America/Chicago
  - id: lee
    name: Lee Tran
    timezone: America/Los_Angeles
sites:
  - North Yard
`))
	require.NoError(t, err)
	return r
}

func goodCandidate() *parser.Candidate {
	return &parser.Candidate{
		Task:            "check the pump",
		Assignee:        "sam",
		Assigner:        "lee",
		DueDate:         "2025-07-10",
		DueTime:         "16:00",
		TimezoneContext: "CST",
		Confidence:      0.95,
	}
}

func newTestCoordinator(t *testing.T, mock *parser.MockClient, onConfirm ConfirmFunc, opts ...Option) *Coordinator {
	t.Helper()
	r := testRoster(t)
	v := validate.NewValidator(r, 0.6)
	opts = append(opts, WithNow(func() time.Time { return fixedNow }))
	return NewCoordinator(mock, v, r, onConfirm, opts...)
}

func TestHappyPathConfirm(t *testing.T) {
	mock := parser.NewMockClient()
	mock.Enqueue(goodCandidate(), nil)

	var confirmed *Confirmation
	c := newTestCoordinator(t, mock, func(_ context.Context, conf *Confirmation) error {
		confirmed = conf
		return nil
	})

	reply, err := c.HandleMessage(context.Background(), "conv-1", "lee", "tell sam to check the pump tomorrow at 4pm CST")
	require.NoError(t, err)
	assert.Equal(t, ReplyConfirmation, reply.Kind)
	assert.Equal(t, StateAwaitingConfirmation, reply.State)
	assert.Contains(t, reply.Message, "check the pump")
	assert.Contains(t, reply.Message, "Sam Kowalski")

	reply, err = c.HandleMessage(context.Background(), "conv-1", "lee", "yes")
	require.NoError(t, err)
	assert.Equal(t, ReplyConfirmed, reply.Kind)
	require.NotNil(t, confirmed)
	assert.Equal(t, "conv-1", confirmed.ConversationID)
	assert.Equal(t, "check the pump", confirmed.Draft.Task)
	assert.Empty(t, confirmed.History)
}

func TestCancellationAbandons(t *testing.T) {
	mock := parser.NewMockClient()
	mock.Enqueue(goodCandidate(), nil)

	c := newTestCoordinator(t, mock, nil)

	_, err := c.HandleMessage(context.Background(), "conv-1", "lee", "tell sam to check the pump at 4pm")
	require.NoError(t, err)

	reply, err := c.HandleMessage(context.Background(), "conv-1", "lee", "cancel")
	require.NoError(t, err)
	assert.Equal(t, ReplyAbandoned, reply.Kind)
	assert.Equal(t, StateAbandoned, reply.State)
}

func TestCorrectionIsStructuredReParse(t *testing.T) {
	mock := parser.NewMockClient()
	first := goodCandidate()
	mock.Enqueue(first, nil)
	second := goodCandidate()
	second.DueTime = "17:00"
	mock.Enqueue(second, nil)

	c := newTestCoordinator(t, mock, nil)

	_, err := c.HandleMessage(context.Background(), "conv-1", "lee", "tell sam to check the pump at 4pm CST")
	require.NoError(t, err)

	reply, err := c.HandleMessage(context.Background(), "conv-1", "lee", "make it 5pm instead")
	require.NoError(t, err)
	assert.Equal(t, ReplyConfirmation, reply.Kind)
	assert.Equal(t, "2025-07-10T22:00:00Z", reply.Draft.Due.Format(time.RFC3339))

	// The correction travels as structured fields next to the original
	// message, never concatenated into it.
	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	correction := reqs[1]
	assert.Equal(t, "tell sam to check the pump at 4pm CST", correction.RawText)
	assert.Equal(t, "make it 5pm instead", correction.CorrectionText)
	require.NotNil(t, correction.PriorDraft)
	assert.Equal(t, "16:00", correction.PriorDraft.DueTime)
	assert.NotContains(t, correction.RawText, "make it 5pm")

	// The history recorded the round.
	conv := c.Conversation("conv-1")
	require.NotNil(t, conv)
	require.Len(t, conv.Corrections, 1)
	assert.Equal(t, 1, conv.Corrections[0].Round)
	assert.Equal(t, "make it 5pm instead", conv.Corrections[0].Text)
}

func TestSchemaViolationRoutesToClarification(t *testing.T) {
	mock := parser.NewMockClient()
	bad := goodCandidate()
	bad.Assignee = "zoe"
	mock.Enqueue(bad, nil)

	c := newTestCoordinator(t, mock, nil)

	reply, err := c.HandleMessage(context.Background(), "conv-1", "lee", "tell zoe to check the pump at 4pm")
	require.NoError(t, err)
	assert.Equal(t, ReplyClarification, reply.Kind)
	assert.Equal(t, StateAwaitingClarification, reply.State)
	assert.Contains(t, reply.Message, "assignee")
	assert.Contains(t, reply.Message, "zoe")
}

func TestLowConfidenceRoutesToClarification(t *testing.T) {
	mock := parser.NewMockClient()
	unsure := goodCandidate()
	unsure.Confidence = 0.4
	mock.Enqueue(unsure, nil)

	c := newTestCoordinator(t, mock, nil)

	reply, err := c.HandleMessage(context.Background(), "conv-1", "lee", "maybe sam should look at something at 4ish")
	require.NoError(t, err)
	assert.Equal(t, ReplyClarification, reply.Kind)
	assert.Contains(t, reply.Message, "not sure")
}

func TestExactlyMaxRoundsThenAbandoned(t *testing.T) {
	mock := parser.NewMockClient()
	// First parse and every correction keep failing validation.
	for i := 0; i < 4; i++ {
		bad := goodCandidate()
		bad.Assignee = "zoe"
		mock.Enqueue(bad, nil)
	}

	c := newTestCoordinator(t, mock, nil, WithMaxRounds(3))

	reply, err := c.HandleMessage(context.Background(), "conv-1", "lee", "tell zoe to check the pump at 4pm")
	require.NoError(t, err)
	assert.Equal(t, ReplyClarification, reply.Kind)

	// Rounds 1 and 2 keep asking.
	for i := 0; i < 2; i++ {
		reply, err = c.HandleMessage(context.Background(), "conv-1", "lee", "I meant zoe from contracting")
		require.NoError(t, err)
		assert.Equal(t, ReplyClarification, reply.Kind)
	}

	// Round 3 is the last: still invalid, so the conversation is
	// abandoned with the full history.
	reply, err = c.HandleMessage(context.Background(), "conv-1", "lee", "zoe, z-o-e")
	require.Error(t, err)
	assert.True(t, rerrors.IsCode(err, rerrors.CodeClarificationExhausted))
	assert.Equal(t, ReplyAbandoned, reply.Kind)
	assert.Equal(t, StateAbandoned, reply.State)
	require.Len(t, reply.History, 3)
	assert.Equal(t, 3, reply.History[2].Round)
	// The best-effort draft is still surfaced.
	require.NotNil(t, reply.Draft)
	assert.Equal(t, "check the pump", reply.Draft.Task)
}

func TestConfirmingInvalidDraftKeepsClarifying(t *testing.T) {
	mock := parser.NewMockClient()
	bad := goodCandidate()
	bad.Assignee = "zoe"
	mock.Enqueue(bad, nil)

	c := newTestCoordinator(t, mock, nil)

	_, err := c.HandleMessage(context.Background(), "conv-1", "lee", "tell zoe to check the pump at 4pm")
	require.NoError(t, err)

	reply, err := c.HandleMessage(context.Background(), "conv-1", "lee", "yes")
	require.NoError(t, err)
	assert.Equal(t, ReplyClarification, reply.Kind)
}

func TestTerminalConversationStartsFresh(t *testing.T) {
	mock := parser.NewMockClient()
	mock.Enqueue(goodCandidate(), nil)
	mock.Enqueue(goodCandidate(), nil)

	c := newTestCoordinator(t, mock, nil)

	_, err := c.HandleMessage(context.Background(), "conv-1", "lee", "tell sam to check the pump at 4pm")
	require.NoError(t, err)
	_, err = c.HandleMessage(context.Background(), "conv-1", "lee", "yes")
	require.NoError(t, err)

	reply, err := c.HandleMessage(context.Background(), "conv-1", "lee", "tell sam to flush the line at noon")
	require.NoError(t, err)
	assert.Equal(t, ReplyConfirmation, reply.Kind)
	conv := c.Conversation("conv-1")
	assert.Empty(t, conv.Corrections)
}

func TestIndependentConversationsDoNotInterfere(t *testing.T) {
	mock := parser.NewMockClient()
	for i := 0; i < 8; i++ {
		mock.Enqueue(goodCandidate(), nil)
	}

	c := newTestCoordinator(t, mock, nil)

	var wg sync.WaitGroup
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := c.HandleMessage(context.Background(), id, "lee", "tell sam to check the pump at 4pm")
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		conv := c.Conversation(id)
		require.NotNil(t, conv)
		assert.Equal(t, StateAwaitingConfirmation, conv.State)
	}
}

func TestParserOutageSurfaces(t *testing.T) {
	mock := parser.NewMockClient()
	mock.Enqueue(nil, rerrors.New(rerrors.CodeParserUnavailable, "down"))

	c := newTestCoordinator(t, mock, nil)

	_, err := c.HandleMessage(context.Background(), "conv-1", "lee", "tell sam to check the pump at 4pm")
	require.Error(t, err)
	assert.True(t, rerrors.IsCode(err, rerrors.CodeParserUnavailable))
}

func TestCleanupDropsIdleTerminalConversations(t *testing.T) {
	mock := parser.NewMockClient()
	mock.Enqueue(goodCandidate(), nil)

	c := newTestCoordinator(t, mock, nil)
	_, err := c.HandleMessage(context.Background(), "conv-1", "lee", "tell sam to check the pump at 4pm")
	require.NoError(t, err)
	_, err = c.HandleMessage(context.Background(), "conv-1", "lee", "cancel")
	require.NoError(t, err)

	// Active conversations survive, terminal ones past the age do not.
	assert.Equal(t, 0, c.Cleanup(time.Hour))
	assert.Equal(t, 1, c.Cleanup(-time.Hour))
	assert.Nil(t, c.Conversation("conv-1"))
}

func TestCleanupAbandonsStaleAwaitingConversations(t *testing.T) {
	mock := parser.NewMockClient()
	mock.Enqueue(goodCandidate(), nil)

	now := fixedNow
	r := testRoster(t)
	v := validate.NewValidator(r, 0.6)
	c := NewCoordinator(mock, v, r, nil, WithNow(func() time.Time { return now }))

	reply, err := c.HandleMessage(context.Background(), "conv-1", "lee", "tell sam to check the pump tomorrow at 4pm CST")
	require.NoError(t, err)
	require.Equal(t, StateAwaitingConfirmation, reply.State)

	// Still fresh: the pending conversation is left alone.
	assert.Equal(t, 0, c.Cleanup(24*time.Hour))

	conv := c.Conversation("conv-1")
	require.NotNil(t, conv)

	// The requester never answers. Past the age the draft is abandoned
	// and the conversation swept.
	now = now.Add(48 * time.Hour)
	assert.Equal(t, 1, c.Cleanup(24*time.Hour))
	assert.Equal(t, StateAbandoned, conv.State)
	assert.Nil(t, c.Conversation("conv-1"))
}
