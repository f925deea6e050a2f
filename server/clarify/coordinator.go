// Package clarify runs the bounded human-in-the-loop correction step
// between parsing and scheduling. It owns every TaskDraft mutation: a
// draft is presented, the requester confirms or corrects, and after a
// fixed number of failed rounds the conversation is abandoned with its
// full history.
package clarify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	rerrors "github.com/fieldops/remindd/internal/errors"
	"github.com/fieldops/remindd/internal/observability"
	"github.com/fieldops/remindd/plugin/parser"
	"github.com/fieldops/remindd/server/roster"
	"github.com/fieldops/remindd/server/temporal"
	"github.com/fieldops/remindd/server/validate"
)

// DefaultMaxRounds bounds the clarification loop.
const DefaultMaxRounds = 3

// ConfirmFunc receives accepted drafts. It runs inside the conversation's
// critical section, so implementations should hand off quickly.
type ConfirmFunc func(ctx context.Context, c *Confirmation) error

// Coordinator drives clarification conversations. Each conversation is
// serialized on its own mutex; independent conversations proceed
// concurrently.
type Coordinator struct {
	parser    parser.Client
	validator *validate.Validator
	roster    *roster.Roster
	onConfirm ConfirmFunc

	maxRounds int
	now       func() time.Time

	mu            sync.Mutex
	conversations map[string]*Conversation
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMaxRounds overrides the clarification round bound.
func WithMaxRounds(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxRounds = n
		}
	}
}

// WithNow injects a clock for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a coordinator.
func NewCoordinator(p parser.Client, v *validate.Validator, r *roster.Roster, onConfirm ConfirmFunc, opts ...Option) *Coordinator {
	c := &Coordinator{
		parser:        p,
		validator:     v,
		roster:        r,
		onConfirm:     onConfirm,
		maxRounds:     DefaultMaxRounds,
		now:           time.Now,
		conversations: make(map[string]*Conversation),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleMessage processes one inbound message for a conversation. New
// conversation IDs start a fresh draft; known ones are interpreted as a
// confirmation, cancellation, or correction of the pending draft.
func (c *Coordinator) HandleMessage(ctx context.Context, conversationID, requesterID, rawText string) (*Reply, error) {
	rc := observability.FromContextOrDefault(ctx)

	conv := c.conversation(conversationID, requesterID)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	if conv.State.IsTerminal() {
		// A terminal conversation gets a fresh draft under the same ID.
		c.reset(conv, requesterID)
	}
	conv.UpdatedTs = c.now().Unix()

	switch conv.State {
	case StateDrafting:
		conv.RawText = rawText
		return c.draft(ctx, conv, rawText, "")
	case StateAwaitingConfirmation, StateAwaitingClarification:
		switch {
		case isAffirmative(rawText):
			return c.confirm(ctx, conv)
		case isCancellation(rawText):
			conv.State = StateAbandoned
			rc.Info("conversation canceled", slog.String(observability.LogFieldConversationID, conv.ID))
			return &Reply{
				Kind:    ReplyAbandoned,
				Message: "Dropped. Nothing was scheduled.",
				State:   StateAbandoned,
				Draft:   conv.Draft,
				History: conv.Corrections,
			}, nil
		default:
			return c.correct(ctx, conv, rawText)
		}
	}
	return nil, rerrors.Newf(rerrors.CodeInvalidArgument, "conversation %s in unexpected state %s", conv.ID, conv.State)
}

// Conversation returns the conversation by ID, or nil.
func (c *Coordinator) Conversation(id string) *Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversations[id]
}

// Cleanup drops conversations idle longer than maxAge and returns how
// many were removed. A stale conversation still waiting on the requester
// is abandoned first, so a requester who goes silent cannot pin a draft
// open forever.
func (c *Coordinator) Cleanup(maxAge time.Duration) int {
	cutoff := c.now().Add(-maxAge).Unix()

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, conv := range c.conversations {
		idle := conv.UpdatedTs
		if idle == 0 {
			idle = conv.CreatedTs
		}
		if idle >= cutoff {
			continue
		}
		if !conv.State.IsTerminal() {
			conv.mu.Lock()
			if !conv.State.IsTerminal() {
				conv.State = StateAbandoned
			}
			conv.mu.Unlock()
		}
		delete(c.conversations, id)
		removed++
	}
	return removed
}

func (c *Coordinator) conversation(id, requesterID string) *Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conv, ok := c.conversations[id]; ok {
		return conv
	}
	conv := &Conversation{
		ID:          id,
		RequesterID: requesterID,
		State:       StateDrafting,
		CreatedTs:   c.now().Unix(),
	}
	c.conversations[id] = conv
	return conv
}

func (c *Coordinator) reset(conv *Conversation, requesterID string) {
	conv.State = StateDrafting
	conv.RequesterID = requesterID
	conv.RawText = ""
	conv.Candidate = nil
	conv.Draft = nil
	conv.Violations = nil
	conv.Corrections = nil
	conv.Round = 0
}

// draft runs the parse and validation pipeline for the original message
// or a correction round. correction is empty on the first pass.
func (c *Coordinator) draft(ctx context.Context, conv *Conversation, rawText, correction string) (*Reply, error) {
	rc := observability.FromContextOrDefault(ctx)
	now := c.now()

	// Period hours come from the requester's profile: the pre-pass runs
	// before the parse, and the assignee is not known until it returns.
	refZone := time.UTC
	normalizer := temporal.NewNormalizer()
	if u, ok := c.roster.Find(conv.RequesterID); ok {
		refZone = u.Location()
		normalizer = normalizer.WithPeriods(periodsFor(u))
	}

	// Closed-form idioms resolve locally; everything else defers to the
	// external parser. A correction round skips the pre-pass so the
	// corrected fields are not clobbered by the original wording.
	var tempResult *temporal.Result
	if correction == "" {
		tr := normalizer.Normalize(rawText, now, refZone)
		tempResult = &tr
	}

	req := &parser.Request{
		RawText:          conv.RawText,
		ReferenceInstant: now,
		ReferenceZone:    refZone.String(),
	}
	if correction != "" {
		req.PriorDraft = conv.Candidate
		req.CorrectionText = correction
	}

	candidate, err := c.parser.Parse(ctx, req)
	if err != nil {
		rc.Error("parse failed", err, slog.String(observability.LogFieldConversationID, conv.ID))
		return nil, rerrors.Wrap(err, rerrors.CodeParserUnavailable, "external parse failed")
	}
	conv.Candidate = candidate

	draft, violations := c.validator.Validate(&validate.Input{
		Candidate:        candidate,
		RequesterID:      conv.RequesterID,
		ReferenceInstant: now,
		Temporal:         tempResult,
	})
	if correction != "" {
		draft.Provenance = temporal.ProvenanceClarified
	}
	conv.Draft = draft
	conv.Violations = violations

	if len(violations) > 0 || c.validator.BelowThreshold(draft) {
		return c.needsWork(conv, violations, draft)
	}

	conv.State = StateAwaitingConfirmation
	return &Reply{
		Kind:    ReplyConfirmation,
		Message: FormatConfirmation(draft),
		State:   StateAwaitingConfirmation,
		Draft:   draft,
	}, nil
}

// needsWork routes an unusable draft to another clarification round, or
// abandons the conversation when the rounds are spent.
func (c *Coordinator) needsWork(conv *Conversation, violations []validate.Violation, draft *validate.Draft) (*Reply, error) {
	if conv.Round >= c.maxRounds {
		conv.State = StateAbandoned
		return &Reply{
				Kind:    ReplyAbandoned,
				Message: FormatAbandoned(conv.Corrections),
				State:   StateAbandoned,
				Draft:   draft,
				History: conv.Corrections,
			}, rerrors.New(rerrors.CodeClarificationExhausted, "clarification rounds exhausted").
				WithContext("conversation_id", conv.ID).
				WithContext("rounds", conv.Round)
	}

	conv.State = StateAwaitingClarification
	code := rerrors.CodeLowConfidence
	if len(violations) > 0 {
		code = rerrors.CodeSchemaViolation
	}
	return &Reply{
		Kind:    ReplyClarification,
		Message: FormatClarification(violations, code == rerrors.CodeLowConfidence),
		State:   StateAwaitingClarification,
		Draft:   draft,
	}, nil
}

// correct re-issues the parse as a structured re-parse request. The
// correction text travels in its own field next to the untouched original
// message; the two are never concatenated.
func (c *Coordinator) correct(ctx context.Context, conv *Conversation, correction string) (*Reply, error) {
	conv.Round++
	conv.Corrections = append(conv.Corrections, Correction{
		Round: conv.Round,
		Text:  correction,
		Ts:    c.now().Unix(),
	})
	return c.draft(ctx, conv, conv.RawText, correction)
}

func (c *Coordinator) confirm(ctx context.Context, conv *Conversation) (*Reply, error) {
	rc := observability.FromContextOrDefault(ctx)

	if len(conv.Violations) > 0 {
		// Confirming an invalid draft is not possible; treat it as a
		// request to continue fixing it.
		return c.needsWork(conv, conv.Violations, conv.Draft)
	}

	if c.onConfirm != nil {
		if err := c.onConfirm(ctx, &Confirmation{
			ConversationID: conv.ID,
			RequesterID:    conv.RequesterID,
			RawText:        conv.RawText,
			Draft:          conv.Draft,
			History:        conv.Corrections,
		}); err != nil {
			rc.Error("confirm hook failed", err, slog.String(observability.LogFieldConversationID, conv.ID))
			return nil, err
		}
	}

	conv.State = StateConfirmed
	rc.Info("conversation confirmed",
		slog.String(observability.LogFieldConversationID, conv.ID),
		slog.Int("rounds", conv.Round),
		slog.Float64("confidence", conv.Draft.Confidence))
	return &Reply{
		Kind:    ReplyConfirmed,
		Message: "Scheduled.",
		State:   StateConfirmed,
		Draft:   conv.Draft,
		History: conv.Corrections,
	}, nil
}

// periodsFor maps the user's configured period hours onto the defaults.
func periodsFor(u *roster.User) temporal.PeriodTimes {
	p := temporal.DefaultPeriodTimes()
	if h, ok := u.PeriodTimes["morning"]; ok {
		p.Morning = h
	}
	if h, ok := u.PeriodTimes["afternoon"]; ok {
		p.Afternoon = h
	}
	if h, ok := u.PeriodTimes["evening"]; ok {
		p.Evening = h
	}
	if h, ok := u.PeriodTimes["night"]; ok {
		p.Night = h
	}
	return p
}

func isAffirmative(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "yep", "yeah", "ok", "okay", "confirm", "confirmed", "correct":
		return true
	}
	return false
}

func isCancellation(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "no", "cancel", "drop", "nevermind", "never mind", "forget it", "stop":
		return true
	}
	return false
}
