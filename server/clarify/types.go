package clarify

import (
	"sync"

	"github.com/fieldops/remindd/plugin/parser"
	"github.com/fieldops/remindd/server/validate"
)

// State is the conversation lifecycle state.
type State string

const (
	// StateDrafting means the first parse is in progress.
	StateDrafting State = "DRAFTING"
	// StateAwaitingConfirmation means a valid draft was presented and the
	// requester has not answered yet.
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	// StateAwaitingClarification means the draft had problems and the
	// requester was asked to fix specific fields.
	StateAwaitingClarification State = "AWAITING_CLARIFICATION"
	// StateConfirmed is terminal: the draft was accepted and handed off.
	StateConfirmed State = "CONFIRMED"
	// StateAbandoned is terminal: the requester gave up, canceled, or the
	// clarification rounds ran out.
	StateAbandoned State = "ABANDONED"
)

// IsTerminal reports whether the state accepts no further messages.
func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateAbandoned
}

// Correction is one round of requester feedback. The history is
// append-only; entries are never rewritten.
type Correction struct {
	Round int    `json:"round"`
	Text  string `json:"text"`
	Ts    int64  `json:"ts"`
}

// Conversation is the per-requester clarification session. All access
// goes through the coordinator, which serializes on mu; independent
// conversations never contend.
type Conversation struct {
	mu sync.Mutex

	ID          string
	RequesterID string
	State       State
	RawText     string

	// Candidate is the latest parser output, kept so corrections can be
	// re-issued as structured re-parse requests.
	Candidate  *parser.Candidate
	Draft      *validate.Draft
	Violations []validate.Violation

	Corrections []Correction
	Round       int

	CreatedTs int64
	UpdatedTs int64
}

// ReplyKind classifies what the coordinator wants said back.
type ReplyKind string

const (
	ReplyConfirmation  ReplyKind = "confirmation"
	ReplyClarification ReplyKind = "clarification"
	ReplyConfirmed     ReplyKind = "confirmed"
	ReplyAbandoned     ReplyKind = "abandoned"
)

// Reply is the coordinator's answer to one inbound message.
type Reply struct {
	Kind    ReplyKind
	Message string
	State   State

	// Draft is the current best-effort draft, present even on abandonment.
	Draft *validate.Draft
	// History is the full correction history, surfaced on terminal replies.
	History []Correction
}

// Confirmation is handed to the confirm hook when a draft is accepted.
type Confirmation struct {
	ConversationID string
	RequesterID    string
	RawText        string
	Draft          *validate.Draft
	History        []Correction
}
