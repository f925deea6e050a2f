package validate

import (
	"time"

	"github.com/fieldops/remindd/server/roster"
	"github.com/fieldops/remindd/server/temporal"
)

// RepeatIntervals is the closed set of accepted repeat values. Anything
// else from the parser is a violation, never passed through.
var RepeatIntervals = map[string]bool{
	"":         true,
	"daily":    true,
	"weekdays": true,
	"weekly":   true,
	"biweekly": true,
	"monthly":  true,
}

// Violation is one structural problem with a parse candidate. Field names
// follow the candidate's JSON field names so clarification prompts can
// point at the exact field.
type Violation struct {
	Field  string
	Reason string
}

// Draft is a validated, fully resolved task awaiting confirmation. All
// instants are UTC; Zone records what the wording resolved against.
type Draft struct {
	Task     string
	Assignee *roster.User
	Assigner *roster.User

	Due        time.Time
	Reminder   time.Time
	ZoneName   string
	Provenance temporal.Provenance

	RepeatInterval string
	Site           string

	// Confidence aggregates the parser's self-reported certainty with
	// deductions for every fallback the validator had to take.
	Confidence float64
}
