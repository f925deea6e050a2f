// Package validate turns parser candidates into fully resolved task
// drafts. The parser's output is never trusted as-is: identity fields are
// checked against the roster, temporal fields against the calendar, and
// every fallback the validator takes costs confidence.
package validate

import (
	"fmt"
	"time"

	"github.com/fieldops/remindd/plugin/parser"
	"github.com/fieldops/remindd/server/roster"
	"github.com/fieldops/remindd/server/temporal"
	"github.com/fieldops/remindd/server/timezone"
)

const (
	deductUnresolvedZone = 0.15
	deductDefaultedField = 0.10
	deductUnknownSite    = 0.10
	deductExternalParse  = 0.05
)

// Input is one candidate to validate, with the context it arrived in.
type Input struct {
	Candidate *parser.Candidate
	// RequesterID identifies the message sender; used as the assigner
	// when the message does not name one.
	RequesterID string
	// ReferenceInstant anchors relative defaults (a time without a date).
	ReferenceInstant time.Time
	// Temporal carries the idiom pre-pass result for the same message.
	// When it matched, its instants take precedence over the candidate's
	// date and time strings.
	Temporal *temporal.Result
}

// Validator checks candidates against the roster and resolves them into
// drafts.
type Validator struct {
	roster    *roster.Roster
	threshold float64
}

// NewValidator creates a validator. threshold is the confidence floor
// below which structurally valid drafts still need clarification.
func NewValidator(r *roster.Roster, threshold float64) *Validator {
	return &Validator{roster: r, threshold: threshold}
}

// Threshold returns the configured confidence floor.
func (v *Validator) Threshold() float64 {
	return v.threshold
}

// BelowThreshold reports whether the draft needs clarification for
// confidence alone.
func (v *Validator) BelowThreshold(d *Draft) bool {
	return d.Confidence < v.threshold
}

// Validate resolves the candidate into a draft. The returned violations
// are empty when the draft is structurally sound; the input is never
// mutated, and validating the same input twice yields the same result.
func (v *Validator) Validate(in *Input) (*Draft, []Violation) {
	c := in.Candidate
	var violations []Violation
	deductions := 0.0

	draft := &Draft{
		Task:           c.Task,
		RepeatInterval: c.RepeatInterval,
	}

	if c.Task == "" {
		violations = append(violations, Violation{Field: "task", Reason: "missing task description"})
	}

	if c.Assignee == "" {
		violations = append(violations, Violation{Field: "assignee", Reason: "missing assignee"})
	} else if u, ok := v.roster.Find(c.Assignee); ok {
		draft.Assignee = u
	} else {
		violations = append(violations, Violation{Field: "assignee", Reason: fmt.Sprintf("unknown assignee %q", c.Assignee)})
	}

	assignerName := c.Assigner
	if assignerName == "" {
		assignerName = in.RequesterID
	}
	if u, ok := v.roster.Find(assignerName); ok {
		draft.Assigner = u
	} else if c.Assigner != "" {
		violations = append(violations, Violation{Field: "assigner", Reason: fmt.Sprintf("unknown assigner %q", c.Assigner)})
	}

	loc, provenance, zoneDeduct := v.resolveZone(c.TimezoneContext, draft)
	deductions += zoneDeduct
	draft.ZoneName = loc.String()
	draft.Provenance = provenance

	tempDeduct := v.resolveInstants(in, draft, loc, &violations)
	deductions += tempDeduct

	if !RepeatIntervals[c.RepeatInterval] {
		violations = append(violations, Violation{Field: "repeat_interval", Reason: fmt.Sprintf("unsupported repeat interval %q", c.RepeatInterval)})
	}

	if c.Site != "" {
		if canonical, ok := v.roster.FindSite(c.Site); ok {
			draft.Site = canonical
		} else {
			draft.Site = c.Site
			deductions += deductUnknownSite
		}
	}

	// Zero means the parser reported nothing, not zero trust. Confidence
	// starts at full and only drops for fallbacks we actually took.
	base := 1.0
	if c.Confidence > 0 {
		base = clamp(c.Confidence)
	}
	draft.Confidence = clamp(base - deductions)
	return draft, violations
}

// resolveZone picks the timezone the candidate's times are stated in.
// Order: explicit reference from the message, then the assigner's
// configured zone, then the assignee's.
func (v *Validator) resolveZone(reference string, draft *Draft) (*time.Location, temporal.Provenance, float64) {
	deduct := 0.0

	if res, ok := timezone.Resolve(reference); ok {
		return res.Location, temporal.ProvenanceExplicit, 0
	}
	if reference != "" && reference != "assigner_local" {
		// The message named a zone nobody recognizes. Fall back, but the
		// draft is less trustworthy for it.
		deduct = deductUnresolvedZone
	}

	if draft.Assigner != nil {
		return draft.Assigner.Location(), temporal.ProvenanceInferredAssigner, deduct
	}
	if draft.Assignee != nil {
		return draft.Assignee.Location(), temporal.ProvenanceInferredAssignee, deduct
	}
	return time.UTC, temporal.ProvenanceInferredAssigner, deduct
}

// resolveInstants fills Due and Reminder, preferring the idiom pre-pass
// over the candidate's date and time strings.
func (v *Validator) resolveInstants(in *Input, draft *Draft, loc *time.Location, violations *[]Violation) float64 {
	if tr := in.Temporal; tr != nil && tr.Matched {
		draft.Due = tr.Due.UTC
		draft.Reminder = tr.Reminder.UTC
		draft.ZoneName = tr.Due.Zone.String()
		draft.Provenance = tr.Due.Provenance
		return 0
	}

	c := in.Candidate
	ref := in.ReferenceInstant.In(loc)

	if c.DueDate == "" && c.DueTime == "" && c.ReminderDate == "" && c.ReminderTime == "" {
		*violations = append(*violations, Violation{Field: "due_date", Reason: "no due or reminder time stated"})
		return 0
	}

	// The idiom pre-pass could not resolve this phrase, so the instants
	// below rest on the generative parse alone.
	deductions := deductExternalParse

	due, dueDeduct, ok := v.buildInstant(c.DueDate, c.DueTime, "", ref, loc, "due", violations)
	if ok {
		draft.Due = due.UTC()
		deductions += dueDeduct
	}

	switch {
	case c.ReminderDate == "" && c.ReminderTime == "":
		// Reminder defaults to the due instant.
		draft.Reminder = draft.Due
	default:
		inheritDate := c.DueDate
		if inheritDate == "" && ok {
			inheritDate = due.Format("2006-01-02")
		}
		reminder, remDeduct, remOK := v.buildInstant(c.ReminderDate, c.ReminderTime, inheritDate, ref, loc, "reminder", violations)
		if remOK {
			draft.Reminder = reminder.UTC()
			deductions += remDeduct
		}
	}

	if draft.Due.IsZero() && !draft.Reminder.IsZero() {
		// Reminder-only messages: the reminder is the obligation.
		draft.Due = draft.Reminder
	}
	if !draft.Due.IsZero() && !draft.Reminder.IsZero() && draft.Reminder.After(draft.Due) {
		*violations = append(*violations, Violation{Field: "reminder_time", Reason: "reminder is after the due time"})
	}

	return deductions
}

// buildInstant combines a date and time string into an instant in loc.
// A time without a date falls back to inheritDate, then the reference
// date, rolling forward a day when the result is already past.
func (v *Validator) buildInstant(dateStr, timeStr, inheritDate string, ref time.Time, loc *time.Location, field string, violations *[]Violation) (time.Time, float64, bool) {
	if dateStr == "" && timeStr == "" {
		return time.Time{}, 0, false
	}
	deduct := 0.0

	hour, minute := 9, 0
	hasTime := timeStr != ""
	if hasTime {
		t, err := time.Parse("15:04", timeStr)
		if err != nil {
			*violations = append(*violations, Violation{Field: field + "_time", Reason: fmt.Sprintf("invalid time %q, expected 24-hour HH:MM", timeStr)})
			return time.Time{}, 0, false
		}
		hour, minute = t.Hour(), t.Minute()
	}

	var year int
	var month time.Month
	var day int
	switch {
	case dateStr != "":
		d, err := time.ParseInLocation("2006-01-02", dateStr, loc)
		if err != nil {
			*violations = append(*violations, Violation{Field: field + "_date", Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", dateStr)})
			return time.Time{}, 0, false
		}
		year, month, day = d.Date()
	case inheritDate != "":
		d, err := time.ParseInLocation("2006-01-02", inheritDate, loc)
		if err != nil {
			return time.Time{}, 0, false
		}
		year, month, day = d.Date()
		deduct += deductDefaultedField
	default:
		year, month, day = ref.Date()
		deduct += deductDefaultedField
	}

	instant := time.Date(year, month, day, hour, minute, 0, 0, loc)

	if dateStr == "" && inheritDate == "" && instant.Before(ref) {
		// Bare time already past today means tomorrow.
		instant = instant.AddDate(0, 0, 1)
	}
	if dateStr != "" && instant.Before(ref.Add(-time.Minute)) {
		*violations = append(*violations, Violation{Field: field + "_date", Reason: fmt.Sprintf("%s is in the past", field)})
	}

	if !hasTime {
		// Date without time defaults to 09:00. A guessed hour costs
		// confidence.
		deduct += deductDefaultedField
	}

	return instant, deduct, true
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
