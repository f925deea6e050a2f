package temporal

import (
	"time"
)

// Provenance records why a resolved instant carries the zone it does.
type Provenance string

const (
	// ProvenanceExplicit means the phrase carried an explicit zone token.
	ProvenanceExplicit Provenance = "explicit"
	// ProvenanceInferredAssigner means the assigner's configured zone was
	// assumed because the phrase named none.
	ProvenanceInferredAssigner Provenance = "inferred-assigner"
	// ProvenanceInferredAssignee means the assignee's configured zone was
	// assumed (used when converting for display or cross-user scheduling).
	ProvenanceInferredAssignee Provenance = "inferred-assignee"
	// ProvenanceClarified means the instant came out of a clarification
	// round rather than the original parse.
	ProvenanceClarified Provenance = "clarified"
)

// Rule identifies which closed-form resolution rule produced an instant.
// Identical (phrase, reference, zone) inputs always fire the same rule.
type Rule string

const (
	RuleEndOfHour   Rule = "end-of-hour"
	RuleTopOfHour   Rule = "top-of-hour"
	RuleEndOfDay    Rule = "end-of-day"
	RuleWeekend     Rule = "weekend"
	RuleNamedPeriod Rule = "named-period"
	RuleClockTime   Rule = "clock-time"
	RuleOffset      Rule = "offset-before"
)

// TemporalReference is a recognized temporal phrase prior to resolution.
// Immutable once created.
type TemporalReference struct {
	Phrase string
	Rule   Rule
	// ZoneTag is the explicit zone token found in the phrase, if any.
	ZoneTag string
}

// ResolvedInstant is an absolute UTC timestamp plus the zone it was
// interpreted in. Every instant stored anywhere in the system is the UTC
// field of one of these; zone and provenance are carried for display and
// auditing only.
type ResolvedInstant struct {
	UTC        time.Time
	Zone       *time.Location
	Provenance Provenance
	Rule       Rule
}

// In returns the instant in its interpretation zone for display.
func (r ResolvedInstant) In() time.Time {
	if r.Zone == nil {
		return r.UTC
	}
	return r.UTC.In(r.Zone)
}

// WithProvenance returns a copy tagged with the given provenance.
func (r ResolvedInstant) WithProvenance(p Provenance) ResolvedInstant {
	r.Provenance = p
	return r
}

// PeriodTimes maps named day periods to their default clock hours.
// Overridable per recipient through roster configuration.
type PeriodTimes struct {
	Morning   int
	Afternoon int
	Evening   int
	Night     int
}

// DefaultPeriodTimes returns the stock period hours.
func DefaultPeriodTimes() PeriodTimes {
	return PeriodTimes{Morning: 9, Afternoon: 14, Evening: 18, Night: 21}
}

// Result is the outcome of normalizing a phrase. When Matched is false the
// phrase is not a closed-form idiom and must go to the external parser;
// nothing else in the result is meaningful.
type Result struct {
	Matched bool
	// Due is the resolved due instant.
	Due *ResolvedInstant
	// Reminder is the resolved reminder instant. Defaults to Due when the
	// phrase stated only one of the two.
	Reminder *ResolvedInstant
	// Reference is the recognized phrase fragment and rule.
	Reference TemporalReference
	// Cleaned is the phrase with the temporal tokens removed, suitable for
	// use as the task text hint.
	Cleaned string
}
