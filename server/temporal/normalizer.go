// Package temporal deterministically resolves closed-form temporal idioms
// ("end of the hour", "tomorrow at 8am CST") against a reference instant
// and zone, ahead of any call to the external structured parser.
//
// The external parser handles these phrase classes inconsistently: common
// idioms parse correctly while rare ones do not. Anything this package
// recognizes is therefore resolved here, by rule, before the parser ever
// sees the text. Phrases it does not recognize are handed over untouched;
// it never guesses at free-form language.
package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/remindd/server/timezone"
)

// Pre-compiled patterns for the recognized idiom classes.
var (
	endOfHourPattern = regexp.MustCompile(`(?i)\bend of (?:the )?hour\b`)
	topOfHourPattern = regexp.MustCompile(`(?i)\btop of (?:the )?hour\b`)
	endOfDayPattern  = regexp.MustCompile(`(?i)\bend of (?:the )?(?:day|tonight)\b`)
	weekendPattern   = regexp.MustCompile(`(?i)\b(?:this )?weekend\b`)

	dateWordPattern = regexp.MustCompile(`(?i)\b(today|tomorrow)\b`)
	periodPattern   = regexp.MustCompile(`(?i)\b(morning|afternoon|evening|night|tonight)\b`)

	// Clock time forms, most explicit first.
	atClockPattern      = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	colonPattern        = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(am|pm)?\b`)
	bareMeridiemPattern = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\b`)

	offsetPattern = regexp.MustCompile(`(?i)\b(\d+)\s*(minutes?|mins?|hours?|hrs?)\s+before\b`)
)

// Normalizer resolves closed-form idioms. Stateless and safe for
// unbounded concurrent use.
type Normalizer struct {
	periods PeriodTimes
}

// NewNormalizer creates a normalizer with the default period hours.
func NewNormalizer() *Normalizer {
	return &Normalizer{periods: DefaultPeriodTimes()}
}

// WithPeriods returns a normalizer using the given period hours, for
// recipients with configured overrides.
func (n *Normalizer) WithPeriods(p PeriodTimes) *Normalizer {
	return &Normalizer{periods: p}
}

// Normalize resolves the phrase against the reference instant and zone.
// A result with Matched=false means the phrase is not a closed-form idiom
// and must be deferred to the external parser.
func (n *Normalizer) Normalize(phrase string, ref time.Time, refZone *time.Location) Result {
	if refZone == nil {
		refZone = time.UTC
	}

	// An explicit zone token overrides the reference zone for the whole
	// phrase and marks the resolution as explicit.
	zone := refZone
	provenance := ProvenanceInferredAssigner
	zoneTag := ""
	if res, matched, ok := timezone.FindInText(phrase); ok {
		zone = res.Location
		provenance = ProvenanceExplicit
		zoneTag = matched
		phrase = strings.TrimSpace(strings.Replace(phrase, matched, "", 1))
	}

	local := ref.In(zone)

	// An offset expression rides on top of whatever base the rest of the
	// phrase resolves to, so extract it before the base patterns run.
	var offset time.Duration
	hasOffset := false
	if m := offsetPattern.FindStringSubmatch(phrase); m != nil {
		value, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(strings.ToLower(m[2]), "h") {
			offset = time.Duration(value) * time.Hour
		} else {
			offset = time.Duration(value) * time.Minute
		}
		hasOffset = true
		phrase = strings.TrimSpace(strings.Replace(phrase, m[0], "", 1))
	}

	base, rule, cleaned, ok := n.resolveBase(phrase, local, zone)
	if !ok {
		return Result{}
	}

	due := ResolvedInstant{
		UTC:        base.UTC(),
		Zone:       zone,
		Provenance: provenance,
		Rule:       rule,
	}
	reminder := due
	if hasOffset {
		reminder = ResolvedInstant{
			UTC:        base.Add(-offset).UTC(),
			Zone:       zone,
			Provenance: provenance,
			Rule:       RuleOffset,
		}
	}

	return Result{
		Matched:   true,
		Due:       &due,
		Reminder:  &reminder,
		Reference: TemporalReference{Phrase: phrase, Rule: rule, ZoneTag: zoneTag},
		Cleaned:   cleaned,
	}
}

// resolveBase resolves the phrase to a single local instant.
func (n *Normalizer) resolveBase(phrase string, local time.Time, zone *time.Location) (time.Time, Rule, string, bool) {
	// Fixed idioms first: they are complete resolutions on their own.
	if m := endOfHourPattern.FindString(phrase); m != "" {
		t := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 59, 0, 0, zone)
		if !t.After(local) {
			t = t.Add(time.Hour)
		}
		return t, RuleEndOfHour, strip(phrase, m), true
	}
	if m := topOfHourPattern.FindString(phrase); m != "" {
		t := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, zone)
		for !t.After(local) {
			t = t.Add(time.Hour)
		}
		return t, RuleTopOfHour, strip(phrase, m), true
	}
	if m := endOfDayPattern.FindString(phrase); m != "" {
		return timezone.EndOfDay(local, zone), RuleEndOfDay, strip(phrase, m), true
	}
	if m := weekendPattern.FindString(phrase); m != "" {
		return nextWeekendMorning(local, zone), RuleWeekend, strip(phrase, m), true
	}

	// Composable pieces: optional date word plus a clock time or period.
	dayOffset := 0
	explicitDate := false
	cleaned := phrase
	if m := dateWordPattern.FindStringSubmatch(phrase); m != nil {
		if strings.EqualFold(m[1], "tomorrow") {
			dayOffset = 1
		}
		explicitDate = true
		cleaned = strip(cleaned, m[0])
	}

	if hour, minute, matched, ok := findClockTime(cleaned); ok {
		t := time.Date(local.Year(), local.Month(), local.Day()+dayOffset, hour, minute, 0, 0, zone)
		// Prefer the future when the phrase named no date and the time has
		// already passed today.
		if !explicitDate && !t.After(local) {
			t = t.AddDate(0, 0, 1)
		}
		return t, RuleClockTime, strip(cleaned, matched), true
	}

	if m := periodPattern.FindStringSubmatch(cleaned); m != nil {
		hour := n.periodHour(m[1])
		t := time.Date(local.Year(), local.Month(), local.Day()+dayOffset, hour, 0, 0, 0, zone)
		if !explicitDate && !t.After(local) {
			t = t.AddDate(0, 0, 1)
		}
		return t, RuleNamedPeriod, strip(cleaned, m[0]), true
	}

	// A bare date word still resolves: morning of that day.
	if explicitDate {
		t := time.Date(local.Year(), local.Month(), local.Day()+dayOffset, n.periods.Morning, 0, 0, 0, zone)
		return t, RuleNamedPeriod, cleaned, true
	}

	return time.Time{}, "", "", false
}

// findClockTime extracts an unambiguous clock time from the phrase.
// Bare hours 1-12 with no meridiem and no minutes are ambiguous and are
// left for the external parser.
func findClockTime(phrase string) (hour, minute int, matched string, ok bool) {
	for _, pattern := range []*regexp.Regexp{atClockPattern, colonPattern, bareMeridiemPattern} {
		m := pattern.FindStringSubmatch(phrase)
		if m == nil {
			continue
		}

		h, _ := strconv.Atoi(m[1])
		min := 0
		meridiem := ""
		switch pattern {
		case atClockPattern, colonPattern:
			if m[2] != "" {
				min, _ = strconv.Atoi(m[2])
			}
			meridiem = strings.ToLower(m[3])
		case bareMeridiemPattern:
			meridiem = strings.ToLower(m[2])
		}

		if h > 23 || min > 59 {
			continue
		}
		switch meridiem {
		case "pm":
			if h < 12 {
				h += 12
			}
		case "am":
			if h == 12 {
				h = 0
			}
		default:
			// No meridiem: only a 24-hour styled value is unambiguous.
			if h <= 12 && pattern != colonPattern {
				continue
			}
			if h <= 12 && pattern == colonPattern && h != 0 {
				// "4:30" could be either; defer.
				continue
			}
		}

		return h, min, m[0], true
	}
	return 0, 0, "", false
}

// nextWeekendMorning resolves "this weekend": the coming Saturday at 09:00,
// or Sunday when it is already Saturday afternoon.
func nextWeekendMorning(local time.Time, zone *time.Location) time.Time {
	daysUntilSaturday := (int(time.Saturday) - int(local.Weekday()) + 7) % 7
	target := local.AddDate(0, 0, daysUntilSaturday)
	if daysUntilSaturday == 0 && local.Hour() >= 12 {
		target = target.AddDate(0, 0, 1)
	}
	return time.Date(target.Year(), target.Month(), target.Day(), 9, 0, 0, 0, zone)
}

func (n *Normalizer) periodHour(period string) int {
	switch strings.ToLower(period) {
	case "morning":
		return n.periods.Morning
	case "afternoon":
		return n.periods.Afternoon
	case "evening":
		return n.periods.Evening
	case "night", "tonight":
		return n.periods.Night
	default:
		return n.periods.Morning
	}
}

func strip(phrase, fragment string) string {
	cleaned := strings.Replace(phrase, fragment, "", 1)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return strings.TrimSpace(cleaned)
}
