// Package rrule provides RRULE (Recurrence Rule) parsing and generation
// for the subset of iCalendar RFC 5545 the repeat vocabulary needs.
package rrule

import (
	"fmt"
	"strings"
	"time"
)

// Frequency represents the recurrence frequency.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
)

// Weekday represents the day of week for recurrence.
type Weekday string

const (
	Sunday    Weekday = "SU"
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
)

var weekdayOf = map[time.Weekday]Weekday{
	time.Sunday:    Sunday,
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
}

// Rule represents a parsed recurrence rule.
type Rule struct {
	Frequency Frequency // FREQ
	Interval  int       // INTERVAL (default 1)
	Count     int       // COUNT (number of occurrences)
	Until     time.Time // UNTIL (end date)
	ByDay     []Weekday // BYDAY
}

// FromRepeatInterval lowers a repeat vocabulary word to a rule. Returns
// false for the empty string and anything outside the vocabulary.
func FromRepeatInterval(repeat string) (*Rule, bool) {
	switch repeat {
	case "daily":
		return &Rule{Frequency: Daily, Interval: 1}, true
	case "weekdays":
		return &Rule{
			Frequency: Weekly,
			Interval:  1,
			ByDay:     []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday},
		}, true
	case "weekly":
		return &Rule{Frequency: Weekly, Interval: 1}, true
	case "biweekly":
		return &Rule{Frequency: Weekly, Interval: 2}, true
	case "monthly":
		return &Rule{Frequency: Monthly, Interval: 1}, true
	}
	return nil, false
}

// Parse parses an RRULE string into a Rule struct.
// Example: "FREQ=WEEKLY;BYDAY=MO,WE,FR;COUNT=10"
func Parse(rrule string) (*Rule, error) {
	rule := &Rule{
		Interval: 1,
	}

	for _, part := range strings.Split(rrule, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])

		switch key {
		case "FREQ":
			rule.Frequency = Frequency(value)
		case "INTERVAL":
			fmt.Sscanf(value, "%d", &rule.Interval)
		case "COUNT":
			fmt.Sscanf(value, "%d", &rule.Count)
		case "UNTIL":
			// RFC 5545 date-time format: YYYYMMDDTHHmmssZ
			if t, err := time.Parse("20060102T150405Z", value); err == nil {
				rule.Until = t
			}
		case "BYDAY":
			rule.ByDay = parseByDay(value)
		}
	}

	switch rule.Frequency {
	case Daily, Weekly, Monthly:
	case "":
		return nil, fmt.Errorf("missing required FREQ in RRULE")
	default:
		return nil, fmt.Errorf("unsupported FREQ %q in RRULE", rule.Frequency)
	}
	if rule.Interval < 1 {
		rule.Interval = 1
	}

	return rule, nil
}

func parseByDay(value string) []Weekday {
	parts := strings.Split(value, ",")
	days := make([]Weekday, 0, len(parts))
	for _, part := range parts {
		day := Weekday(strings.TrimSpace(part))
		if day != "" {
			days = append(days, day)
		}
	}
	return days
}

// String returns the RRULE string representation.
func (r *Rule) String() string {
	parts := []string{fmt.Sprintf("FREQ=%s", r.Frequency)}

	if r.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
	}
	if r.Count > 0 {
		parts = append(parts, fmt.Sprintf("COUNT=%d", r.Count))
	}
	if !r.Until.IsZero() {
		parts = append(parts, fmt.Sprintf("UNTIL=%s", r.Until.Format("20060102T150405Z")))
	}
	if len(r.ByDay) > 0 {
		dayStrs := make([]string, len(r.ByDay))
		for i, day := range r.ByDay {
			dayStrs[i] = string(day)
		}
		parts = append(parts, fmt.Sprintf("BYDAY=%s", strings.Join(dayStrs, ",")))
	}

	return strings.Join(parts, ";")
}

func (r *Rule) matchesDay(t time.Time) bool {
	if len(r.ByDay) == 0 {
		return true
	}
	want := weekdayOf[t.Weekday()]
	for _, d := range r.ByDay {
		if d == want {
			return true
		}
	}
	return false
}

// Next returns the first occurrence strictly after current, preserving
// the clock time of the start. A zero time means the rule has ended.
func (r *Rule) Next(current time.Time) time.Time {
	var next time.Time

	switch r.Frequency {
	case Daily:
		next = current.AddDate(0, 0, r.Interval)
	case Weekly:
		if len(r.ByDay) > 0 {
			// Walk forward a day at a time until a listed weekday comes
			// up. The repeat vocabulary never combines BYDAY with an
			// interval above one.
			next = current.AddDate(0, 0, 1)
			for !r.matchesDay(next) {
				next = next.AddDate(0, 0, 1)
			}
		} else {
			next = current.AddDate(0, 0, 7*r.Interval)
		}
	case Monthly:
		// Clamp to the last day of shorter months.
		year, month, day := current.Date()
		hour, minute, sec := current.Clock()
		first := time.Date(year, month+time.Month(r.Interval), 1, hour, minute, sec, 0, current.Location())
		if maxDay := daysInMonth(first.Year(), first.Month()); day > maxDay {
			day = maxDay
		}
		next = time.Date(first.Year(), first.Month(), day, hour, minute, sec, 0, current.Location())
	default:
		return time.Time{}
	}

	if !r.Until.IsZero() && next.After(r.Until) {
		return time.Time{}
	}
	return next
}

// Occurrences generates occurrences starting at start, up to the limit.
// COUNT and UNTIL in the rule cap the result below the limit.
func (r *Rule) Occurrences(start time.Time, limit int) []time.Time {
	if r.Count > 0 && r.Count < limit {
		limit = r.Count
	}

	var out []time.Time
	current := start
	for len(out) < limit {
		if !r.Until.IsZero() && current.After(r.Until) {
			break
		}
		if !r.matchesDay(current) {
			// A start that misses BYDAY slides to the next matching day.
			current = r.Next(current)
			if current.IsZero() {
				break
			}
			continue
		}
		out = append(out, current)
		current = r.Next(current)
		if current.IsZero() {
			break
		}
	}
	return out
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
