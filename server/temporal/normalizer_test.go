package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/remindd/server/timezone"
)

var chicago = timezone.MustParseTimezone("America/Chicago")

func TestNormalize_EndOfHour(t *testing.T) {
	n := NewNormalizer()
	// 18:18 local: end of hour is 18:59, not a generic day-end value.
	ref := time.Date(2025, 7, 9, 18, 18, 0, 0, chicago)

	res := n.Normalize("end of the hour", ref, chicago)
	require.True(t, res.Matched)
	assert.Equal(t, "2025-07-09 18:59", res.Due.In().Format("2006-01-02 15:04"))
	assert.Equal(t, RuleEndOfHour, res.Due.Rule)
}

func TestNormalize_EndOfHourAlreadyPast(t *testing.T) {
	n := NewNormalizer()
	ref := time.Date(2025, 7, 9, 18, 59, 0, 0, chicago)

	res := n.Normalize("end of the hour", ref, chicago)
	require.True(t, res.Matched)
	assert.Equal(t, "19:59", res.Due.In().Format("15:04"))
}

func TestNormalize_TopOfHour(t *testing.T) {
	n := NewNormalizer()
	ref := time.Date(2025, 7, 9, 18, 18, 0, 0, chicago)

	res := n.Normalize("top of the hour", ref, chicago)
	require.True(t, res.Matched)
	assert.Equal(t, "19:00", res.Due.In().Format("15:04"))
}

func TestNormalize_EndOfDay(t *testing.T) {
	n := NewNormalizer()
	ref := time.Date(2025, 7, 9, 8, 0, 0, 0, chicago)

	for _, phrase := range []string{"end of day", "end of the day", "end of tonight"} {
		res := n.Normalize(phrase, ref, chicago)
		require.True(t, res.Matched, phrase)
		assert.Equal(t, "2025-07-09 23:59", res.Due.In().Format("2006-01-02 15:04"), phrase)
	}
}

func TestNormalize_TomorrowAtEight(t *testing.T) {
	n := NewNormalizer()
	// Reference 2025-07-09T12:00 in a UTC-5 zone (central daylight time).
	ref := time.Date(2025, 7, 9, 12, 0, 0, 0, chicago)

	res := n.Normalize("tomorrow at 8am", ref, chicago)
	require.True(t, res.Matched)
	assert.Equal(t, "2025-07-10 08:00", res.Due.In().Format("2006-01-02 15:04"))
	// Stored value is UTC-normalized: 08:00-05:00 == 13:00Z.
	assert.Equal(t, "2025-07-10T13:00:00Z", res.Due.UTC.Format(time.RFC3339))
	assert.Equal(t, ProvenanceInferredAssigner, res.Due.Provenance)
}

func TestNormalize_ExplicitZoneToken(t *testing.T) {
	n := NewNormalizer()
	// Assigner sits in Pacific, but the phrase pins central time.
	pacific := timezone.MustParseTimezone("America/Los_Angeles")
	ref := time.Date(2025, 7, 9, 9, 0, 0, 0, pacific)

	res := n.Normalize("at 4pm CST", ref, pacific)
	require.True(t, res.Matched)
	assert.Equal(t, ProvenanceExplicit, res.Due.Provenance)
	assert.Equal(t, "America/Chicago", res.Due.Zone.String())
	assert.Equal(t, "2025-07-09 16:00", res.Due.In().Format("2006-01-02 15:04"))
}

func TestNormalize_CityTime(t *testing.T) {
	n := NewNormalizer()
	ref := time.Date(2025, 7, 9, 9, 0, 0, 0, chicago)

	res := n.Normalize("at 16:30 Houston time", ref, chicago)
	require.True(t, res.Matched)
	assert.Equal(t, ProvenanceExplicit, res.Due.Provenance)
	assert.Equal(t, "16:30", res.Due.In().Format("15:04"))
}

func TestNormalize_OffsetBefore(t *testing.T) {
	n := NewNormalizer()
	ref := time.Date(2025, 7, 9, 9, 0, 0, 0, chicago)

	res := n.Normalize("30 minutes before 4pm", ref, chicago)
	require.True(t, res.Matched)
	assert.Equal(t, "16:00", res.Due.In().Format("15:04"))
	assert.Equal(t, "15:30", res.Reminder.In().Format("15:04"))
	assert.Equal(t, RuleOffset, res.Reminder.Rule)
}

func TestNormalize_OffsetWithoutBase(t *testing.T) {
	n := NewNormalizer()
	ref := time.Date(2025, 7, 9, 9, 0, 0, 0, chicago)

	// No resolvable base instant: not a closed form, defer to the parser.
	res := n.Normalize("30 minutes before the meeting", ref, chicago)
	assert.False(t, res.Matched)
}

func TestNormalize_NamedPeriods(t *testing.T) {
	n := NewNormalizer()
	ref := time.Date(2025, 7, 9, 6, 0, 0, 0, chicago)

	tests := []struct {
		phrase   string
		wantTime string
	}{
		{"tomorrow morning", "2025-07-10 09:00"},
		{"in the afternoon", "2025-07-09 14:00"},
		{"this evening", "2025-07-09 18:00"},
		{"tonight", "2025-07-09 21:00"},
	}

	for _, tt := range tests {
		res := n.Normalize(tt.phrase, ref, chicago)
		require.True(t, res.Matched, tt.phrase)
		assert.Equal(t, tt.wantTime, res.Due.In().Format("2006-01-02 15:04"), tt.phrase)
	}
}

func TestNormalize_PeriodOverrides(t *testing.T) {
	n := NewNormalizer().WithPeriods(PeriodTimes{Morning: 7, Afternoon: 13, Evening: 17, Night: 22})
	ref := time.Date(2025, 7, 9, 5, 0, 0, 0, chicago)

	res := n.Normalize("morning", ref, chicago)
	require.True(t, res.Matched)
	assert.Equal(t, "07:00", res.Due.In().Format("15:04"))
}

func TestNormalize_PastTimeRollsForward(t *testing.T) {
	n := NewNormalizer()
	ref := time.Date(2025, 7, 9, 18, 0, 0, 0, chicago)

	// 8am has passed today and no date word was given.
	res := n.Normalize("at 8am", ref, chicago)
	require.True(t, res.Matched)
	assert.Equal(t, "2025-07-10 08:00", res.Due.In().Format("2006-01-02 15:04"))
}

func TestNormalize_Weekend(t *testing.T) {
	n := NewNormalizer()
	// Wednesday.
	ref := time.Date(2025, 7, 9, 10, 0, 0, 0, chicago)

	res := n.Normalize("this weekend", ref, chicago)
	require.True(t, res.Matched)
	assert.Equal(t, "2025-07-12 09:00", res.Due.In().Format("2006-01-02 15:04"))
	assert.Equal(t, time.Saturday, res.Due.In().Weekday())
}

func TestNormalize_SaturdayAfternoonWeekendIsSunday(t *testing.T) {
	n := NewNormalizer()
	// Saturday 14:00.
	ref := time.Date(2025, 7, 12, 14, 0, 0, 0, chicago)

	res := n.Normalize("weekend", ref, chicago)
	require.True(t, res.Matched)
	assert.Equal(t, "2025-07-13", res.Due.In().Format("2006-01-02"))
}

func TestNormalize_Deterministic(t *testing.T) {
	n := NewNormalizer()
	ref := time.Date(2025, 7, 9, 18, 18, 0, 0, chicago)

	first := n.Normalize("end of the hour", ref, chicago)
	second := n.Normalize("end of the hour", ref, chicago)
	require.True(t, first.Matched)
	require.True(t, second.Matched)
	assert.Equal(t, first.Due.UTC, second.Due.UTC)
	assert.Equal(t, first.Due.Rule, second.Due.Rule)
}

func TestNormalize_UnrecognizedDefersToParser(t *testing.T) {
	n := NewNormalizer()
	ref := time.Date(2025, 7, 9, 10, 0, 0, 0, chicago)

	for _, phrase := range []string{
		"when the shipment arrives",
		"check the oil",
		"at 4", // ambiguous bare hour
		"next time he is on site",
	} {
		res := n.Normalize(phrase, ref, chicago)
		assert.False(t, res.Matched, phrase)
	}
}

func TestNormalize_ReminderDefaultsToDue(t *testing.T) {
	n := NewNormalizer()
	ref := time.Date(2025, 7, 9, 10, 0, 0, 0, chicago)

	res := n.Normalize("at 4pm", ref, chicago)
	require.True(t, res.Matched)
	require.NotNil(t, res.Reminder)
	assert.Equal(t, res.Due.UTC, res.Reminder.UTC)
}
