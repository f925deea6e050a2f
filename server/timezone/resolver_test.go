package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Abbreviations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantZone string
	}{
		{"CST", "CST", "America/Chicago"},
		{"cdt lowercase", "cdt", "America/Chicago"},
		{"PST", "PST", "America/Los_Angeles"},
		{"EST with filler", "EST time", "America/New_York"},
		{"MDT", "MDT", "America/Denver"},
		{"UTC", "UTC", "UTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := Resolve(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.wantZone, res.Name)
			assert.Equal(t, MatchAbbreviation, res.Kind)
		})
	}
}

func TestResolve_CitiesAndRegions(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantZone string
		wantKind MatchKind
	}{
		{"Houston time", "Houston time", "America/Chicago", MatchCity},
		{"city beats region wording", "Chicago", "America/Chicago", MatchCity},
		{"Central", "Central", "America/Chicago", MatchRegion},
		{"Central Standard Time", "Central Standard Time", "America/Chicago", MatchRegion},
		{"Pacific", "pacific time", "America/Los_Angeles", MatchRegion},
		{"NYC", "nyc", "America/New_York", MatchCity},
		{"Phoenix no DST", "phoenix", "America/Phoenix", MatchCity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := Resolve(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.wantZone, res.Name)
			assert.Equal(t, tt.wantKind, res.Kind)
		})
	}
}

func TestResolve_IANAName(t *testing.T) {
	res, ok := Resolve("America/Chicago")
	require.True(t, ok)
	assert.Equal(t, "America/Chicago", res.Name)
	assert.Equal(t, MatchIANA, res.Kind)
}

func TestResolve_Unresolved(t *testing.T) {
	for _, input := range []string{"", "assigner_local", "the moon", "zulu squad"} {
		_, ok := Resolve(input)
		assert.False(t, ok, "expected %q to be unresolved", input)
	}
}

// Resolving an abbreviation must reproduce the expected local offset on
// dates both inside and outside daylight saving.
func TestResolve_DSTRoundTrip(t *testing.T) {
	res, ok := Resolve("CST")
	require.True(t, ok)

	// July 9: central daylight time, UTC-5.
	summer := time.Date(2025, 7, 9, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, 13, summer.In(res.Location).Hour())

	// January 9: central standard time, UTC-6.
	winter := time.Date(2025, 1, 9, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, 12, winter.In(res.Location).Hour())
}

func TestEndOfDay(t *testing.T) {
	loc := MustParseTimezone("America/Chicago")
	ref := time.Date(2025, 7, 9, 12, 30, 0, 0, loc)

	end := EndOfDay(ref, loc)
	assert.Equal(t, "2025-07-09 23:59", end.Format("2006-01-02 15:04"))
}
