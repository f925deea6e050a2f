// Package timezone resolves free-text timezone references (abbreviations,
// city names, region words, IANA identifiers) to canonical zones, and
// provides the conversion helpers used across the reminder pipeline.
//
// Resolution is a lookup against static tables, never a network call, and
// an unmatched reference is a normal result rather than an error: callers
// fall back to the assigner's configured zone.
package timezone

import (
	"regexp"
	"strings"
	"time"
)

// abbreviationPattern matches a US timezone abbreviation token in free text.
var abbreviationPattern = regexp.MustCompile(`(?i)\b(CST|CDT|PST|PDT|EST|EDT|MST|MDT|UTC|GMT)\b`)

// MatchKind records how a reference was resolved, most specific first.
type MatchKind int

const (
	// MatchIANA means the reference was already a valid IANA identifier.
	MatchIANA MatchKind = iota
	// MatchAbbreviation means a US timezone abbreviation matched.
	MatchAbbreviation
	// MatchCity means a known city name matched.
	MatchCity
	// MatchRegion means a generic region word ("central") matched.
	MatchRegion
)

// Resolution is a successfully resolved timezone reference.
type Resolution struct {
	Name     string // canonical IANA name
	Location *time.Location
	Kind     MatchKind
}

// abbreviations maps US timezone abbreviations to IANA zones. Standard and
// daylight variants collapse to the same zone; the zone database supplies
// the correct offset for any given instant.
var abbreviations = map[string]string{
	"cst": "America/Chicago",
	"cdt": "America/Chicago",
	"pst": "America/Los_Angeles",
	"pdt": "America/Los_Angeles",
	"est": "America/New_York",
	"edt": "America/New_York",
	"mst": "America/Denver",
	"mdt": "America/Denver",
	"utc": "UTC",
	"gmt": "UTC",
}

// cities maps city names to IANA zones.
var cities = map[string]string{
	"houston":       "America/Chicago",
	"chicago":       "America/Chicago",
	"dallas":        "America/Chicago",
	"austin":        "America/Chicago",
	"la":            "America/Los_Angeles",
	"los angeles":   "America/Los_Angeles",
	"san francisco": "America/Los_Angeles",
	"seattle":       "America/Los_Angeles",
	"new york":      "America/New_York",
	"nyc":           "America/New_York",
	"boston":        "America/New_York",
	"miami":         "America/New_York",
	"denver":        "America/Denver",
	"phoenix":       "America/Phoenix",
}

// regions maps generic region words to IANA zones. Checked after cities
// so that an explicit city always wins over a region word.
var regions = map[string]string{
	"central":  "America/Chicago",
	"pacific":  "America/Los_Angeles",
	"eastern":  "America/New_York",
	"mountain": "America/Denver",
}

// Resolve maps a free-text timezone reference to a canonical zone.
// The second return value is false when nothing matched; callers must
// supply a fallback (the assigner's configured zone) rather than fail.
func Resolve(reference string) (Resolution, bool) {
	ref := normalizeReference(reference)
	if ref == "" || ref == "assigner_local" {
		return Resolution{}, false
	}

	// An explicit IANA name is the most specific reference possible.
	if strings.Contains(reference, "/") {
		if loc, err := time.LoadLocation(strings.TrimSpace(reference)); err == nil {
			return Resolution{Name: loc.String(), Location: loc, Kind: MatchIANA}, true
		}
	}

	if name, ok := abbreviations[ref]; ok {
		return load(name, MatchAbbreviation)
	}
	if name, ok := cities[ref]; ok {
		return load(name, MatchCity)
	}
	if name, ok := regions[ref]; ok {
		return load(name, MatchRegion)
	}

	return Resolution{}, false
}

func load(name string, kind MatchKind) (Resolution, bool) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Resolution{}, false
	}
	return Resolution{Name: name, Location: loc, Kind: kind}, true
}

// FindInText scans free text for an embedded timezone reference: an
// abbreviation token ("4pm CST"), a city reference ("Houston time"), or a
// region reference ("Central time"). Returns the resolution and the exact
// matched fragment so callers can strip it from the phrase.
func FindInText(text string) (Resolution, string, bool) {
	if m := abbreviationPattern.FindString(text); m != "" {
		if res, ok := Resolve(m); ok {
			return res, m, true
		}
	}

	lower := strings.ToLower(text)
	// Cities before regions: "Houston time" is more specific than
	// "Central time" and must win when both words appear.
	for city, name := range cities {
		needle := city + " time"
		if idx := strings.Index(lower, needle); idx >= 0 {
			if res, ok := load(name, MatchCity); ok {
				return res, text[idx : idx+len(needle)], true
			}
		}
	}
	for region, name := range regions {
		needle := region + " time"
		if idx := strings.Index(lower, needle); idx >= 0 {
			if res, ok := load(name, MatchRegion); ok {
				return res, text[idx : idx+len(needle)], true
			}
		}
	}

	return Resolution{}, "", false
}

// normalizeReference lowercases the reference and strips the filler words
// that commonly trail spoken timezone references ("Houston time",
// "Central Standard Time").
func normalizeReference(reference string) string {
	ref := strings.ToLower(strings.TrimSpace(reference))
	for {
		trimmed := ref
		for _, suffix := range []string{"time", "standard", "daylight", "zone"} {
			trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, suffix))
		}
		if trimmed == ref {
			return ref
		}
		ref = trimmed
	}
}
