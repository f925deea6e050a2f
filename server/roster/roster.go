// Package roster loads the known people and sites a deployment serves.
// Each user carries a default timezone and delivery preferences; the
// validator and scheduler consult the roster instead of trusting parser
// output for identity fields.
package roster

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	rerrors "github.com/fieldops/remindd/internal/errors"
	"github.com/fieldops/remindd/server/timezone"
)

// QuietHours suppresses delivery inside a local-time window. Start and End
// are "HH:MM" in the user's timezone; a window may cross midnight.
type QuietHours struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// User is one roster entry.
type User struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
	// Aliases are alternate spellings the parser may emit ("sam", "Sam K").
	Aliases []string `yaml:"aliases"`
	// EscalationContact receives a duplicate notification when this user
	// does not acknowledge within the escalation window.
	EscalationContact string      `yaml:"escalation_contact"`
	QuietHours        *QuietHours `yaml:"quiet_hours"`
	// PeriodTimes overrides the default hour for named day periods,
	// e.g. morning: 8.
	PeriodTimes map[string]int `yaml:"period_times"`

	location *time.Location
}

// Location returns the user's timezone, never nil after a successful load.
func (u *User) Location() *time.Location {
	if u.location == nil {
		return time.UTC
	}
	return u.location
}

// InQuietHours reports whether t falls inside the user's quiet window.
func (u *User) InQuietHours(t time.Time) bool {
	if u.QuietHours == nil {
		return false
	}
	local := t.In(u.Location())
	cur := local.Hour()*60 + local.Minute()
	start, err1 := parseClockMinutes(u.QuietHours.Start)
	end, err2 := parseClockMinutes(u.QuietHours.End)
	if err1 != nil || err2 != nil {
		return false
	}
	if start <= end {
		return cur >= start && cur < end
	}
	// Window crosses midnight, e.g. 22:00 to 07:00.
	return cur >= start || cur < end
}

// QuietHoursEnd returns the next instant at or after t when the quiet
// window ends, in the user's timezone.
func (u *User) QuietHoursEnd(t time.Time) time.Time {
	if u.QuietHours == nil {
		return t
	}
	end, err := parseClockMinutes(u.QuietHours.End)
	if err != nil {
		return t
	}
	local := t.In(u.Location())
	candidate := time.Date(local.Year(), local.Month(), local.Day(),
		end/60, end%60, 0, 0, u.Location())
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func parseClockMinutes(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value out of range: %q", s)
	}
	return h*60 + m, nil
}

// file is the on-disk document shape.
type file struct {
	Users []*User  `yaml:"users"`
	Sites []string `yaml:"sites"`
}

// Roster is a reloadable view of the deployment's users and sites.
type Roster struct {
	mu      sync.RWMutex
	path    string
	byName  map[string]*User
	users   []*User
	sites   map[string]string
	siteLst []string
}

// Load reads the roster file and resolves every user's timezone.
func Load(path string) (*Roster, error) {
	r := &Roster{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the roster file. On failure the previous roster stays
// in effect.
func (r *Roster) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return rerrors.Wrap(err, rerrors.CodeInvalidArgument, "read roster file")
	}
	return r.load(data)
}

// Parse builds a roster directly from YAML bytes. Used by tests and by
// deployments that inject the roster without a file.
func Parse(data []byte) (*Roster, error) {
	r := &Roster{}
	if err := r.load(data); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Roster) load(data []byte) error {
	var doc file
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return rerrors.Wrap(err, rerrors.CodeInvalidArgument, "decode roster yaml")
	}
	if len(doc.Users) == 0 {
		return rerrors.New(rerrors.CodeInvalidArgument, "roster has no users")
	}

	byName := make(map[string]*User)
	for _, u := range doc.Users {
		if u.ID == "" {
			return rerrors.Newf(rerrors.CodeInvalidArgument, "roster user %q has no id", u.Name)
		}
		loc, err := timezone.ParseTimezone(u.Timezone)
		if err != nil {
			return rerrors.Wrapf(err, rerrors.CodeInvalidArgument,
				"roster user %s has invalid timezone %q", u.ID, u.Timezone)
		}
		u.location = loc

		for _, key := range append([]string{u.ID, u.Name}, u.Aliases...) {
			key = normalizeName(key)
			if key == "" {
				continue
			}
			if prev, ok := byName[key]; ok && prev != u {
				return rerrors.Newf(rerrors.CodeInvalidArgument,
					"roster name %q maps to both %s and %s", key, prev.ID, u.ID)
			}
			byName[key] = u
		}
	}

	sites := make(map[string]string, len(doc.Sites))
	for _, s := range doc.Sites {
		sites[normalizeName(s)] = s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = doc.Users
	r.byName = byName
	r.sites = sites
	r.siteLst = doc.Sites
	return nil
}

// Find resolves a user by id, name, or alias. Matching is case-insensitive.
func (r *Roster) Find(name string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byName[normalizeName(name)]
	return u, ok
}

// FindSite resolves a site mention to its canonical name.
func (r *Roster) FindSite(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sites[normalizeName(name)]
	return s, ok
}

// Users returns all roster users.
func (r *Roster) Users() []*User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*User, len(r.users))
	copy(out, r.users)
	return out
}

// Sites returns the canonical site list.
func (r *Roster) Sites() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.siteLst))
	copy(out, r.siteLst)
	return out
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
