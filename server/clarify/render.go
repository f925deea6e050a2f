package clarify

import (
	"fmt"
	"strings"

	"github.com/fieldops/remindd/server/timezone"
	"github.com/fieldops/remindd/server/validate"
)

// FormatConfirmation renders a draft for the requester to approve. Times
// are shown in the zone the wording resolved against, plus the assignee's
// local zone when it differs.
func FormatConfirmation(d *validate.Draft) string {
	var b strings.Builder

	b.WriteString("Please confirm:\n")
	fmt.Fprintf(&b, "  Task: %s\n", d.Task)
	if d.Assignee != nil {
		fmt.Fprintf(&b, "  Assignee: %s\n", d.Assignee.Name)
	}

	loc, _ := timezone.ParseTimezone(d.ZoneName)
	fmt.Fprintf(&b, "  Due: %s\n", timezone.FormatLocal(d.Due, loc))
	if d.Assignee != nil && d.Assignee.Location().String() != d.ZoneName {
		fmt.Fprintf(&b, "  Due (%s local): %s\n", d.Assignee.Name,
			timezone.FormatLocal(d.Due, d.Assignee.Location()))
	}
	if !d.Reminder.Equal(d.Due) {
		fmt.Fprintf(&b, "  Reminder: %s\n", timezone.FormatLocal(d.Reminder, loc))
	}
	if d.RepeatInterval != "" {
		fmt.Fprintf(&b, "  Repeats: %s\n", d.RepeatInterval)
	}
	if d.Site != "" {
		fmt.Fprintf(&b, "  Site: %s\n", d.Site)
	}
	b.WriteString("Reply 'yes' to confirm, 'cancel' to drop, or tell me what to change.")

	return b.String()
}

// FormatClarification renders the problems that keep a draft from being
// scheduled, pointing at the exact fields.
func FormatClarification(violations []validate.Violation, lowConfidence bool) string {
	var b strings.Builder

	if len(violations) > 0 {
		b.WriteString("I could not schedule that yet:\n")
		for _, v := range violations {
			fmt.Fprintf(&b, "  - %s: %s\n", v.Field, v.Reason)
		}
	} else if lowConfidence {
		b.WriteString("I'm not sure I understood that correctly.\n")
	}
	b.WriteString("Please restate or correct the details.")

	return b.String()
}

// FormatAbandoned renders the terminal message when clarification rounds
// run out, surfacing the full correction history.
func FormatAbandoned(history []Correction) string {
	var b strings.Builder

	b.WriteString("Giving up on this one after too many attempts.\n")
	if len(history) > 0 {
		b.WriteString("What you told me:\n")
		for _, c := range history {
			fmt.Fprintf(&b, "  %d. %s\n", c.Round, c.Text)
		}
	}
	b.WriteString("Start over with a fresh message when ready.")

	return b.String()
}
