// Package present maps raw message fields to display values for the UI.
// Every function here is pure and total: absent input never panics.
package present

import "time"

// Layouts for each FormatRelative branch.
const (
	LayoutToday    = "3:04 PM"
	LayoutThisWeek = "Mon 3:04 PM"
	LayoutThisYear = "Mon 1/02"
	LayoutOlder    = "Mon 1/02/06"
)

// FormatRelative renders a received timestamp relative to now, in now's
// location. A nil timestamp is passed through as nil rather than rendered.
//
// Branches, first match wins: same calendar day as now; any day from six
// days before today onwards; same calendar year; anything else.
func FormatRelative(t *time.Time, now time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.In(now.Location()).Format(RelativeLayout(*t, now))
	return &s
}

// RelativeLayout returns the layout FormatRelative picks for t.
func RelativeLayout(t, now time.Time) string {
	local := t.In(now.Location())
	today := startOfDay(now)
	day := startOfDay(local)
	switch {
	case day.Equal(today):
		return LayoutToday
	case day.After(today.AddDate(0, 0, -7)):
		return LayoutThisWeek
	case local.Year() == now.Year():
		return LayoutThisYear
	default:
		return LayoutOlder
	}
}

// RelativeDate is FormatRelative for call sites that render nil as "".
func RelativeDate(t *time.Time, now time.Time) string {
	if s := FormatRelative(t, now); s != nil {
		return *s
	}
	return ""
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
