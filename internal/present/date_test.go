package present

import (
	"testing"
	"time"
)

var testLoc = time.FixedZone("UTC-5", -5*60*60)

func TestFormatRelative_Branches(t *testing.T) {
	// Saturday 2024-06-15 10:00 local.
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, testLoc)
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"same day", time.Date(2024, 6, 15, 8, 5, 0, 0, testLoc), "8:05 AM"},
		{"same day evening", time.Date(2024, 6, 15, 21, 30, 0, 0, testLoc), "9:30 PM"},
		{"yesterday", time.Date(2024, 6, 14, 13, 45, 0, 0, testLoc), "Fri 1:45 PM"},
		{"six days back", time.Date(2024, 6, 9, 0, 0, 0, 0, testLoc), "Sun 12:00 AM"},
		{"seven days back", time.Date(2024, 6, 8, 23, 59, 0, 0, testLoc), "Sat 6/08"},
		{"earlier this year", time.Date(2024, 1, 2, 9, 0, 0, 0, testLoc), "Tue 1/02"},
		{"previous year", time.Date(2023, 12, 31, 9, 0, 0, 0, testLoc), "Sun 12/31/23"},
		{"converted to local", time.Date(2024, 6, 15, 2, 0, 0, 0, time.UTC), "Fri 9:00 PM"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			got := FormatRelative(&in, now)
			if got == nil {
				t.Fatalf("FormatRelative returned nil")
			}
			if *got != tc.want {
				t.Errorf("FormatRelative(%v) = %q; want %q", tc.in, *got, tc.want)
			}
		})
	}
}

func TestFormatRelative_NilPassesThrough(t *testing.T) {
	if got := FormatRelative(nil, time.Now()); got != nil {
		t.Fatalf("FormatRelative(nil) = %q; want nil", *got)
	}
	if got := RelativeDate(nil, time.Now()); got != "" {
		t.Fatalf("RelativeDate(nil) = %q; want empty", got)
	}
}

func TestFormatRelative_WindowBoundary(t *testing.T) {
	now := time.Date(2024, 3, 20, 0, 30, 0, 0, testLoc)
	today := startOfDay(now)

	// Six days back stays in the weekday branch: the window is today plus
	// the six prior days. Do not narrow it to "> today-6".
	six := today.AddDate(0, 0, -6).Add(23 * time.Hour)
	if got := RelativeLayout(six, now); got != LayoutThisWeek {
		t.Errorf("6 days back: layout %q; want %q", got, LayoutThisWeek)
	}
	seven := today.AddDate(0, 0, -7).Add(23 * time.Hour)
	if got := RelativeLayout(seven, now); got != LayoutThisYear {
		t.Errorf("7 days back: layout %q; want %q", got, LayoutThisYear)
	}
}

func TestFormatRelative_RoundTripsCalendarDate(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, testLoc)
	for days := 0; days < 800; days += 3 {
		ts := now.AddDate(0, 0, -days).Add(-time.Duration(days%13) * time.Hour)
		out := FormatRelative(&ts, now)
		layout := RelativeLayout(ts, now)
		parsed, err := time.ParseInLocation(layout, *out, testLoc)
		if err != nil {
			t.Fatalf("parse %q with %q: %v", *out, layout, err)
		}
		local := ts.In(testLoc)
		switch layout {
		case LayoutToday, LayoutThisWeek:
			if parsed.Hour() != local.Hour() || parsed.Minute() != local.Minute() {
				t.Fatalf("%v: time of day %q does not match", ts, *out)
			}
			if layout == LayoutToday && !startOfDay(local).Equal(startOfDay(now)) {
				t.Fatalf("%v rendered as today", ts)
			}
			if layout == LayoutThisWeek && local.Weekday().String()[:3] != (*out)[:3] {
				t.Fatalf("%v: weekday mismatch in %q", ts, *out)
			}
		case LayoutThisYear:
			if parsed.Month() != local.Month() || parsed.Day() != local.Day() {
				t.Fatalf("%v: %q does not round-trip month/day", ts, *out)
			}
		case LayoutOlder:
			if parsed.Year() != local.Year() || parsed.Month() != local.Month() || parsed.Day() != local.Day() {
				t.Fatalf("%v: %q does not round-trip date", ts, *out)
			}
		}
	}
}
