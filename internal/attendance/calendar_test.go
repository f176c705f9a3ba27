package attendance

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestGenerateSessionsWeeklyMondays(t *testing.T) {
	// Jan 1 2024 is a Monday; a four-week term yields four sessions.
	sessions := GenerateSessions("Math101", date(2024, 1, 1), date(2024, 1, 22), time.Monday)

	want := []string{"2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22"}
	if len(sessions) != len(want) {
		t.Fatalf("expected %d sessions, got %d", len(want), len(sessions))
	}
	for i, s := range sessions {
		if s.Date != want[i] {
			t.Fatalf("session %d: expected %s, got %s", i, want[i], s.Date)
		}
		if s.Status != SessionActive {
			t.Fatalf("session %d: expected Active, got %s", i, s.Status)
		}
		if s.Course != "Math101" {
			t.Fatalf("session %d: expected course Math101, got %s", i, s.Course)
		}
	}
}

func TestGenerateSessionsFirstMatchShift(t *testing.T) {
	// Term starts Monday but class day is Wednesday: first session shifts
	// forward two days.
	sessions := GenerateSessions("Phys", date(2024, 1, 1), date(2024, 1, 31), time.Wednesday)
	if len(sessions) == 0 {
		t.Fatal("expected sessions")
	}
	if sessions[0].Date != "2024-01-03" {
		t.Fatalf("expected first session 2024-01-03, got %s", sessions[0].Date)
	}
}

func TestGenerateSessionsProperties(t *testing.T) {
	cases := []struct {
		name    string
		start   time.Time
		end     time.Time
		weekday time.Weekday
	}{
		{"full semester", date(2024, 2, 5), date(2024, 6, 14), time.Friday},
		{"single week", date(2024, 3, 4), date(2024, 3, 10), time.Thursday},
		{"year boundary", date(2024, 12, 16), date(2025, 1, 20), time.Monday},
		{"sunday class", date(2024, 1, 2), date(2024, 2, 29), time.Sunday},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sessions := GenerateSessions("c", tc.start, tc.end, tc.weekday)
			startStr, endStr := ISODate(tc.start), ISODate(tc.end)
			prev := ""
			for _, s := range sessions {
				d, err := ParseISODate(s.Date)
				if err != nil {
					t.Fatalf("bad date %q: %v", s.Date, err)
				}
				if d.Weekday() != tc.weekday {
					t.Fatalf("date %s falls on %s, want %s", s.Date, d.Weekday(), tc.weekday)
				}
				if s.Date < startStr || s.Date > endStr {
					t.Fatalf("date %s outside term [%s, %s]", s.Date, startStr, endStr)
				}
				if prev != "" && s.Date <= prev {
					t.Fatalf("dates not strictly increasing: %s after %s", s.Date, prev)
				}
				prev = s.Date
			}

			// Count check: floor((end - firstMatch)/7) + 1, or 0 when the
			// first match overshoots the term.
			first := tc.start
			for first.Weekday() != tc.weekday {
				first = first.AddDate(0, 0, 1)
			}
			want := 0
			if ISODate(first) <= endStr {
				// Count whole days between UTC midnights so DST shifts
				// cannot skew the division.
				fu := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
				eu := time.Date(tc.end.Year(), tc.end.Month(), tc.end.Day(), 0, 0, 0, 0, time.UTC)
				want = int(eu.Sub(fu).Hours()/24)/7 + 1
			}
			if len(sessions) != want {
				t.Fatalf("expected %d sessions, got %d", want, len(sessions))
			}
		})
	}
}

func TestGenerateSessionsEmptyRanges(t *testing.T) {
	// Start after end.
	if got := GenerateSessions("c", date(2024, 5, 1), date(2024, 4, 1), time.Monday); len(got) != 0 {
		t.Fatalf("expected zero sessions for inverted term, got %d", len(got))
	}
	// Range too short to reach the target weekday: Tue Jan 2 through Thu
	// Jan 4 never hits a Monday.
	if got := GenerateSessions("c", date(2024, 1, 2), date(2024, 1, 4), time.Monday); len(got) != 0 {
		t.Fatalf("expected zero sessions for short range, got %d", len(got))
	}
}

func TestGenerateSessionsEndDateInclusive(t *testing.T) {
	// Term ending exactly on a class day includes that session.
	sessions := GenerateSessions("c", date(2024, 1, 1), date(2024, 1, 8), time.Monday)
	if len(sessions) != 2 || sessions[1].Date != "2024-01-08" {
		t.Fatalf("expected term-end session included, got %v", sessions)
	}
}
