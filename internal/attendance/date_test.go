package attendance

import (
	"testing"
	"time"
)

func TestISODateDropsTimeOfDay(t *testing.T) {
	morning := time.Date(2024, 1, 8, 0, 0, 1, 0, time.Local)
	night := time.Date(2024, 1, 8, 23, 59, 59, 0, time.Local)
	if ISODate(morning) != ISODate(night) {
		t.Fatalf("same calendar date serialized differently: %s vs %s", ISODate(morning), ISODate(night))
	}
	if got := ISODate(morning); got != "2024-01-08" {
		t.Fatalf("expected 2024-01-08, got %s", got)
	}
}

func TestParseISODate(t *testing.T) {
	cases := map[string]string{
		"2024-01-08":           "2024-01-08",
		" 2024-01-08 ":         "2024-01-08",
		"2024-01-08T10:30:00Z": "2024-01-08", // timestamp degrades to date part
	}
	for input, want := range cases {
		got, err := ParseISODate(input)
		if err != nil {
			t.Fatalf("ParseISODate(%q): %v", input, err)
		}
		if ISODate(got) != want {
			t.Fatalf("ParseISODate(%q) = %s, want %s", input, ISODate(got), want)
		}
	}

	for _, bad := range []string{"", "08/01/2024", "2024-13-01", "not a date"} {
		if _, err := ParseISODate(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for input, want := range map[string]Status{
		"Present":  StatusPresent,
		"Excused":  StatusExcused,
		"Absent":   StatusAbsent,
		" Present": StatusPresent,
	} {
		got, err := ParseStatus(input)
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseStatus(%q) = %s, want %s", input, got, want)
		}
	}
	for _, bad := range []string{"", "present", "Late", "true"} {
		if _, err := ParseStatus(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestStoredStatusLegacyDefault(t *testing.T) {
	// Rows written before the status column existed read back as Present.
	if got := storedStatus(""); got != StatusPresent {
		t.Fatalf("empty stored status should map to Present, got %s", got)
	}
	if got := storedStatus(StatusExcused); got != StatusExcused {
		t.Fatalf("expected Excused, got %s", got)
	}
}

func TestStatsRate(t *testing.T) {
	if got := (Stats{Attended: 0, Total: 0}).Rate(); got != 0 {
		t.Fatalf("zero-session rate should be 0, got %g", got)
	}
	if got := (Stats{Attended: 3, Total: 4}).Rate(); got != 75 {
		t.Fatalf("expected 75, got %g", got)
	}
}
