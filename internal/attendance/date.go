package attendance

import (
	"fmt"
	"strings"
	"time"
)

const isoDateLayout = "2006-01-02"

// ISODate is the single canonical conversion from a timestamp to the
// YYYY-MM-DD calendar date used for every stored date and every string
// comparison. It deliberately drops the time-of-day component so the same
// date serializes identically regardless of when during the day it was
// captured.
func ISODate(t time.Time) string {
	return t.Format(isoDateLayout)
}

// ParseISODate parses a canonical YYYY-MM-DD string into a local midnight
// timestamp. Inputs longer than ten characters are truncated first, so full
// RFC 3339 timestamps degrade gracefully to their date part.
func ParseISODate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(isoDateLayout) {
		s = s[:len(isoDateLayout)]
	}
	t, err := time.ParseInLocation(isoDateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
