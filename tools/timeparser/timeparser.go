package timeparser

import (
	"fmt"
	"strings"
	"time"
)

// DisplayLayout renders a reading time in UTC as "2006-01-02 15:04:05Z".
const DisplayLayout = "2006-01-02 15:04:05Z"

// layouts are tried in order. Layouts without a zone yield UTC times.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
	"02/01/2006 15:04",    // DD/MM/YYYY HH:mm
	"02/01/2006",
	"02 15:04:05/01/2006", // DD HH:mm:ss/MM/YYYY
}

// ParseMeterTimestamp parses a reading date-time written in any of the
// accepted numeric layouts. The result is independent of the host locale;
// text carrying no zone information is taken as UTC.
func ParseMeterTimestamp(dateStr string) (time.Time, error) {
	value := strings.TrimSpace(dateStr)

	var lastErr error
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", dateStr, lastErr)
}

// DateOnly converts t to UTC and drops the time of day. Values returned for
// the same calendar day compare equal with ==.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// IsFutureDate reports whether t falls on a UTC calendar day after now's.
func IsFutureDate(t, now time.Time) bool {
	return DateOnly(t).After(DateOnly(now))
}

// Format renders t for messages.
func Format(t time.Time) string {
	return t.UTC().Format(DisplayLayout)
}
