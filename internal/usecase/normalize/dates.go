package normalize

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// parseDate turns a raw date string into a calendar date (midnight UTC).
// The mapping's known layouts are tried first, then a lenient parse catches
// the long tail of provider formats. Unparseable values stay null rather
// than failing the record.
func parseDate(value string, layouts []string) *time.Time {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return datePtr(t)
		}
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return datePtr(t)
	}
	return nil
}

// datePtr truncates a timestamp to its calendar date in UTC.
func datePtr(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
