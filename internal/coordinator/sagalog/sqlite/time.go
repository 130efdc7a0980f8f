package sqlite

import (
	"fmt"
	"time"
)

// SQLite has no datetime type; timestamps are stored as fixed-width RFC3339.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sagalog: parse time %q: %w", s, err)
	}
	return t, nil
}
