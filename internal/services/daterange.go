package services

import (
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// DateRange is an inclusive [Start, End] window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// CacheKey identifies the range in report cache keys.
func (r DateRange) CacheKey() string {
	return r.Start.UTC().Format(time.RFC3339Nano) + "_" + r.End.UTC().Format(time.RFC3339Nano)
}

// ParseDateRange reads start/end query values in loc. Plain dates cover the
// whole local day: a date-only end runs through 23:59:59.999 of that day.
// Both empty means today; a single value means that one day.
func ParseDateRange(start, end string, loc *time.Location, now time.Time) (DateRange, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)

	if start == "" && end == "" {
		start = now.In(loc).Format(dayLayout)
	}
	if start == "" {
		start = end
	}
	if end == "" {
		end = start
	}

	from, _, err := parseBound(start, loc)
	if err != nil {
		return DateRange{}, invalid("start", "expected YYYY-MM-DD or RFC3339 timestamp, got %q", start)
	}
	to, dateOnly, err := parseBound(end, loc)
	if err != nil {
		return DateRange{}, invalid("end", "expected YYYY-MM-DD or RFC3339 timestamp, got %q", end)
	}
	if dateOnly {
		to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if from.After(to) {
		return DateRange{}, invalid("start", "start must not be after end")
	}
	return DateRange{Start: from, End: to}, nil
}

func parseBound(value string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(dayLayout, value, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.In(loc), false, nil
}

// DayRange is the shop-local calendar day containing t.
func DayRange(t time.Time, loc *time.Location) DateRange {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return DateRange{Start: start, End: start.AddDate(0, 0, 1).Add(-time.Nanosecond)}
}
