package types

import (
	"fmt"
	"strings"
	"time"
)

// Weekdays is the set of days a valve waters, indexed Monday=0 .. Sunday=6.
type Weekdays [7]bool

// weekdayAbbrs lists the accepted day tokens in Weekdays index order.
var weekdayAbbrs = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekdayIndex converts a time.Weekday (Sunday=0) to a Weekdays index (Monday=0).
func WeekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// ParseWeekday resolves a three-letter day abbreviation (case-insensitive)
// to its Weekdays index.
func ParseWeekday(abbr string) (int, error) {
	abbr = strings.TrimSpace(abbr)
	for i, a := range weekdayAbbrs {
		if strings.EqualFold(a, abbr) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", abbr)
}

// On reports whether watering is enabled for the weekday of t.
func (w Weekdays) On(t time.Time) bool {
	return w[WeekdayIndex(t.Weekday())]
}

// String renders the enabled days, e.g. "Mon,Wed,Fri".
func (w Weekdays) String() string {
	var days []string
	for i, on := range w {
		if on {
			days = append(days, weekdayAbbrs[i])
		}
	}
	return strings.Join(days, ",")
}

// ScheduleEntry is one configured valve. Duration is always a whole number of
// seconds; it is rewritten by the ET adjustment before the run.
type ScheduleEntry struct {
	Name           string        `json:"name"`
	ValveID        int           `json:"valve_id" validate:"gte=0"`
	Duration       time.Duration `json:"duration" validate:"gt=0"`
	ActiveDays     Weekdays      `json:"active_days"`
	Address        string        `json:"address" validate:"required,url"`
	ScheduledStart time.Time     `json:"scheduled_start"`

	// Line is the 1-based line of the schedule file the entry came from.
	Line int `json:"line,omitempty"`
}

// Seconds returns the entry's duration in whole seconds.
func (e ScheduleEntry) Seconds() int64 {
	return int64(e.Duration / time.Second)
}

// Schedule is the validated in-memory form of a schedule file.
type Schedule struct {
	Reference ReferenceTable
	Entries   []ScheduleEntry
}
