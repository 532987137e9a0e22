package scheduler

import (
	"math"
	"time"

	"sprinkler/internal/types"
)

// Adjustment records the ET factor applied to a run.
type Adjustment struct {
	Month     time.Month
	Rate      float64
	PeakMonth time.Month
	PeakRate  float64
	Factor    float64
}

// AdjustDurations scales every entry's duration in place by
// ET(today's month) / ET(peak month), truncating to whole seconds.
//
// The factor is computed once and then applied to each duration. A missing
// rate or a zero peak is returned as a fatal AppError and no entry is
// modified.
func AdjustDurations(entries []types.ScheduleEntry, table types.ReferenceTable, today time.Time) (Adjustment, error) {
	peakMonth, peakRate, err := table.Peak()
	if err != nil {
		return Adjustment{}, err
	}
	rate, err := table.Rate(today.Month())
	if err != nil {
		return Adjustment{}, err
	}

	adj := Adjustment{
		Month:     today.Month(),
		Rate:      rate,
		PeakMonth: peakMonth,
		PeakRate:  peakRate,
		Factor:    rate / peakRate,
	}
	for i := range entries {
		entries[i].Duration = adj.Apply(entries[i].Duration)
	}
	return adj, nil
}

// Apply scales d by the factor and floors the result to whole seconds.
func (a Adjustment) Apply(d time.Duration) time.Duration {
	secs := math.Floor(float64(d/time.Second) * a.Factor)
	return time.Duration(secs) * time.Second
}
