package types

import (
	"fmt"
	"strings"
	"time"
)

// ReferenceTable maps a three-letter month abbreviation ("Jan".."Dec") to its
// evapotranspiration reference rate. It is loaded once per run and treated as
// immutable afterwards.
type ReferenceTable map[string]float64

// MonthAbbr returns the canonical key for m, e.g. "Jan".
func MonthAbbr(m time.Month) string {
	return m.String()[:3]
}

// ParseMonth resolves a month abbreviation (case-insensitive).
func ParseMonth(abbr string) (time.Month, error) {
	abbr = strings.TrimSpace(abbr)
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(MonthAbbr(m), abbr) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown month %q", abbr)
}

// NewReferenceTable validates raw month keys and rates and returns a table
// with canonical keys.
func NewReferenceTable(raw map[string]float64) (ReferenceTable, error) {
	t := make(ReferenceTable, len(raw))
	for k, v := range raw {
		m, err := ParseMonth(k)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, fmt.Errorf("negative rate %v for %s", v, MonthAbbr(m))
		}
		key := MonthAbbr(m)
		if _, dup := t[key]; dup {
			return nil, fmt.Errorf("duplicate month %s", key)
		}
		t[key] = v
	}
	return t, nil
}

// Rate returns the rate for month m.
func (t ReferenceTable) Rate(m time.Month) (float64, error) {
	v, ok := t[MonthAbbr(m)]
	if !ok {
		return 0, NewAppErrorWithDetails(ErrCodeReferenceRateMissing,
			fmt.Sprintf("no reference rate for %s", MonthAbbr(m)), nil,
			map[string]any{"month": MonthAbbr(m)})
	}
	return v, nil
}

// Peak returns the month holding the highest rate. Ties go to the earliest
// month in calendar order. An empty table or a zero peak is an error, since
// the peak is used as a divisor.
func (t ReferenceTable) Peak() (time.Month, float64, error) {
	var (
		peakMonth time.Month
		peakRate  float64
		found     bool
	)
	for m := time.January; m <= time.December; m++ {
		v, ok := t[MonthAbbr(m)]
		if !ok {
			continue
		}
		if !found || v > peakRate {
			peakMonth, peakRate, found = m, v, true
		}
	}
	if !found {
		return 0, 0, NewAppError(ErrCodeReferenceRateMissing, "reference table is empty", nil)
	}
	if peakRate == 0 {
		return 0, 0, NewAppErrorWithDetails(ErrCodeReferencePeakZero,
			"peak reference rate is zero", nil,
			map[string]any{"month": MonthAbbr(peakMonth)})
	}
	return peakMonth, peakRate, nil
}
