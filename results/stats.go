package results

import (
	"fmt"
	"time"
)

// Standing windows for the dashboard error rates.
const (
	Hour = time.Hour
	Day  = 24 * Hour
	Week = 7 * Day
)

// Rate is the outcome of a windowed error-rate query.
type Rate struct {
	Errors int `json:"errors"`
	Total  int `json:"total"`
}

// Fraction divides errors by total without a guard, so a window with no
// results yields NaN.
func (r Rate) Fraction() float64 {
	return float64(r.Errors) / float64(r.Total)
}

// Value returns the error fraction and false when the window held no results.
func (r Rate) Value() (float64, bool) {
	if r.Total == 0 {
		return 0, false
	}
	return r.Fraction(), true
}

// String renders the rate as a percentage, or "n/a" without data.
func (r Rate) String() string {
	v, ok := r.Value()
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", v*100)
}

// Stats is a consistent read of every summary value the dashboard shows.
type Stats struct {
	LatestUpdate string `json:"latest_update"`
	Total        int    `json:"total"`
	BatchOK      int    `json:"batch_ok"`
	BatchFailed  int    `json:"batch_failed"`
	LastHour     Rate   `json:"last_hour"`
	LastDay      Rate   `json:"last_day"`
	LastWeek     Rate   `json:"last_week"`
}
