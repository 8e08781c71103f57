package results

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// Result is a single assertion result as returned by the status endpoint.
type Result struct {
	URL         string `json:"url"`
	Timestamp   string `json:"timestamp"`
	OK          *bool  `json:"ok,omitempty"`
	Expectation any    `json:"expectation,omitempty"`
	Actual      any    `json:"actual,omitempty"`
	Label       string `json:"label,omitempty"`
}

// Key identifies an observation. Two results with the same key are the same
// probe run.
func (r Result) Key() string {
	return r.URL + "|" + r.Timestamp
}

// Passed reports whether the probe succeeded. An absent ok flag counts as a
// failure.
func (r Result) Passed() bool {
	return r.OK != nil && *r.OK
}

// Time parses the timestamp. Anything cast understands is accepted (RFC3339,
// RFC1123, plain dates and so on); timestamps without a zone are local time.
func (r Result) Time() (time.Time, bool) {
	return parseTimestamp(r.Timestamp)
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := cast.ToTimeInDefaultLocationE(s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// TimeOfDay renders the timestamp as a local wall-clock time for tables.
// Unparseable timestamps are shown as given.
func (r Result) TimeOfDay() string {
	t, ok := r.Time()
	if !ok {
		return r.Timestamp
	}
	return t.Local().Format("15:04:05 MST")
}

// ExpectationString renders the expectation for display; nil renders empty.
func (r Result) ExpectationString() string {
	return displayValue(r.Expectation)
}

// ActualString renders the observed value the same way as the expectation.
func (r Result) ActualString() string {
	return displayValue(r.Actual)
}

func displayValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case float64:
		// encoding/json decodes every number as float64.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}

// IsZero reports whether r is the empty record returned for missing indices.
func (r Result) IsZero() bool {
	return r.URL == "" && r.Timestamp == "" && r.OK == nil &&
		r.Expectation == nil && r.Actual == nil && r.Label == ""
}

// Bool returns a pointer to b, for building results in code.
func Bool(b bool) *bool { return &b }
