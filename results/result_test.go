package results

import (
	"encoding/json"
	"testing"
	"time"
)

func TestResult_DecodeOptionalFields(t *testing.T) {
	var batch []Result
	raw := `[
		{"url":"https://a","timestamp":"2025-08-18T11:00:00Z","ok":true,"expectation":200},
		{"url":"https://b","timestamp":"2025-08-18T11:00:00Z"},
		{"url":"https://c","timestamp":"2025-08-18T11:00:00Z","ok":false,"expectation":"body contains ok"}
	]`
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !batch[0].Passed() || batch[0].ExpectationString() != "200" {
		t.Fatalf("unexpected first record %+v", batch[0])
	}
	if batch[1].OK != nil || batch[1].Passed() {
		t.Fatalf("absent ok should decode to nil and count as failure: %+v", batch[1])
	}
	if batch[1].ExpectationString() != "" {
		t.Fatalf("absent expectation should render empty, got %q", batch[1].ExpectationString())
	}
	if batch[2].Passed() || batch[2].ExpectationString() != "body contains ok" {
		t.Fatalf("unexpected third record %+v", batch[2])
	}
}

func TestResult_Key(t *testing.T) {
	r := Result{URL: "https://a", Timestamp: "2025-08-18T11:00:00Z"}
	if got := r.Key(); got != "https://a|2025-08-18T11:00:00Z" {
		t.Fatalf("Key()=%q", got)
	}
}

func TestResult_Time(t *testing.T) {
	want := time.Date(2025, 8, 18, 11, 0, 0, 0, time.UTC)
	cases := []struct {
		in string
		ok bool
	}{
		{"2025-08-18T11:00:00Z", true},
		{"2025-08-18T13:00:00+02:00", true},
		{"Mon, 18 Aug 2025 11:00:00 +0000", true},
		{"", false},
		{"yesterday-ish", false},
	}
	for _, c := range cases {
		got, ok := Result{Timestamp: c.in}.Time()
		if ok != c.ok {
			t.Fatalf("Time(%q) ok=%v want %v", c.in, ok, c.ok)
		}
		if ok && !got.Equal(want) {
			t.Fatalf("Time(%q)=%v want %v", c.in, got, want)
		}
	}
}

func TestResult_ExpectationString(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{float64(404), "404"},
		{1.5, "1.5"},
		{"text", "text"},
		{true, "true"},
	}
	for _, c := range cases {
		if got := (Result{Expectation: c.in}).ExpectationString(); got != c.want {
			t.Fatalf("ExpectationString(%v)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestResult_TimeOfDay(t *testing.T) {
	ts := time.Date(2025, 8, 18, 11, 4, 5, 0, time.UTC)
	r := Result{Timestamp: ts.Format(time.RFC3339)}
	if got, want := r.TimeOfDay(), ts.Local().Format("15:04:05 MST"); got != want {
		t.Fatalf("TimeOfDay()=%q want %q", got, want)
	}
	if got := (Result{Timestamp: "soon"}).TimeOfDay(); got != "soon" {
		t.Fatalf("unparseable timestamp should pass through, got %q", got)
	}
	if got := (Result{}).TimeOfDay(); got != "" {
		t.Fatalf("empty timestamp should render empty, got %q", got)
	}
}

func TestResult_TimeWithoutZoneIsLocal(t *testing.T) {
	got, ok := Result{Timestamp: "2025-08-18T11:00:00"}.Time()
	if !ok {
		t.Fatal("zoneless timestamp should parse")
	}
	want := time.Date(2025, 8, 18, 11, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("Time()=%v want %v (local wall clock)", got, want)
	}
}

func TestResult_LabelAndActual(t *testing.T) {
	var r Result
	raw := `{"url":"https://a","timestamp":"2025-08-18T11:00:00Z","ok":false,"expectation":200,"actual":503,"label":"health"}`
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Label != "health" || r.ActualString() != "503" {
		t.Fatalf("unexpected record %+v", r)
	}
	if (Result{Label: "x"}).IsZero() {
		t.Fatal("a labelled record is not the zero record")
	}
}
