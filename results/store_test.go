package results

import (
	"math"
	"testing"
	"time"
)

var testNow = time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) string {
	return testNow.Add(-d).Format(time.RFC3339)
}

func res(url, ts string, ok bool) Result {
	return Result{URL: url, Timestamp: ts, OK: Bool(ok), Expectation: float64(200)}
}

func newTestStore() *ResultStore {
	return NewResultStore(WithClock(func() time.Time { return testNow }))
}

func TestResultStore_EmptyState(t *testing.T) {
	s := newTestStore()

	if n := s.TotalCount(); n != 0 {
		t.Fatalf("TotalCount=%d want 0", n)
	}
	if snap := s.Snapshot(); len(snap) != 0 {
		t.Fatalf("Snapshot=%v want empty", snap)
	}
	if got := s.LatestUpdateDisplay(); got != "" {
		t.Fatalf("LatestUpdateDisplay=%q want empty", got)
	}
	if got := s.GetByIndex(0); !got.IsZero() {
		t.Fatalf("GetByIndex(0)=%+v want zero", got)
	}
}

func TestResultStore_IngestDedupIsIdempotent(t *testing.T) {
	s := newTestStore()
	batch := []Result{
		res("https://a", at(time.Minute), true),
		res("https://b", at(time.Minute), false),
		res("https://a", at(time.Minute), false), // same key as the first
	}

	if added := s.Ingest(batch); added != 2 {
		t.Fatalf("first Ingest added %d want 2", added)
	}
	if added := s.Ingest(batch); added != 0 {
		t.Fatalf("second Ingest added %d want 0", added)
	}
	if n := s.TotalCount(); n != 2 {
		t.Fatalf("TotalCount=%d want 2", n)
	}

	// first write wins
	if got := s.GetByIndex(0); !got.Passed() {
		t.Fatalf("duplicate overwrote the first record: %+v", got)
	}
}

func TestResultStore_AppendOnly(t *testing.T) {
	s := newTestStore()
	batches := [][]Result{
		{res("https://a", at(3*time.Minute), true)},
		{res("https://a", at(2*time.Minute), false), res("https://a", at(3*time.Minute), false)},
		{},
		{res("https://b", at(time.Minute), true)},
	}

	var history []Result
	prev := 0
	for i, b := range batches {
		s.Ingest(b)
		n := s.TotalCount()
		if n < prev {
			t.Fatalf("batch %d: TotalCount shrank from %d to %d", i, prev, n)
		}
		for j, r := range history {
			got := s.GetByIndex(j)
			if got.Key() != r.Key() || got.Passed() != r.Passed() {
				t.Fatalf("batch %d: record %d changed from %+v to %+v", i, j, r, got)
			}
		}
		history = s.Results()
		prev = n
	}
	if prev != 3 {
		t.Fatalf("TotalCount=%d want 3", prev)
	}
}

func TestResultStore_StoredRecordIsNotAliased(t *testing.T) {
	s := newTestStore()
	r := res("https://a", at(time.Minute), true)
	s.Ingest([]Result{r})

	*r.OK = false
	if !s.GetByIndex(0).Passed() {
		t.Fatalf("mutating the caller's record changed the stored one")
	}
}

func TestResultStore_LatestBatchIsReplaced(t *testing.T) {
	s := newTestStore()
	b1 := []Result{res("https://a", at(time.Minute), true), res("https://b", at(time.Minute), true)}
	b2 := []Result{res("https://c", at(time.Minute), false), res("https://a", at(time.Minute), true)}

	s.Ingest(b1)
	s.Ingest(b2)

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot len=%d want 2: %+v", len(snap), snap)
	}
	// b2 holds a duplicate of b1[0]; it still shows in the latest batch.
	if snap[0].URL != "https://a" || snap[1].URL != "https://c" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if n := s.TotalCount(); n != 3 {
		t.Fatalf("TotalCount=%d want 3", n)
	}
}

func TestResultStore_NilBatchIsNoop(t *testing.T) {
	s := newTestStore()
	s.Ingest([]Result{res("https://a", at(time.Minute), true)})
	s.Ingest(nil)

	if snap := s.Snapshot(); len(snap) != 1 {
		t.Fatalf("nil batch replaced latest batch: %+v", snap)
	}

	s.Ingest([]Result{})
	if snap := s.Snapshot(); len(snap) != 0 {
		t.Fatalf("empty batch should clear latest batch, got %+v", snap)
	}
	if n := s.TotalCount(); n != 1 {
		t.Fatalf("TotalCount=%d want 1", n)
	}
}

func TestResultStore_SnapshotSortIsStable(t *testing.T) {
	s := newTestStore()
	batch := []Result{
		res("https://c", at(1*time.Minute), true),
		res("https://a", at(2*time.Minute), true),
		res("https://b", at(3*time.Minute), true),
		res("https://a", at(4*time.Minute), false),
		res("https://a", at(5*time.Minute), true),
	}
	s.Ingest(batch)

	snap := s.Snapshot()
	wantURLs := []string{"https://a", "https://a", "https://a", "https://b", "https://c"}
	wantTS := []string{at(2 * time.Minute), at(4 * time.Minute), at(5 * time.Minute)}
	for i, u := range wantURLs {
		if snap[i].URL != u {
			t.Fatalf("snap[%d].URL=%q want %q", i, snap[i].URL, u)
		}
	}
	for i, ts := range wantTS {
		if snap[i].Timestamp != ts {
			t.Fatalf("equal URLs reordered: snap[%d].Timestamp=%q want %q", i, snap[i].Timestamp, ts)
		}
	}

	// Sorting is applied to a copy; ingestion order is untouched.
	if got := s.GetByIndex(0); got.URL != "https://c" {
		t.Fatalf("GetByIndex(0).URL=%q want https://c", got.URL)
	}
}

func TestResultStore_LatestInstantIsMonotonic(t *testing.T) {
	s := newTestStore()
	newest := testNow.Add(-time.Minute)

	s.Ingest([]Result{res("https://a", newest.Format(time.RFC3339), true)})
	want := newest.Local().Format(DisplayLayout)
	if got := s.LatestUpdateDisplay(); got != want {
		t.Fatalf("LatestUpdateDisplay=%q want %q", got, want)
	}

	s.Ingest([]Result{res("https://a", at(time.Hour), true), res("https://b", "not a time", true)})
	if got := s.LatestUpdateDisplay(); got != want {
		t.Fatalf("older batch moved latest instant: %q want %q", got, want)
	}
	if ts, ok := s.LatestUpdate(); !ok || !ts.Equal(newest) {
		t.Fatalf("LatestUpdate=%v,%v want %v", ts, ok, newest)
	}
}

func TestResultStore_UnparseableTimestampsAreIgnored(t *testing.T) {
	s := newTestStore()
	s.Ingest([]Result{res("https://a", "garbage", false)})

	if n := s.TotalCount(); n != 1 {
		t.Fatalf("TotalCount=%d want 1", n)
	}
	if got := s.LatestUpdateDisplay(); got != "" {
		t.Fatalf("LatestUpdateDisplay=%q want empty", got)
	}
	if r := s.ErrorRate(Week); r.Total != 0 {
		t.Fatalf("unparseable timestamp counted in window: %+v", r)
	}
}

func TestResultStore_GetByIndexOutOfRange(t *testing.T) {
	s := newTestStore()
	s.Ingest([]Result{res("https://a", at(time.Minute), true)})

	for _, i := range []int{-1, s.TotalCount(), 100} {
		if got := s.GetByIndex(i); !got.IsZero() {
			t.Fatalf("GetByIndex(%d)=%+v want zero", i, got)
		}
	}
}

func TestResultStore_ErrorRateWindows(t *testing.T) {
	s := newTestStore()
	s.Ingest([]Result{
		res("https://a", at(30*time.Minute), false),
		res("https://b", at(2*time.Hour), true),
		res("https://c", at(90*time.Minute), false),
	})

	cases := []struct {
		name   string
		rate   Rate
		want   float64
		total  int
		errors int
	}{
		{"hour", s.ErrorRate(Hour), 1.0, 1, 1},
		{"hour-named", s.ErrorRateLastHour(), 1.0, 1, 1},
		{"day", s.ErrorRateLastDay(), 2.0 / 3.0, 3, 2},
		{"week", s.ErrorRateLastWeek(), 2.0 / 3.0, 3, 2},
	}
	for _, c := range cases {
		v, ok := c.rate.Value()
		if !ok {
			t.Fatalf("%s: expected data in window", c.name)
		}
		if math.Abs(v-c.want) > 1e-9 {
			t.Fatalf("%s: rate=%v want %v", c.name, v, c.want)
		}
		if c.rate.Total != c.total || c.rate.Errors != c.errors {
			t.Fatalf("%s: got %+v want %d/%d", c.name, c.rate, c.errors, c.total)
		}
	}
}

func TestResultStore_ErrorRateWindowIsExclusive(t *testing.T) {
	s := newTestStore()
	s.Ingest([]Result{res("https://a", at(time.Hour), false)})

	if r := s.ErrorRate(Hour); r.Total != 0 {
		t.Fatalf("record exactly one window old should be excluded, got %+v", r)
	}
}

func TestResultStore_ErrorRateWithoutData(t *testing.T) {
	s := newTestStore()
	s.Ingest([]Result{res("https://a", at(48*time.Hour), false)})

	r := s.ErrorRateLastHour()
	if _, ok := r.Value(); ok {
		t.Fatalf("expected no data in window, got %+v", r)
	}
	if !math.IsNaN(r.Fraction()) {
		t.Fatalf("Fraction()=%v want NaN for 0/0", r.Fraction())
	}
	if r.String() != "n/a" {
		t.Fatalf("String()=%q want n/a", r.String())
	}
}

func TestResultStore_MissingOKCountsAsFailure(t *testing.T) {
	s := newTestStore()
	s.Ingest([]Result{{URL: "https://a", Timestamp: at(time.Minute)}})

	if r := s.ErrorRateLastHour(); r.Errors != 1 || r.Total != 1 {
		t.Fatalf("absent ok should count as failure, got %+v", r)
	}
	if ok, failed := s.Counts(); ok != 0 || failed != 1 {
		t.Fatalf("Counts=%d,%d want 0,1", ok, failed)
	}
}

func TestResultStore_Stats(t *testing.T) {
	s := newTestStore()
	s.Ingest([]Result{
		res("https://a", at(10*time.Minute), true),
		res("https://b", at(10*time.Minute), false),
		res("https://c", at(3*24*time.Hour), false),
	})

	st := s.Stats()
	if st.Total != 3 || st.BatchOK != 1 || st.BatchFailed != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.LastHour.Total != 2 || st.LastDay.Total != 2 || st.LastWeek.Total != 3 {
		t.Fatalf("unexpected windows %+v", st)
	}
	if st.LatestUpdate != s.LatestUpdateDisplay() {
		t.Fatalf("LatestUpdate=%q want %q", st.LatestUpdate, s.LatestUpdateDisplay())
	}
}

func TestResultStore_InstantParsedAtIngest(t *testing.T) {
	rs := newTestStore()
	rs.Ingest([]Result{
		res("https://a", at(time.Minute), true),
		res("https://b", "not a time", false),
	})

	if !rs.all[0].timed || !rs.all[0].at.Equal(testNow.Add(-time.Minute)) {
		t.Fatalf("first entry instant not kept: %+v", rs.all[0])
	}
	if rs.all[1].timed {
		t.Fatalf("unparseable timestamp marked as timed: %+v", rs.all[1])
	}

	// Windows read the kept instant, so the unparseable record never counts.
	if r := rs.ErrorRateLastHour(); r.Errors != 0 || r.Total != 1 {
		t.Fatalf("hour rate = %+v", r)
	}
	if got := rs.Results(); len(got) != 2 || got[1].Timestamp != "not a time" {
		t.Fatalf("Results() = %+v", got)
	}
}
