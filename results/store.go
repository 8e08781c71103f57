package results

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// DisplayLayout mirrors a browser's default locale rendering of a date.
const DisplayLayout = "1/2/2006, 3:04:05 PM"

// ResultStore is a thread-safe, append-only history of results plus the most
// recently ingested batch.
type ResultStore struct {
	mu      sync.RWMutex
	all     []entry
	seen    map[string]bool
	latest  []Result
	maxTime time.Time
	hasMax  bool
	now     func() time.Time
}

// entry is a stored result with its timestamp parsed once at ingest.
type entry struct {
	Result
	at    time.Time
	timed bool
}

// Option configures a ResultStore.
type Option func(*ResultStore)

// WithClock replaces the wall clock used by the windowed queries.
func WithClock(now func() time.Time) Option {
	return func(rs *ResultStore) {
		if now != nil {
			rs.now = now
		}
	}
}

func NewResultStore(opts ...Option) *ResultStore {
	rs := &ResultStore{
		seen: make(map[string]bool),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// Ingest adds every result not seen before to the history, replaces the
// latest batch with items as given and raises the latest timestamp. It
// returns how many results were new. A nil batch is ignored.
func (rs *ResultStore) Ingest(items []Result) int {
	if items == nil {
		return 0
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	added := 0
	for _, r := range items {
		key := r.Key()
		if rs.seen[key] {
			continue
		}
		rs.seen[key] = true
		if r.OK != nil {
			r.OK = Bool(*r.OK)
		}
		at, timed := r.Time()
		rs.all = append(rs.all, entry{Result: r, at: at, timed: timed})
		added++
		rs.raise(at, timed)
	}

	rs.latest = slices.Clone(items)
	if rs.latest == nil {
		rs.latest = []Result{}
	}

	return added
}

// raise moves the newest instant forward. Duplicates never need it: their
// key carries the timestamp already seen.
func (rs *ResultStore) raise(at time.Time, timed bool) {
	if timed && (!rs.hasMax || at.After(rs.maxTime)) {
		rs.maxTime = at
		rs.hasMax = true
	}
}

// Snapshot returns a copy of the latest batch, stably sorted by URL.
func (rs *ResultStore) Snapshot() []Result {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.snapshot()
}

func (rs *ResultStore) snapshot() []Result {
	out := make([]Result, len(rs.latest))
	copy(out, rs.latest)
	slices.SortStableFunc(out, func(a, b Result) int {
		return strings.Compare(a.URL, b.URL)
	})
	return out
}

// GetByIndex returns the result at index in ingestion order, or the zero
// Result when index is out of range.
func (rs *ResultStore) GetByIndex(index int) Result {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	if index < 0 || index >= len(rs.all) {
		return Result{}
	}
	return rs.all[index].Result
}

// Results returns a copy of the full history in ingestion order.
func (rs *ResultStore) Results() []Result {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]Result, len(rs.all))
	for i, e := range rs.all {
		out[i] = e.Result
	}
	return out
}

// LatestUpdate returns the newest timestamp seen so far.
func (rs *ResultStore) LatestUpdate() (time.Time, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.maxTime, rs.hasMax
}

// LatestUpdateDisplay renders the newest timestamp in local time, or "" when
// nothing has been ingested.
func (rs *ResultStore) LatestUpdateDisplay() string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.latestDisplay()
}

func (rs *ResultStore) latestDisplay() string {
	if !rs.hasMax {
		return ""
	}
	return rs.maxTime.Local().Format(DisplayLayout)
}

// TotalCount returns the number of distinct results ever ingested.
func (rs *ResultStore) TotalCount() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.all)
}

// Counts splits the latest batch into passed and failed results.
func (rs *ResultStore) Counts() (ok, failed int) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.counts()
}

func (rs *ResultStore) counts() (ok, failed int) {
	for _, r := range rs.latest {
		if r.Passed() {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

// ErrorRate returns the share of failed results among those younger than
// window. Results with unparseable timestamps never fall in a window.
func (rs *ResultStore) ErrorRate(window time.Duration) Rate {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.errorRate(rs.now(), window)
}

func (rs *ResultStore) ErrorRateLastHour() Rate { return rs.ErrorRate(Hour) }
func (rs *ResultStore) ErrorRateLastDay() Rate  { return rs.ErrorRate(Day) }
func (rs *ResultStore) ErrorRateLastWeek() Rate { return rs.ErrorRate(Week) }

func (rs *ResultStore) errorRate(now time.Time, window time.Duration) Rate {
	var rate Rate
	for _, e := range rs.all {
		if !e.timed || now.Sub(e.at) >= window {
			continue
		}
		rate.Total++
		if !e.Passed() {
			rate.Errors++
		}
	}
	return rate
}

// Stats reads every summary value under one lock.
func (rs *ResultStore) Stats() Stats {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	now := rs.now()
	ok, failed := rs.counts()
	return Stats{
		LatestUpdate: rs.latestDisplay(),
		Total:        len(rs.all),
		BatchOK:      ok,
		BatchFailed:  failed,
		LastHour:     rs.errorRate(now, Hour),
		LastDay:      rs.errorRate(now, Day),
		LastWeek:     rs.errorRate(now, Week),
	}
}
