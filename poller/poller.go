package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/Gaurav-Gosain/asrtdash/results"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// Event types emitted while polling.
const (
	EventFetching = "fetching"
	EventDone     = "done"
	EventError    = "error"
)

// Event is emitted around every poll so renderers know when to redraw.
type Event struct {
	Type  string
	URL   string
	Batch int           // results in the fetched batch (done only)
	Added int           // results not seen before (done only)
	Stats results.Stats // store summary after ingest (done only)
	Err   error         // only for error events
}

// Options configures the poller.
type Options struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
	OnEvent  func(Event) // optional progress callback
}

func (o *Options) emit(e Event) {
	if o.OnEvent != nil {
		o.OnEvent(e)
	}
}

// Poller fetches the result batch on an interval and feeds it to a store.
type Poller struct {
	store  *results.ResultStore
	opts   Options
	logger *zap.Logger
}

func New(store *results.ResultStore, opts Options, logger *zap.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{store: store, opts: opts, logger: logger}
}

// Run polls once immediately, then on every tick until ctx is cancelled.
// Polls never overlap: the next one starts only after the previous returns.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.opts.Interval)
	defer t.Stop()

	p.logger.Info("poller_started",
		zap.String("url", p.opts.URL),
		zap.Duration("interval", p.opts.Interval),
	)

	_ = p.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller_stopped")
			return
		case <-t.C:
			_ = p.Poll(ctx)
		}
	}
}

// Poll fetches one batch and ingests it. Failures leave the store untouched;
// they are logged, emitted as an error event and returned.
func (p *Poller) Poll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.opts.emit(Event{Type: EventFetching, URL: p.opts.URL})

	batch, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("poll_failed", zap.String("url", p.opts.URL), zap.Error(err))
		p.opts.emit(Event{Type: EventError, URL: p.opts.URL, Err: err})
		return err
	}

	added := p.store.Ingest(batch)
	stats := p.store.Stats()

	p.logger.Debug("poll_done",
		zap.String("url", p.opts.URL),
		zap.Int("batch", len(batch)),
		zap.Int("added", added),
		zap.Int("total", stats.Total),
	)
	p.opts.emit(Event{
		Type:  EventDone,
		URL:   p.opts.URL,
		Batch: len(batch),
		Added: added,
		Stats: stats,
	})
	return nil
}

func (p *Poller) fetch(ctx context.Context) ([]results.Result, error) {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(p.opts.Timeout)

	var (
		batch    []results.Result
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
		r.Headers.Set("Cache-Control", "no-cache")
	})

	c.OnResponse(func(r *colly.Response) {
		if err := json.Unmarshal(r.Body, &batch); err != nil {
			fetchErr = fmt.Errorf("decode batch: %w", err)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("request failed (status %d): %w", r.StatusCode, err)
	})

	if err := c.Visit(p.opts.URL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("poll cancelled: %w", ctx.Err())
	}
	return batch, nil
}
