package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"

	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"charm.land/log/v2"
	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"

	"github.com/Gaurav-Gosain/asrtdash/poller"
	"github.com/Gaurav-Gosain/asrtdash/results"
)

const appName = "asrtdash"

// Tokyo Night palette shared with browser.
var (
	subtle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	title   = lipgloss.NewStyle().Foreground(lipgloss.Color("#1a1b26")).Background(lipgloss.Color("#7aa2f7")).Bold(true).Padding(0, 1)
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))
	statNum = lipgloss.NewStyle().Foreground(lipgloss.Color("#7dcfff")).Bold(true)
	doneTag = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")).Bold(true)
)

// headerHeight is the number of lines above the result table.
const headerHeight = 9

type pollEventMsg poller.Event

type model struct {
	store   *results.ResultStore
	source  string
	spinner spinner.Model
	gauge   progress.Model
	browser browserModel

	fetching bool
	polls    int
	lastErr  error
	stats    results.Stats
	width    int
	height   int
}

func newModel(store *results.ResultStore, source string) model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#7aa2f7"))),
	)

	g := progress.New(
		progress.WithColors(lipgloss.Color("#9ece6a"), lipgloss.Color("#f7768e")),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)

	m := model{
		store:   store,
		source:  source,
		spinner: s,
		gauge:   g,
		browser: newBrowserModel(store),
		width:   80,
		height:  24,
	}
	m.browser.SetSize(m.height-headerHeight, m.width, m.height)
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

// refresh pulls the current snapshot and summary from the store.
func (m *model) refresh() {
	m.stats = m.store.Stats()
	m.browser.SetRows(m.store.Snapshot(), m.stats.Total)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.gauge.SetWidth(min(max(msg.Width-40, 10), 40))
		m.browser.SetSize(max(1, msg.Height-headerHeight), msg.Width, msg.Height)
		cmd := m.browser.rerender()
		return m, cmd

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if msg.String() == "q" && !m.browser.Capturing() {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pollEventMsg:
		m.handlePollEvent(poller.Event(msg))
		return m, nil
	}

	var cmd tea.Cmd
	m.browser, cmd = m.browser.Update(msg)
	return m, cmd
}

func (m *model) handlePollEvent(e poller.Event) {
	switch e.Type {
	case poller.EventFetching:
		m.fetching = true
	case poller.EventDone:
		m.fetching = false
		m.polls++
		m.lastErr = nil
		m.refresh()
	case poller.EventError:
		m.fetching = false
		m.polls++
		m.lastErr = e.Err
	}
}

func (m model) View() tea.View {
	var s string
	if m.browser.state == statePager {
		s = m.browser.pager.view()
	} else {
		s = m.headerView() + m.browser.listView()
	}
	v := tea.NewView(s)
	v.AltScreen = true
	return v
}

func (m model) headerView() string {
	var lines []string

	lines = append(lines, "")
	head := "  " + title.Render(appName) + " " + subtle.Render(ansi.Truncate(m.source, max(10, m.width-20), "…"))
	lines = append(lines, head)
	lines = append(lines, "")

	// Status line
	var status string
	switch {
	case m.fetching:
		status = m.spinner.View() + " " + subtle.Render("fetching")
	case m.lastErr != nil:
		errMsg := ansi.Truncate(m.lastErr.Error(), max(20, m.width-30), "…")
		status = red.Render("✗ ") + subtle.Render(errMsg)
	case m.polls > 0:
		status = doneTag.Render("✓") + " " + subtle.Render("up to date")
	default:
		status = subtle.Render("waiting for first poll")
	}
	lines = append(lines, "  "+status)

	// Summary widgets
	latest := m.stats.LatestUpdate
	if latest == "" {
		latest = "never"
	}
	summary := "  " + subtle.Render("last update ") + statNum.Render(latest) +
		subtle.Render("  •  total ") + statNum.Render(fmt.Sprintf("%d", m.stats.Total)) +
		subtle.Render("  •  latest batch ") + green.Render(fmt.Sprintf("%d ok", m.stats.BatchOK))
	if m.stats.BatchFailed > 0 {
		summary += subtle.Render(" / ") + red.Render(fmt.Sprintf("%d failed", m.stats.BatchFailed))
	}
	lines = append(lines, summary)

	// Error-rate gauges
	lines = append(lines, m.gaugeLine("hour", m.stats.LastHour))
	lines = append(lines, m.gaugeLine("day ", m.stats.LastDay))
	lines = append(lines, m.gaugeLine("week", m.stats.LastWeek))
	lines = append(lines, "")

	return strings.Join(lines, "\n") + "\n"
}

func (m model) gaugeLine(label string, r results.Rate) string {
	v, ok := r.Value()
	line := "  " + subtle.Render("errors/"+label+" ") + m.gauge.ViewAs(v) + " "
	if !ok {
		return line + subtle.Render("n/a")
	}
	return line + statNum.Render(r.String()) + subtle.Render(fmt.Sprintf(" (%d/%d)", r.Errors, r.Total))
}

// IsTTY reports whether stderr is connected to a terminal.
func IsTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Run polls in the background and shows the live dashboard until the user
// quits or ctx is cancelled. Without a TTY it logs each poll instead.
func Run(ctx context.Context, store *results.ResultStore, opts poller.Options, logger *zap.Logger) error {
	if !IsTTY() {
		return runWithLogs(ctx, store, opts, logger)
	}

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(newModel(store, opts.URL), tea.WithContext(ctx))

	// Mute Go's standard logger and stderr while the alt screen is up so
	// library output cannot corrupt it. Restore after.
	origStdlogOutput := stdlog.Writer()
	stdlog.SetOutput(io.Discard)
	origStderr := os.Stderr
	devNull, _ := os.Open(os.DevNull)
	if devNull != nil {
		os.Stderr = devNull
	}

	next := opts.OnEvent
	opts.OnEvent = func(e poller.Event) {
		if next != nil {
			next(e)
		}
		prog.Send(pollEventMsg(e))
	}
	p := poller.New(store, opts, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(pctx)
	}()

	_, err := prog.Run()
	cancel()
	<-done

	os.Stderr = origStderr
	stdlog.SetOutput(origStdlogOutput)
	if devNull != nil {
		_ = devNull.Close()
	}

	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func runWithLogs(ctx context.Context, store *results.ResultStore, opts poller.Options, logger *zap.Logger) error {
	console := log.New(os.Stderr)
	console.SetLevel(log.InfoLevel)

	console.Info("Starting dashboard", "url", opts.URL, "interval", opts.Interval)

	next := opts.OnEvent
	opts.OnEvent = func(e poller.Event) {
		if next != nil {
			next(e)
		}
		switch e.Type {
		case poller.EventFetching:
			console.Debug("Fetching", "url", e.URL)
		case poller.EventDone:
			console.Info("Updated",
				"batch", e.Batch,
				"new", e.Added,
				"total", e.Stats.Total,
				"failed", e.Stats.BatchFailed,
				"last_update", e.Stats.LatestUpdate,
				"errors_hour", e.Stats.LastHour,
				"errors_day", e.Stats.LastDay,
				"errors_week", e.Stats.LastWeek,
			)
		case poller.EventError:
			console.Error("Poll failed", "url", e.URL, "err", e.Err)
		}
	}

	poller.New(store, opts, logger).Run(ctx)
	console.Info("Stopped", "total", store.TotalCount())
	return nil
}
