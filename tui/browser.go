package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/glamour/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/Gaurav-Gosain/asrtdash/output"
	"github.com/Gaurav-Gosain/asrtdash/results"
)

// glamourRenderedMsg carries a finished detail render. history is the store
// size the markdown was built from.
type glamourRenderedMsg struct {
	key      string
	history  int
	rendered string
}

type browserState int

const (
	stateList browserState = iota
	statePager
)

// --- Styles (Tokyo Night palette) ---

var (
	tnFg      = lipgloss.Color("#a9b1d6")
	tnBlue    = lipgloss.Color("#7aa2f7")
	tnPurple  = lipgloss.Color("#bb9af7")
	tnCyan    = lipgloss.Color("#7dcfff")
	tnGreen   = lipgloss.Color("#9ece6a")
	tnRed     = lipgloss.Color("#f7768e")
	tnComment = lipgloss.Color("#565f89")
	tnDark    = lipgloss.Color("#1a1b26")
	tnSurface = lipgloss.Color("#292e42")
	tnGutter  = lipgloss.Color("#3b4261")

	browserLogoStyle = lipgloss.NewStyle().
				Foreground(tnDark).
				Background(tnBlue).
				Bold(true).
				Padding(0, 1)

	browserDimStyle    = lipgloss.NewStyle().Foreground(tnComment)
	browserSubtleStyle = lipgloss.NewStyle().Foreground(tnGutter)
	columnHeaderStyle  = lipgloss.NewStyle().Foreground(tnCyan).Bold(true)
	filterPromptStyle  = lipgloss.NewStyle().Foreground(tnBlue)

	selectedGutter = lipgloss.NewStyle().Foreground(tnBlue).SetString("│")
	normalGutter   = lipgloss.NewStyle().Foreground(tnGutter).SetString(" ")

	selectedRowStyle = lipgloss.NewStyle().Foreground(tnBlue).Bold(true)
	normalRowStyle   = lipgloss.NewStyle().Foreground(tnFg)
	failedRowStyle   = lipgloss.NewStyle().Foreground(tnRed)

	okBadge   = lipgloss.NewStyle().Foreground(tnGreen).Render("✓")
	failBadge = lipgloss.NewStyle().Foreground(tnRed).Render("✗")
)

const (
	tableChrome = 4 // column header + separator + blank + help
	listHPad    = 4
	resultColW  = 3
	expectColW  = 10
	timeColW    = 14
)

// browserModel is the result table with its URL filter, plus the detail
// pager it opens. Rows are replaced on every poll; renders are cached per
// record until the history grows.
type browserModel struct {
	state  browserState
	store  *results.ResultStore
	rows   []results.Result
	width  int
	height int

	filtered  []int
	cursor    int
	offset    int
	filter    textinput.Model
	filtering bool
	history   int
	rendered  map[string]string
	pager     pagerModel
	pagerKey  string
}

func newBrowserModel(store *results.ResultStore) browserModel {
	fi := textinput.New()
	fi.Prompt = "Filter: "
	st := fi.Styles()
	st.Focused.Prompt = filterPromptStyle
	st.Blurred.Prompt = filterPromptStyle
	fi.SetStyles(st)

	return browserModel{
		state:    stateList,
		store:    store,
		filter:   fi,
		rendered: make(map[string]string),
		pager:    newPagerModel(),
	}
}

// SetRows replaces the table contents with a fresh snapshot. history is the
// store's total count; when it moves, cached detail renders are dropped since
// their recent-runs lists are out of date. The open pager keeps its record.
func (m *browserModel) SetRows(rows []results.Result, history int) {
	m.rows = rows
	if history != m.history {
		m.history = history
		m.rendered = make(map[string]string)
	}
	m.applyFilter()
	m.moveTo(m.cursor)
}

// SetSize sets the area available to the table. The pager always uses the
// full terminal.
func (m *browserModel) SetSize(tableHeight, width, fullHeight int) {
	m.width = width
	m.height = tableHeight
	m.pager.setSize(width, fullHeight)
	m.moveTo(m.cursor)
}

// Selected returns the record under the cursor.
func (m browserModel) Selected() (results.Result, bool) {
	if len(m.filtered) == 0 {
		return results.Result{}, false
	}
	return m.rows[m.filtered[m.cursor]], true
}

// Capturing reports whether key presses belong to a text input.
func (m browserModel) Capturing() bool {
	return m.filtering || (m.state == statePager && m.pager.typing)
}

func (m browserModel) Update(msg tea.Msg) (browserModel, tea.Cmd) {
	if msg, ok := msg.(glamourRenderedMsg); ok {
		if msg.history == m.history {
			m.rendered[msg.key] = msg.rendered
		}
		if m.state == statePager && m.pagerKey == msg.key {
			m.pager.setRendered(msg.rendered)
		}
		return m, nil
	}

	if m.state == statePager {
		var (
			cmd  tea.Cmd
			back bool
		)
		m.pager, cmd, back = m.pager.update(msg)
		if back {
			m.state = stateList
			m.pagerKey = ""
		}
		return m, cmd
	}

	if m.filtering {
		return m.updateFilter(msg)
	}

	if msg, ok := msg.(tea.KeyPressMsg); ok {
		switch msg.String() {
		case "j", "down":
			m.moveTo(m.cursor + 1)
		case "k", "up":
			m.moveTo(m.cursor - 1)
		case "g", "home":
			m.moveTo(0)
		case "G", "end":
			m.moveTo(len(m.filtered) - 1)
		case "enter", "right", "l":
			if r, ok := m.Selected(); ok {
				return m, m.openRecord(r)
			}
		case "/":
			m.filtering = true
			m.filter.CursorEnd()
			return m, m.filter.Focus()
		}
	}
	return m, nil
}

func (m browserModel) updateFilter(msg tea.Msg) (browserModel, tea.Cmd) {
	if k, ok := msg.(tea.KeyPressMsg); ok {
		switch k.String() {
		case "esc":
			m.filtering = false
			m.filter.Blur()
			m.filter.SetValue("")
			m.applyFilter()
			m.moveTo(0)
			return m, nil
		case "enter":
			m.filtering = false
			m.filter.Blur()
			if len(m.filtered) == 1 {
				return m, m.openRecord(m.rows[m.filtered[0]])
			}
			return m, nil
		case "down":
			m.moveTo(m.cursor + 1)
			return m, nil
		case "up":
			m.moveTo(m.cursor - 1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	prev := m.filter.Value()
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != prev {
		m.applyFilter()
		m.moveTo(0)
	}
	return m, cmd
}

func (m *browserModel) applyFilter() {
	match := containsFold(m.filter.Value())
	m.filtered = m.filtered[:0]
	for i, r := range m.rows {
		if match(r.URL) {
			m.filtered = append(m.filtered, i)
		}
	}
}

// moveTo places the cursor on row i, clamped, and scrolls it into view.
func (m *browserModel) moveTo(i int) {
	m.cursor = max(0, min(i, len(m.filtered)-1))
	pp := m.perPage()
	switch {
	case m.cursor < m.offset:
		m.offset = m.cursor
	case m.cursor >= m.offset+pp:
		m.offset = m.cursor - pp + 1
	}
}

func (m browserModel) perPage() int {
	return max(1, m.height-tableChrome)
}

func (m *browserModel) openRecord(r results.Result) tea.Cmd {
	m.state = statePager
	m.pagerKey = r.Key()
	cached := m.rendered[m.pagerKey]
	m.pager.open(r, cached)
	if cached != "" {
		return nil
	}
	return m.renderCmd(r)
}

func (m browserModel) renderCmd(r results.Result) tea.Cmd {
	var history []results.Result
	if m.store != nil {
		history = m.store.Results()
	}
	md := output.RecordMarkdown(r, history)
	key, size, w := r.Key(), m.history, m.width
	return func() tea.Msg {
		msg := glamourRenderedMsg{key: key, history: size, rendered: md}
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("tokyo-night"),
			glamour.WithWordWrap(max(20, w-4)),
		)
		if err != nil {
			return msg
		}
		if out, err := tr.Render(md); err == nil {
			msg.rendered = out
		}
		return msg
	}
}

// rerender drops cached renders after a resize and re-renders the open record.
func (m *browserModel) rerender() tea.Cmd {
	m.rendered = make(map[string]string)
	if m.state != statePager {
		return nil
	}
	m.pager.setRendered("")
	return m.renderCmd(m.pager.record)
}

func (m browserModel) View() string {
	if m.state == statePager {
		return m.pager.view()
	}
	return m.listView()
}

func (m browserModel) listView() string {
	var b strings.Builder

	urlW := max(10, m.width-listHPad-resultColW-expectColW-timeColW-6)

	header := fmt.Sprintf("%-*s %-*s %-*s %s",
		resultColW, "", expectColW, "Expected", urlW, "URL", "Time")
	b.WriteString("  ")
	b.WriteString(columnHeaderStyle.Render(header))
	b.WriteString("\n  ")
	b.WriteString(browserSubtleStyle.Render(strings.Repeat("─", max(0, m.width-listHPad))))
	b.WriteString("\n")

	end := min(m.offset+m.perPage(), len(m.filtered))

	if len(m.filtered) == 0 {
		msg := "Waiting for results..."
		if m.filter.Value() != "" {
			msg = "No results match."
		}
		b.WriteString("  ")
		b.WriteString(browserDimStyle.Render(msg))
		b.WriteString("\n")
	}

	for i := m.offset; i < end; i++ {
		r := m.rows[m.filtered[i]]

		gut, style, badge := normalGutter, normalRowStyle, okBadge
		if !r.Passed() {
			style, badge = failedRowStyle, failBadge
		}
		if i == m.cursor {
			gut, style = selectedGutter, selectedRowStyle
		}

		row := fmt.Sprintf("%-*s %-*s %s",
			expectColW, ansi.Truncate(r.ExpectationString(), expectColW, "…"),
			urlW, ansi.Truncate(r.URL, urlW, "…"),
			ansi.Truncate(r.TimeOfDay(), timeColW, "…"))
		fmt.Fprintf(&b, "%s  %s %s\n", gut, badge, style.Render(row))
	}

	rowLines := max(1, end-m.offset)
	if pad := m.height - tableChrome - rowLines; pad > 0 {
		b.WriteString(strings.Repeat("\n", pad))
	}

	b.WriteString("\n")
	if m.filtering {
		b.WriteString("  ")
		b.WriteString(m.filter.View())
		b.WriteString(browserDimStyle.Render("  •  enter confirm  •  esc cancel"))
	} else {
		help := "  ↑↓/jk navigate  •  enter details  •  / filter  •  q quit"
		if v := m.filter.Value(); v != "" {
			help += fmt.Sprintf("  •  filtered: %q", v)
		}
		b.WriteString(browserDimStyle.Render(help))
	}

	return b.String()
}
