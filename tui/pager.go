package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/Gaurav-Gosain/asrtdash/output"
	"github.com/Gaurav-Gosain/asrtdash/results"
)

const pagerBarHeight = 1

var (
	markGutter        = lipgloss.NewStyle().Foreground(tnPurple).Render("▍")
	currentMarkGutter = lipgloss.NewStyle().Foreground(tnBlue).Bold(true).Render("▍")

	barNoteStyle  = lipgloss.NewStyle().Foreground(tnFg).Background(tnDark)
	barHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#c0caf5")).Background(tnSurface)
	barMarkStyle  = lipgloss.NewStyle().Foreground(tnPurple).Background(tnDark).Bold(true)
	barFailStyle  = lipgloss.NewStyle().Foreground(tnRed).Background(tnDark).Bold(true)
	barInputStyle = lipgloss.NewStyle().Background(tnDark)
)

// markKind says what the gutter marks in the detail view point at.
type markKind int

const (
	marksNone markKind = iota
	marksSearch
	marksFailures
)

// lineMarks is an ordered set of rendered line numbers with a cursor.
type lineMarks struct {
	kind  markKind
	lines []int
	cur   int
}

// findLines returns the lines of rendered whose plain text satisfies match.
func findLines(rendered string, match func(plain string) bool) []int {
	var out []int
	for i, line := range strings.Split(ansi.Strip(rendered), "\n") {
		if match(line) {
			out = append(out, i)
		}
	}
	return out
}

func containsFold(query string) func(string) bool {
	q := strings.ToLower(query)
	return func(s string) bool { return strings.Contains(strings.ToLower(s), q) }
}

func isFailedRun(plain string) bool {
	return strings.Contains(plain, output.RunFailedMark)
}

// step moves the cursor by delta, wrapping around, and returns the line it
// lands on.
func (lm *lineMarks) step(delta int) (int, bool) {
	n := len(lm.lines)
	if n == 0 {
		return 0, false
	}
	lm.cur = ((lm.cur+delta)%n + n) % n
	return lm.lines[lm.cur], true
}

// decorate adds a one-column gutter to every line, a bar on marked ones.
func (lm lineMarks) decorate(rendered string) string {
	if len(lm.lines) == 0 {
		return rendered
	}
	lines := strings.Split(rendered, "\n")
	gutters := make([]string, len(lines))
	for i := range gutters {
		gutters[i] = " "
	}
	for i, n := range lm.lines {
		if n >= len(lines) {
			break
		}
		gutters[n] = markGutter
		if i == lm.cur {
			gutters[n] = currentMarkGutter
		}
	}
	for i := range lines {
		lines[i] = gutters[i] + lines[i]
	}
	return strings.Join(lines, "\n")
}

// pagerModel shows one record's rendered detail. It can mark search matches
// or the failed runs in the record's history and jump between them.
type pagerModel struct {
	viewport viewport.Model
	input    textinput.Model
	typing   bool
	record   results.Result
	rendered string
	marks    lineMarks
	width    int
}

func newPagerModel() pagerModel {
	in := textinput.New()
	in.Prompt = "Search: "
	st := in.Styles()
	st.Focused.Prompt = filterPromptStyle
	st.Blurred.Prompt = filterPromptStyle
	in.SetStyles(st)

	return pagerModel{viewport: viewport.New(), input: in}
}

func (p *pagerModel) setSize(width, height int) {
	p.width = width
	p.viewport.SetWidth(width)
	p.viewport.SetHeight(max(1, height-pagerBarHeight))
}

// open shows r. An empty rendered means the render is still pending.
func (p *pagerModel) open(r results.Result, rendered string) {
	p.record = r
	p.typing = false
	p.input.Blur()
	p.input.SetValue("")
	p.marks = lineMarks{}
	p.setRendered(rendered)
}

func (p *pagerModel) setRendered(rendered string) {
	p.rendered = rendered
	if rendered == "" {
		p.viewport.SetContent(browserDimStyle.Render("\n  Rendering..."))
		return
	}
	p.remark()
	p.viewport.GotoTop()
}

// setMarks switches what is marked, starting at the first mark.
func (p *pagerModel) setMarks(kind markKind) {
	p.marks = lineMarks{kind: kind}
	p.remark()
}

func (p *pagerModel) remark() {
	switch p.marks.kind {
	case marksSearch:
		p.marks.lines = findLines(p.rendered, containsFold(p.input.Value()))
	case marksFailures:
		p.marks.lines = findLines(p.rendered, isFailedRun)
	default:
		p.marks.lines = nil
	}
	p.marks.cur = min(p.marks.cur, max(0, len(p.marks.lines)-1))
	if p.rendered != "" {
		p.viewport.SetContent(p.marks.decorate(p.rendered))
	}
}

func (p *pagerModel) jump(delta int) {
	line, ok := p.marks.step(delta)
	if !ok {
		return
	}
	p.viewport.SetContent(p.marks.decorate(p.rendered))
	p.viewport.SetYOffset(line)
}

// toggleFailures marks failed runs on first use and moves between them after.
func (p *pagerModel) toggleFailures(delta int) {
	if p.marks.kind != marksFailures {
		p.setMarks(marksFailures)
		p.jump(0)
		return
	}
	p.jump(delta)
}

// update handles msg; back reports that the user left the pager.
func (p pagerModel) update(msg tea.Msg) (pagerModel, tea.Cmd, bool) {
	if p.typing {
		return p.updateInput(msg)
	}

	if k, ok := msg.(tea.KeyPressMsg); ok {
		switch k.String() {
		case "esc", "left", "h":
			return p, nil, true
		case "g", "home":
			p.viewport.GotoTop()
			return p, nil, false
		case "G", "end":
			p.viewport.GotoBottom()
			return p, nil, false
		case "/":
			p.typing = true
			p.input.SetValue("")
			return p, p.input.Focus(), false
		case "n":
			p.jump(1)
			return p, nil, false
		case "N":
			p.jump(-1)
			return p, nil, false
		case "f":
			p.toggleFailures(1)
			return p, nil, false
		case "F":
			p.toggleFailures(-1)
			return p, nil, false
		}
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd, false
}

func (p pagerModel) updateInput(msg tea.Msg) (pagerModel, tea.Cmd, bool) {
	if k, ok := msg.(tea.KeyPressMsg); ok {
		switch k.String() {
		case "esc":
			p.typing = false
			p.input.Blur()
			p.input.SetValue("")
			p.setMarks(marksNone)
			return p, nil, false
		case "enter":
			p.typing = false
			p.input.Blur()
			p.jump(0)
			return p, nil, false
		}
	}

	var cmd tea.Cmd
	prev := p.input.Value()
	p.input, cmd = p.input.Update(msg)
	if v := p.input.Value(); v != prev {
		if v == "" {
			p.setMarks(marksNone)
		} else {
			p.setMarks(marksSearch)
		}
	}
	return p, cmd, false
}

func (p pagerModel) view() string {
	return p.viewport.View() + "\n" + p.statusBar()
}

func (p pagerModel) markInfo() string {
	n := len(p.marks.lines)
	switch p.marks.kind {
	case marksSearch:
		if n == 0 {
			return "no matches"
		}
		return fmt.Sprintf("match %d/%d", p.marks.cur+1, n)
	case marksFailures:
		if n == 0 {
			return "no failed runs"
		}
		return fmt.Sprintf("failed run %d/%d", p.marks.cur+1, n)
	}
	return ""
}

func (p pagerModel) statusBar() string {
	info := p.markInfo()

	if p.typing {
		bar := "  " + p.input.View()
		if info != "" {
			bar += browserDimStyle.Render("  " + info)
		}
		return barInputStyle.Render(bar + strings.Repeat(" ", max(0, p.width-lipgloss.Width(bar))))
	}

	logo := browserLogoStyle.Render(appName)
	var marks string
	if info != "" {
		style := barMarkStyle
		if p.marks.kind == marksFailures {
			style = barFailStyle
		}
		marks = style.Render(" " + info + " ")
	}
	help := barHelpStyle.Render(fmt.Sprintf(" %3.f%%  esc back  / search  f failures ", p.viewport.ScrollPercent()*100))

	fixed := lipgloss.Width(logo) + lipgloss.Width(marks) + lipgloss.Width(help)
	note := ""
	if room := p.width - fixed; room > 3 {
		note = ansi.Truncate(" "+p.record.URL+" ", room, "…")
	}
	pad := strings.Repeat(" ", max(0, p.width-fixed-lipgloss.Width(note)))
	return logo + barNoteStyle.Render(note+pad) + marks + help
}
