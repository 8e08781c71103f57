package output

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"charm.land/glamour/v2"

	"github.com/Gaurav-Gosain/asrtdash/results"
)

// Markdown renders the summary widgets and the result table as markdown.
func Markdown(source string, snapshot []results.Result, stats results.Stats) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", source)

	latest := stats.LatestUpdate
	if latest == "" {
		latest = "never"
	}
	fmt.Fprintf(&b, "- **Last update:** %s\n", latest)
	fmt.Fprintf(&b, "- **Total results:** %d\n", stats.Total)
	fmt.Fprintf(&b, "- **Latest batch:** %d ok, %d failed\n", stats.BatchOK, stats.BatchFailed)
	fmt.Fprintf(&b, "- **Error rate:** %s last hour, %s last day, %s last week\n\n",
		stats.LastHour, stats.LastDay, stats.LastWeek)

	if len(snapshot) == 0 {
		b.WriteString("_No results yet._\n")
		return b.String()
	}

	b.WriteString("| Result | Expected | URL | Timestamp |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, r := range snapshot {
		status := "ok"
		if !r.Passed() {
			status = "**fail**"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			status, cell(r.ExpectationString()), cell(r.URL), cell(r.TimeOfDay()))
	}
	return b.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// RenderTerminal renders the dashboard to w using glamour.
func RenderTerminal(w io.Writer, source string, snapshot []results.Result, stats results.Stats, wordWrap int) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithEnvironmentConfig(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	rendered, err := renderer.Render(Markdown(source, snapshot, stats))
	if err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	_, err = fmt.Fprint(w, rendered)
	return err
}

// WriteReport writes the markdown dashboard into dir and returns its path.
func WriteReport(dir, source string, snapshot []results.Result, stats results.Stats) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, urlToFilename(source))
	if err := os.WriteFile(path, []byte(Markdown(source, snapshot, stats)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// urlToFilename converts a URL to a safe filename.
func urlToFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown.md"
	}

	name := u.Host + u.Path
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, ":", "_")
	name = strings.Trim(name, "-")

	if name == "" {
		name = "index"
	}
	return name + ".md"
}

// Marks leading each line of the recent runs list.
const (
	RunPassedMark = "✓"
	RunFailedMark = "✗"
)

// historyLimit caps the runs listed in a record's detail view.
const historyLimit = 20

// RecordMarkdown renders a single record, followed by the most recent runs
// for the same URL found in history.
func RecordMarkdown(r results.Result, history []results.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.URL)
	if r.Label != "" {
		fmt.Fprintf(&b, "_%s_\n\n", r.Label)
	}

	status := "ok"
	if !r.Passed() {
		status = "**fail**"
	}
	b.WriteString("| Field | Value |\n")
	b.WriteString("|---|---|\n")
	fmt.Fprintf(&b, "| Result | %s |\n", status)
	fmt.Fprintf(&b, "| Expected | %s |\n", cell(r.ExpectationString()))
	if actual := r.ActualString(); actual != "" {
		fmt.Fprintf(&b, "| Actual | %s |\n", cell(actual))
	}
	fmt.Fprintf(&b, "| Timestamp | %s |\n", cell(r.Timestamp))
	if t, ok := r.Time(); ok {
		fmt.Fprintf(&b, "| Local time | %s |\n", t.Local().Format(results.DisplayLayout))
	}

	var runs []results.Result
	for _, h := range history {
		if h.URL == r.URL {
			runs = append(runs, h)
		}
	}
	if len(runs) == 0 {
		return b.String()
	}
	if len(runs) > historyLimit {
		runs = runs[len(runs)-historyLimit:]
	}

	fmt.Fprintf(&b, "\n## Recent runs (%d)\n\n", len(runs))
	for _, h := range runs {
		if h.Passed() {
			fmt.Fprintf(&b, "- %s %s ok\n", RunPassedMark, h.TimeOfDay())
		} else {
			fmt.Fprintf(&b, "- %s %s **fail**\n", RunFailedMark, h.TimeOfDay())
		}
	}
	return b.String()
}
