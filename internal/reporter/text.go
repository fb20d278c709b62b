package reporter

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/scriptforge/internal/task"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
)

// maxValueWidth truncates long returned values on a status line.
const maxValueWidth = 60

// TextReporter writes human-readable output to a writer.
type TextReporter struct {
	w     io.Writer
	color bool
}

// NewTextReporter creates a text reporter.
// If w is nil, defaults to os.Stdout.
// color enables lipgloss styling.
func NewTextReporter(w io.Writer, color bool) *TextReporter {
	if w == nil {
		w = os.Stdout
	}
	return &TextReporter{w: w, color: color}
}

// PrintHeader writes the initial banner.
func (r *TextReporter) PrintHeader(totalTasks int, dagsRoot string) {
	fmt.Fprintln(r.w, r.style(headerStyle, fmt.Sprintf("scriptforge: %d tasks, dags root %s", totalTasks, dagsRoot)))
	fmt.Fprintln(r.w)
}

// PrintResult writes one line for a finished task.
func (r *TextReporter) PrintResult(res *task.TaskResult) {
	dur := res.Duration.Truncate(time.Millisecond)
	switch res.State {
	case task.StateCompleted:
		fmt.Fprintf(r.w, "  %s %-30s %s  %s\n",
			r.style(doneStyle, "✓"), res.TaskID, r.style(dimStyle, dur.String()), formatValue(res.Value))
	default:
		fmt.Fprintf(r.w, "  %s %-30s %s  %s\n",
			r.style(failedStyle, "✗"), res.TaskID, r.style(dimStyle, dur.String()), res.Error)
	}
}

// PrintSummary writes the final tally.
func (r *TextReporter) PrintSummary(results []*task.TaskResult) {
	var completed, failed int
	for _, res := range results {
		if res.State == task.StateCompleted {
			completed++
		} else {
			failed++
		}
	}

	fmt.Fprintln(r.w)
	line := fmt.Sprintf("Total: %d  Completed: %d  Failed: %d", len(results), completed, failed)
	if failed > 0 {
		fmt.Fprintln(r.w, r.style(failedStyle, line))
		return
	}
	fmt.Fprintln(r.w, r.style(doneStyle, line))
}

func (r *TextReporter) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

// formatValue renders a returned value for a status line.
func formatValue(v any) string {
	if v == nil {
		return "(no value)"
	}
	return Truncate(fmt.Sprintf("%v", v), maxValueWidth)
}

// Truncate shortens s to at most n runes, marking the cut with "…".
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}
