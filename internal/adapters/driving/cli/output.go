package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
)

// Table colours.
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#45475A"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
)

// renderTable draws rows under headers with a rounded border.
func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

// runRows formats run statistics as table rows.
func runRows(runs []domain.RunStats) [][]string {
	rows := make([][]string, 0, len(runs))
	for i := range runs {
		r := &runs[i]
		rows = append(rows, []string{
			r.Kind.Target(),
			string(r.Mode),
			styleStatus(r.Status),
			fmt.Sprint(r.TotalSeen),
			fmt.Sprint(r.Succeeded),
			fmt.Sprint(r.Failed),
			fmt.Sprint(r.PagesProcessed),
			formatDuration(r.Duration()),
			r.AbortReason,
		})
	}
	return rows
}

var runHeaders = []string{"TARGET", "MODE", "STATUS", "SEEN", "OK", "FAILED", "PAGES", "DURATION", "REASON"}

func styleStatus(s domain.RunStatus) string {
	switch s {
	case domain.RunCompleted:
		return successStyle.Render(string(s))
	case domain.RunAborted:
		return errorStyle.Render(string(s))
	default:
		return warningStyle.Render(string(s))
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// syncProgress reports orchestrator events. On a terminal it draws one
// progress bar per listing page; otherwise it prints a line per page and
// per failed item.
type syncProgress struct {
	out         io.Writer
	interactive bool
	bar         *progressbar.ProgressBar
	failed      int
}

// Ensure syncProgress implements the interface.
var _ driving.SyncObserver = (*syncProgress)(nil)

func newSyncProgress(out io.Writer, interactive bool) *syncProgress {
	return &syncProgress{out: out, interactive: interactive}
}

func (p *syncProgress) OnPage(kind domain.DocumentKind, page, totalPages, items int) {
	label := fmt.Sprintf("%s page %d", kind.Target(), page)
	if totalPages > 0 {
		label = fmt.Sprintf("%s page %d/%d", kind.Target(), page, totalPages)
	}

	if !p.interactive {
		fmt.Fprintf(p.out, "%s: %d items\n", label, items)
		return
	}

	p.finishBar()
	p.bar = progressbar.NewOptions(items,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.out) }),
	)
}

func (p *syncProgress) OnItem(_ domain.DocumentKind, serial string, err error) {
	if err != nil {
		p.failed++
		if !p.interactive {
			fmt.Fprintf(p.out, "  failed %s: %v\n", serial, err)
		}
	}
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

// Finish completes the last bar.
func (p *syncProgress) Finish() {
	p.finishBar()
}

func (p *syncProgress) finishBar() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
