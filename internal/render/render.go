package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ashita-ai/kanshi/internal/compare"
	"github.com/ashita-ai/kanshi/internal/diff"
	"github.com/ashita-ai/kanshi/internal/model"
)

// Printer writes styled output to one writer. Colour is used only when the
// writer is a terminal that supports it.
type Printer struct {
	w  io.Writer
	st styles
}

// New creates a Printer. theme is one of "auto", "light" or "dark"; anything
// else is treated as auto.
func New(w io.Writer, theme string) *Printer {
	return &Printer{w: w, st: newStyles(w, theme)}
}

// Patch prints every hunk of a parsed file with old and new line numbers in
// the gutter.
func (p *Printer) Patch(f diff.ParsedFile) error {
	var b strings.Builder
	path := f.Path
	if path == "" {
		path = "(unnamed)"
	}
	fmt.Fprintf(&b, "%s %s\n", p.st.file.Render(path),
		p.st.muted.Render(fmt.Sprintf("+%d -%d", f.Additions, f.Deletions)))

	width := gutterWidth(f)
	blank := strings.Repeat(" ", width)
	for _, h := range f.Hunks {
		b.WriteString(p.st.hunk.Render(h.Header))
		b.WriteByte('\n')
		for _, l := range h.Lines {
			oldCol, newCol := blank, blank
			if l.OldNumber > 0 {
				oldCol = fmt.Sprintf("%*d", width, l.OldNumber)
			}
			if l.NewNumber > 0 {
				newCol = fmt.Sprintf("%*d", width, l.NewNumber)
			}
			b.WriteString(p.st.gutter.Render(oldCol + " " + newCol + " "))
			switch l.Kind {
			case diff.LineAdd:
				b.WriteString(p.st.add.Render("+" + l.Content))
			case diff.LineRemove:
				b.WriteString(p.st.remove.Render("-" + l.Content))
			default:
				b.WriteString(p.st.context.Render(" " + l.Content))
			}
			b.WriteByte('\n')
		}
	}
	return p.write(b.String())
}

func gutterWidth(f diff.ParsedFile) int {
	maxNum := 0
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			maxNum = max(maxNum, l.OldNumber, l.NewNumber)
		}
	}
	return max(len(strconv.Itoa(maxNum)), 3)
}

// Comparison prints a stats table followed by the common, shared and
// per-run unique file sections.
func (p *Printer) Comparison(c compare.Comparison) error {
	var b strings.Builder

	rows := [][]string{{"EXECUTOR", "RUN", "CREATED", "FILES", "ADDED", "REMOVED"}}
	for _, s := range c.Runs {
		rows = append(rows, []string{
			s.Run.Executor,
			s.Run.ID,
			s.Run.CreatedAt.UTC().Format("2006-01-02 15:04"),
			strconv.Itoa(s.Stats.FilesChanged),
			"+" + strconv.Itoa(s.Stats.LinesAdded),
			"-" + strconv.Itoa(s.Stats.LinesRemoved),
		})
	}
	p.table(&b, rows)

	p.fileSection(&b, "Common files", c.Overlap.CommonFiles)
	if shared := c.Overlap.Shared(); len(shared) > 0 {
		p.fileSection(&b, "Shared by some runs", shared)
	}
	for _, s := range c.Runs {
		title := fmt.Sprintf("Only in %s %s", s.Run.Executor, s.Run.ID)
		p.fileSection(&b, title, c.Overlap.UniqueFiles[s.Run.ID])
	}
	return p.write(b.String())
}

// Unavailable explains why no comparison can be shown.
func (p *Printer) Unavailable(succeeded int) error {
	msg := fmt.Sprintf("comparison needs at least %d succeeded runs, found %d", compare.MinComparable, succeeded)
	return p.write(p.st.warn.Render(msg) + "\n")
}

func (p *Printer) table(b *strings.Builder, rows [][]string) {
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	for r, row := range rows {
		for i, cell := range row {
			style := p.st.context
			switch {
			case r == 0:
				style = p.st.header
			case i == 0:
				style = p.st.executor
			case i == 4:
				style = p.st.add
			case i == 5:
				style = p.st.remove
			}
			b.WriteString(style.Render(cell))
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		b.WriteByte('\n')
	}
}

func (p *Printer) fileSection(b *strings.Builder, title string, paths []string) {
	b.WriteString(p.st.section.Render(fmt.Sprintf("%s (%d)", title, len(paths))))
	b.WriteByte('\n')
	if len(paths) == 0 {
		b.WriteString("  " + p.st.muted.Render("none") + "\n")
		return
	}
	for _, path := range paths {
		b.WriteString("  " + path + "\n")
	}
}

// LogLine prints one output line prefixed with its line number.
func (p *Printer) LogLine(l model.OutputLine) error {
	return p.write(p.st.gutter.Render(fmt.Sprintf("%6d", l.LineNumber)) + "  " + l.Content + "\n")
}

// LogEnd prints the closing status of a completed stream.
func (p *Printer) LogEnd(page model.LogPage) error {
	style := p.st.muted
	if page.RunStatus != model.RunStatusSucceeded {
		style = p.st.warn
	}
	return p.write(style.Render(fmt.Sprintf("run %s after %d lines", page.RunStatus, page.TotalLines)) + "\n")
}

// RunLine prints a one-line summary of a run.
func (p *Printer) RunLine(r model.Run) error {
	stats := compare.Stats(r)
	line := fmt.Sprintf("%s  %s  %s", p.st.executor.Render(r.Executor), r.ID, r.Status)
	if r.Status == model.RunStatusSucceeded {
		line += "  " + p.st.muted.Render(fmt.Sprintf("%d files +%d -%d", stats.FilesChanged, stats.LinesAdded, stats.LinesRemoved))
	}
	return p.write(line + "\n")
}

func (p *Printer) write(s string) error {
	if _, err := io.WriteString(p.w, s); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
