// Package diff parses unified-diff text into structured files, hunks, and
// classified lines with reconstructed line numbers.
//
// Parsing is fail-soft: malformed hunk headers fall back to line 1 and
// unrecognised lines are treated as context. A review UI is better served
// by approximate line numbers than by no rendering at all, so nothing in
// this package returns an error.
package diff

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ashita-ai/kanshi/internal/model"
)

// LineKind classifies a line inside a hunk.
type LineKind string

const (
	LineAdd     LineKind = "add"
	LineRemove  LineKind = "remove"
	LineContext LineKind = "context"
)

// ParsedLine is a single classified hunk line.
//
// LineNumber is drawn from the old-file counter for removed lines and from
// the new-file counter for added and context lines. OldNumber and NewNumber
// carry both sides for side-by-side rendering; a side the line does not
// exist on is 0.
type ParsedLine struct {
	Content    string   `json:"content"`
	Kind       LineKind `json:"kind"`
	LineNumber int      `json:"line_number"`
	OldNumber  int      `json:"old_number,omitempty"`
	NewNumber  int      `json:"new_number,omitempty"`
}

// ParsedHunk is a contiguous block delimited by an @@ header.
// OldLines and NewLines are the counts declared by the header, or -1 when the
// header did not parse.
type ParsedHunk struct {
	Header   string       `json:"header"`
	OldStart int          `json:"old_start"`
	NewStart int          `json:"new_start"`
	OldLines int          `json:"old_lines"`
	NewLines int          `json:"new_lines"`
	Lines    []ParsedLine `json:"lines"`
}

// ParsedFile is every hunk for one file. Additions and Deletions are counted
// from the parsed lines, not taken from any header.
type ParsedFile struct {
	Path      string       `json:"path"`
	Hunks     []ParsedHunk `json:"hunks"`
	Additions int          `json:"additions"`
	Deletions int          `json:"deletions"`
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

const noNewlineMarker = `\ No newline at end of file`

// parser holds the scan state. The current file and hunk are flushed when a
// new header arrives and once more at end of input.
type parser struct {
	files []ParsedFile
	file  *ParsedFile
	hunk  *ParsedHunk

	oldNum, newNum int
	// Remaining lines the current hunk header promised on each side, or -1
	// when unknown.
	oldLeft, newLeft int
	// Set on a "--- " line that opens a file header; the "+++ " line after
	// it is then a header as well.
	inHeader bool
}

// Parse splits a unified diff into files. Hunks that appear before any
// "+++ " line are collected into a file with an empty path.
func Parse(patch string) []ParsedFile {
	p := &parser{}
	lines := strings.Split(patch, "\n")
	// A terminating newline yields one empty trailing element; it is not a line.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i, line := range lines {
		var next string
		if i+1 < len(lines) {
			next = strings.TrimSuffix(lines[i+1], "\r")
		}
		p.scan(strings.TrimSuffix(line, "\r"), next)
	}
	p.flushFile()
	return p.files
}

// ParseFileDiff parses the patch fragment of a single FileDiff. The fragment
// usually lacks file headers, so the path comes from fd. If the fragment
// contains no hunks the result still carries the path.
func ParseFileDiff(fd model.FileDiff) ParsedFile {
	files := Parse(fd.Patch)
	out := ParsedFile{Path: fd.Path}
	for _, f := range files {
		out.Hunks = append(out.Hunks, f.Hunks...)
		out.Additions += f.Additions
		out.Deletions += f.Deletions
	}
	return out
}

func (p *parser) scan(line, next string) {
	// A "--- " line directly followed by "+++ " always opens a new file, even
	// when the previous hunk header promised more lines than it had.
	header := p.inHeader || (strings.HasPrefix(line, "--- ") && strings.HasPrefix(next, "+++ "))
	p.inHeader = false

	// Otherwise, inside a hunk whose header still expects lines, "---" and
	// "+++" are content (e.g. a removed SQL comment), not file headers.
	if !header && p.expectsContent() && isHunkLine(line) {
		p.content(line)
		return
	}

	switch {
	case strings.HasPrefix(line, "diff "):
		p.flushHunk()
	case strings.HasPrefix(line, "--- "):
		p.inHeader = header
		return
	case strings.HasPrefix(line, "+++ "):
		p.flushFile()
		path := strings.TrimSpace(strings.TrimPrefix(line, "+++ "))
		if i := strings.IndexByte(path, '\t'); i >= 0 {
			path = path[:i]
		}
		p.file = &ParsedFile{Path: strings.TrimPrefix(path, "b/")}
	case strings.HasPrefix(line, "@@"):
		p.startHunk(line)
	case p.hunk != nil:
		p.content(line)
	}
}

func (p *parser) expectsContent() bool {
	if p.hunk == nil {
		return false
	}
	return p.oldLeft > 0 || p.newLeft > 0
}

// isHunkLine reports whether line can be the body of a hunk.
func isHunkLine(line string) bool {
	if line == "" {
		return true
	}
	switch line[0] {
	case ' ', '+', '-', '\\':
		return true
	}
	return false
}

func (p *parser) startHunk(header string) {
	p.flushHunk()
	if p.file == nil {
		p.file = &ParsedFile{}
	}

	oldStart, newStart := 1, 1
	oldLines, newLines := -1, -1
	if m := hunkHeaderRe.FindStringSubmatch(header); m != nil {
		oldStart = atoiOr(m[1], 1)
		newStart = atoiOr(m[3], 1)
		// An omitted count means a single line.
		oldLines = atoiOr(m[2], 1)
		newLines = atoiOr(m[4], 1)
	}

	p.hunk = &ParsedHunk{
		Header:   header,
		OldStart: oldStart,
		NewStart: newStart,
		OldLines: oldLines,
		NewLines: newLines,
	}
	p.oldNum, p.newNum = oldStart, newStart
	p.oldLeft, p.newLeft = oldLines, newLines
}

func (p *parser) content(line string) {
	if line == noNewlineMarker {
		return
	}
	var pl ParsedLine
	switch {
	case strings.HasPrefix(line, "+"):
		pl = ParsedLine{Content: line[1:], Kind: LineAdd, LineNumber: p.newNum, NewNumber: p.newNum}
		p.newNum++
		p.newLeft--
		p.file.Additions++
	case strings.HasPrefix(line, "-"):
		pl = ParsedLine{Content: line[1:], Kind: LineRemove, LineNumber: p.oldNum, OldNumber: p.oldNum}
		p.oldNum++
		p.oldLeft--
		p.file.Deletions++
	default:
		pl = ParsedLine{
			Content:    strings.TrimPrefix(line, " "),
			Kind:       LineContext,
			LineNumber: p.newNum,
			OldNumber:  p.oldNum,
			NewNumber:  p.newNum,
		}
		p.oldNum++
		p.newNum++
		p.oldLeft--
		p.newLeft--
	}
	p.hunk.Lines = append(p.hunk.Lines, pl)
}

func (p *parser) flushHunk() {
	if p.hunk == nil {
		return
	}
	p.file.Hunks = append(p.file.Hunks, *p.hunk)
	p.hunk = nil
	p.oldLeft, p.newLeft = -1, -1
}

func (p *parser) flushFile() {
	p.flushHunk()
	if p.file == nil {
		return
	}
	p.files = append(p.files, *p.file)
	p.file = nil
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
