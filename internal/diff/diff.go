// Package diff computes line diffs between two versions of a file.
package diff

import (
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Line is one line of a diff with its position on each side.
type Line struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// MaxLines is the default combined line budget for Lines.
const MaxLines = 5000

// Lines diffs before and after line by line. When the inputs together exceed
// maxLines (MaxLines if maxLines <= 0) it returns truncated=true and no lines.
func Lines(before, after string, maxLines int) (lines []Line, truncated bool) {
	if maxLines <= 0 {
		maxLines = MaxLines
	}
	if lineCount(before)+lineCount(after) > maxLines {
		return nil, true
	}

	table := lineTable{index: map[string]rune{}}
	beforeRunes, ok1 := table.encode(before)
	afterRunes, ok2 := table.encode(after)
	if !ok1 || !ok2 {
		return nil, true
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMainRunes(beforeRunes, afterRunes, false)

	lines = []Line{}
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		for _, r := range d.Text {
			text := strings.TrimSuffix(table.lines[table.slot(r)], "\n")
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Type: LineContext, Text: text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Type: LineRemoved, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Type: LineAdded, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return lines, false
}

// Changed reports whether any line was added or removed.
func Changed(lines []Line) bool {
	for _, l := range lines {
		if l.Type != LineContext {
			return true
		}
	}
	return false
}

// lineTable gives every distinct line (newline included) its own rune so the
// diff runs over whole lines. Surrogate code points are skipped.
type lineTable struct {
	index map[string]rune
	lines []string
}

const (
	surrogateMin = 0xD800
	surrogateGap = 0x800
)

func (t *lineTable) encode(text string) ([]rune, bool) {
	var out []rune
	for text != "" {
		end := strings.IndexByte(text, '\n')
		if end < 0 {
			end = len(text) - 1
		}
		line := text[:end+1]
		text = text[end+1:]

		r, ok := t.index[line]
		if !ok {
			r = t.runeFor(len(t.lines))
			if r > utf8.MaxRune {
				return nil, false
			}
			t.index[line] = r
			t.lines = append(t.lines, line)
		}
		out = append(out, r)
	}
	return out, true
}

func (t *lineTable) runeFor(slot int) rune {
	r := rune(slot)
	if r >= surrogateMin {
		r += surrogateGap
	}
	return r
}

func (t *lineTable) slot(r rune) int {
	if r >= surrogateMin+surrogateGap {
		r -= surrogateGap
	}
	return int(r)
}

func lineCount(value string) int {
	n := strings.Count(value, "\n")
	if value != "" && !strings.HasSuffix(value, "\n") {
		n++
	}
	return n
}
