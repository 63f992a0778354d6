package diff

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
)

func TestLines(t *testing.T) {
	lines, truncated := Lines("alpha\nbeta\n", "alpha\ngamma\n", 0)
	if truncated {
		t.Fatal("unexpected truncation")
	}

	want := []Line{
		{Type: LineContext, Text: "alpha", OldLine: 1, NewLine: 1},
		{Type: LineRemoved, Text: "beta", OldLine: 2},
		{Type: LineAdded, Text: "gamma", NewLine: 2},
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %+v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %+v, want %+v", i, lines[i], want[i])
		}
	}
	if !Changed(lines) {
		t.Fatal("expected Changed() to be true")
	}
}

func TestLinesIdentical(t *testing.T) {
	lines, _ := Lines("same\n", "same\n", 0)
	if Changed(lines) {
		t.Fatalf("identical inputs reported as changed: %+v", lines)
	}
}

func TestLinesTruncated(t *testing.T) {
	big := strings.Repeat("x\n", 10)
	lines, truncated := Lines(big, big, 5)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if lines != nil {
		t.Fatalf("expected no lines when truncated, got %d", len(lines))
	}
}

// rebuild reassembles one side of a diff: context plus removed lines gives
// the old file, context plus added lines the new one.
func rebuild(lines []Line, skip string) string {
	var b strings.Builder
	for _, l := range lines {
		if l.Type == skip {
			continue
		}
		b.WriteString(l.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func TestLinesRebuildsBothSides(t *testing.T) {
	cases := []struct {
		name          string
		before, after string
	}{
		{
			name:   "repeated short lines",
			before: "v5\nv11\nv12\nv0\nv5\nv3\nv13\nv0\nv0\nv11\nv13\nv0\nv6\nv10\n",
			after:  "v1\nv2\nv1\nv9\nv7\nv9\nv5\nv5\nv8\nv6\nv9\nv5\nv1\nv1\n",
		},
		{
			name:   "insert in the middle",
			before: "a\nb\nc\nd\ne\nf\ng\nh\ni\nj\nk\nl\nm\nn\n",
			after:  "a\nb\nc\nd\ne\nf\nX\ng\nh\ni\nj\nk\nl\nm\nn\n",
		},
	}

	rng := rand.New(rand.NewSource(7))
	randomFile := func(n int) string {
		var b strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "v%d\n", rng.Intn(20))
		}
		return b.String()
	}
	for i := 0; i < 50; i++ {
		cases = append(cases, struct {
			name          string
			before, after string
		}{
			name:   fmt.Sprintf("random %d", i),
			before: randomFile(5 + rng.Intn(300)),
			after:  randomFile(5 + rng.Intn(300)),
		})
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lines, truncated := Lines(tc.before, tc.after, 0)
			if truncated {
				t.Fatal("unexpected truncation")
			}
			if got := rebuild(lines, LineAdded); got != tc.before {
				t.Fatalf("old side rebuilt as %q, want %q", got, tc.before)
			}
			if got := rebuild(lines, LineRemoved); got != tc.after {
				t.Fatalf("new side rebuilt as %q, want %q", got, tc.after)
			}
		})
	}
}

func TestLinesNumbering(t *testing.T) {
	lines, _ := Lines("one\ntwo\nthree\n", "zero\none\nthree\n", 0)
	want := []Line{
		{Type: LineAdded, Text: "zero", NewLine: 1},
		{Type: LineContext, Text: "one", OldLine: 1, NewLine: 2},
		{Type: LineRemoved, Text: "two", OldLine: 2},
		{Type: LineContext, Text: "three", OldLine: 3, NewLine: 3},
	}
	if len(lines) != len(want) {
		t.Fatalf("got %+v, want %+v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %+v, want %+v", i, lines[i], want[i])
		}
	}
}

func TestLineTableSkipsSurrogates(t *testing.T) {
	var table lineTable
	for _, slot := range []int{0, surrogateMin - 1, surrogateMin, surrogateMin + 10} {
		r := table.runeFor(slot)
		if r >= surrogateMin && r < surrogateMin+surrogateGap {
			t.Fatalf("slot %d encoded as surrogate %U", slot, r)
		}
		if got := table.slot(r); got != slot {
			t.Fatalf("slot %d round-tripped to %d", slot, got)
		}
	}
}

func TestLineCount(t *testing.T) {
	cases := map[string]int{"": 0, "a": 1, "a\n": 1, "a\nb": 2, "a\nb\n": 2, "\n": 1}
	for in, want := range cases {
		if got := lineCount(in); got != want {
			t.Errorf("lineCount(%q) = %d, want %d", in, got, want)
		}
	}
}
