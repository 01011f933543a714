package extract

import (
	"sort"
	"strings"
)

// fragment is one positioned text run lifted from a page content stream.
// Fragments exist only transiently during reconstruction; they are never
// persisted.
type fragment struct {
	text      string
	x, y      float64
	width     float64
	lineBreak bool // the stream moved to a new text line after this run
}

// reconstructPage turns positioned fragments into readable text. PDF has no
// paragraph model, so reading order is rebuilt geometrically: stable-sort by
// y descending then x ascending, bucket into lines within yTol, and join
// fragments on a line with a space when the horizontal gap exceeds spaceGap
// and neither side already implies no-space.
func reconstructPage(frags []fragment, yTol, spaceGap float64) string {
	if len(frags) == 0 {
		return ""
	}

	sort.SliceStable(frags, func(i, j int) bool {
		if frags[i].y != frags[j].y {
			return frags[i].y > frags[j].y
		}
		return frags[i].x < frags[j].x
	})

	var lines [][]fragment
	var cur []fragment
	curY := frags[0].y
	flush := func() {
		if len(cur) > 0 {
			lines = append(lines, cur)
			cur = nil
		}
	}
	for _, f := range frags {
		if f.text == "" && !f.lineBreak {
			continue
		}
		if len(cur) > 0 && curY-f.y > yTol {
			flush()
			curY = f.y
		} else if len(cur) == 0 {
			curY = f.y
		}
		cur = append(cur, f)
		// An explicit break always closes the current line, whatever
		// the geometry says.
		if f.lineBreak {
			flush()
		}
	}
	flush()

	var sb strings.Builder
	for li, line := range lines {
		if li > 0 {
			sb.WriteByte('\n')
		}
		for fi, f := range line {
			if fi > 0 {
				prev := line[fi-1]
				gap := f.x - (prev.x + prev.width)
				if gap > spaceGap && !noSpaceAfter(prev.text) && !noSpaceBefore(f.text) {
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(f.text)
		}
	}
	return sb.String()
}

// noSpaceAfter reports whether a fragment's trailing rune already implies
// that no space should follow it (open bracket, hyphenation).
func noSpaceAfter(s string) bool {
	for _, suf := range []string{"(", "[", "{", "-", "–", " "} {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// noSpaceBefore reports whether a fragment's leading rune forbids a space
// before it (closing punctuation).
func noSpaceBefore(s string) bool {
	for _, pre := range []string{")", "]", "}", ",", ".", ";", ":", "!", "?", " "} {
		if strings.HasPrefix(s, pre) {
			return true
		}
	}
	return false
}
