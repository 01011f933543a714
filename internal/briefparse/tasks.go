package briefparse

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/unitflow/unitflow/internal/draft"
)

var (
	reTaskHeading = regexp.MustCompile(`(?i)^task\s+(\d{1,2})\b[\s:\x{2013}.-]*(.*)$`)
	reTaskOnly    = regexp.MustCompile(`(?i)^task\s*$`)
	reBareNumber  = regexp.MustCompile(`^(\d{1,2})\b[\s:\x{2013}.-]*(.*)$`)
	reLetterPart  = regexp.MustCompile(`^([a-h])[).]\s+(.*)$`)
	reRomanPart   = regexp.MustCompile(`^(i{1,3}|iv|v|vi{1,3}|ix|x)[).]\s+(.*)$`)
)

// taskHeading is one accepted `Task <n>` heading with its line position.
type taskHeading struct {
	n     int
	label string
	title string
	line  int // global line index
	page  int
}

// line carries a text line with its source page.
type scanLine struct {
	text string
	page int
}

// scanTaskHeadings walks the lines once and establishes an ordered,
// strictly-increasing heading sequence. Duplicate or out-of-order numbers
// are dropped with a warning; the first occurrence wins. OCR sometimes
// splits "Task" and its number across two lines, so a lone "Task" line
// peeks at the next non-empty line.
func scanTaskHeadings(lines []scanLine) ([]taskHeading, []string) {
	var heads []taskHeading
	var warnings []string
	lastN := 0

	accept := func(n int, title string, idx, page int) {
		if n <= lastN {
			warnings = append(warnings, fmt.Sprintf("task heading %d on page %d dropped: out of order after task %d", n, page, lastN))
			return
		}
		heads = append(heads, taskHeading{
			n:     n,
			label: "Task " + strconv.Itoa(n),
			title: strings.TrimSpace(title),
			line:  idx,
			page:  page,
		})
		lastN = n
	}

	for i := 0; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i].text)
		if g := reTaskHeading.FindStringSubmatch(t); g != nil {
			n, _ := strconv.Atoi(g[1])
			accept(n, g[2], i, lines[i].page)
			continue
		}
		if reTaskOnly.MatchString(t) {
			// Lookahead for the split number.
			for j := i + 1; j < len(lines) && j <= i+2; j++ {
				nt := strings.TrimSpace(lines[j].text)
				if nt == "" {
					continue
				}
				if g := reBareNumber.FindStringSubmatch(nt); g != nil {
					n, _ := strconv.Atoi(g[1])
					accept(n, g[2], i, lines[i].page)
					i = j
				}
				break
			}
		}
	}
	return heads, warnings
}

// parseTasks assigns every line between consecutive headings to the
// preceding task's body, then runs the part state machine over each body.
func parseTasks(pages []string, cfg Config) ([]draft.BriefTask, []string) {
	var lines []scanLine
	for pi, ptext := range pages {
		for _, l := range strings.Split(ptext, "\n") {
			lines = append(lines, scanLine{text: l, page: pi + 1})
		}
	}

	heads, warnings := scanTaskHeadings(lines)
	tasks := make([]draft.BriefTask, 0, len(heads))

	for hi, h := range heads {
		end := len(lines)
		if hi+1 < len(heads) {
			end = heads[hi+1].line
		}
		body := lines[h.line+1 : end]

		task := draft.BriefTask{N: h.n, Label: h.label}
		if h.title != "" && len(h.title) <= 80 {
			title := h.title
			task.Title = &title
		}

		pageSet := map[int]bool{h.page: true}
		var bodyText []string
		for _, l := range body {
			text, tokenWarns := resolveInlineTokens(l.text, cfg.EquationConfidenceCutoff, l.page)
			warnings = append(warnings, tokenWarns...)
			if strings.TrimSpace(text) != "" {
				pageSet[l.page] = true
			}
			bodyText = append(bodyText, text)
		}
		for p := range pageSet {
			task.Pages = append(task.Pages, p)
		}
		sort.Ints(task.Pages)

		task.Text = strings.TrimSpace(strings.Join(bodyText, "\n"))
		task.Parts = parseParts(bodyText)
		tasks = append(tasks, task)
	}
	return tasks, warnings
}

// parseParts detects lettered parts and roman sub-parts inside a task body.
// Roman sub-parts are always children of the active lettered part. A bare
// `i.` with no `ii.` in the short lookahead window is prose that happens to
// start with the word "I", not a sub-part.
func parseParts(body []string) []draft.TaskPart {
	var parts []draft.TaskPart
	var letter string
	var cur *draft.TaskPart

	flush := func() {
		if cur != nil {
			cur.Text = strings.TrimSpace(cur.Text)
			parts = append(parts, *cur)
			cur = nil
		}
	}

	for i, raw := range body {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}

		if g := reLetterPart.FindStringSubmatch(t); g != nil {
			flush()
			letter = g[1]
			cur = &draft.TaskPart{Key: letter, Text: g[2]}
			continue
		}

		if g := reRomanPart.FindStringSubmatch(t); g != nil && letter != "" {
			if g[1] == "i" && !romanContinues(body, i) {
				// prose, not a sub-part
			} else {
				flush()
				cur = &draft.TaskPart{Key: letter + "." + g[1], Text: g[2]}
				continue
			}
		}

		if cur != nil {
			cur.Text += " " + t
		}
	}
	flush()
	return parts
}

// romanContinues looks ahead a short window for an `ii.` start.
func romanContinues(body []string, from int) bool {
	for j := from + 1; j < len(body) && j <= from+8; j++ {
		t := strings.TrimSpace(body[j])
		if strings.HasPrefix(t, "ii)") || strings.HasPrefix(t, "ii.") {
			return true
		}
	}
	return false
}

