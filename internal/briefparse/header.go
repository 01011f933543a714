// Package briefparse turns assignment-brief text into a header block plus
// an ordered Task tree with lettered parts, roman sub-parts, and table
// blocks, under heavy OCR noise.
package briefparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// headerLabels in document order. Matching is case-insensitive and
// tolerant of the colon OCR sometimes eats.
var headerLabels = []string{
	"Qualification",
	"Unit number and title",
	"Assignment title",
	"Assessor",
	"Internal Verifier",
	"Issue date",
	"Submission date",
	"Academic year",
}

// fieldStrategy is one named way of pulling a field's value out of the
// text. Strategies are tried in priority order and the winner's name is
// retained for auditability; adding or disabling one is a one-line change.
type fieldStrategy struct {
	name    string
	extract func(lines []string, labelIdx int) (string, bool)
}

// headerResult carries extracted fields plus per-field winning strategy.
type headerResult struct {
	values     map[string]string
	strategies map[string]string
	warnings   []string
}

var fieldStrategies = []fieldStrategy{
	{name: "same-line", extract: sameLineValue},
	{name: "following-lines", extract: followingLinesValue},
}

// sameLineValue reads `Label: value` anchored so the value stops before the
// next known label on the same line (OCR often flattens the header table).
func sameLineValue(lines []string, labelIdx int) (string, bool) {
	line := lines[labelIdx]
	label := matchedLabel(line)
	if label == "" {
		return "", false
	}
	rest := line[len(label):]
	rest = strings.TrimLeft(rest, " \t:-–")
	if rest == "" {
		return "", false
	}
	// Cut at the next label if the row was flattened.
	cut := len(rest)
	for _, other := range headerLabels {
		if other == label {
			continue
		}
		if i := indexFold(rest, other); i >= 0 && i < cut {
			cut = i
		}
	}
	v := strings.TrimSpace(rest[:cut])
	return v, v != ""
}

// followingLinesValue handles `label on its own line, value below` layouts:
// lines are consumed until the next label line.
func followingLinesValue(lines []string, labelIdx int) (string, bool) {
	var vals []string
	for i := labelIdx + 1; i < len(lines) && i <= labelIdx+4; i++ {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			continue
		}
		if matchedLabel(t) != "" {
			break
		}
		vals = append(vals, t)
	}
	if len(vals) == 0 {
		return "", false
	}
	return strings.Join(vals, " "), true
}

// matchedLabel returns the known label a line starts with, or "".
func matchedLabel(line string) string {
	t := strings.TrimSpace(line)
	for _, l := range headerLabels {
		if len(t) >= len(l) && strings.EqualFold(t[:len(l)], l) {
			return l
		}
	}
	return ""
}

func indexFold(s, sub string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(sub))
}

// reDateShape validates the date shapes briefs actually carry:
// 12/09/2024, 12-09-24, 12 September 2024.
var reDateShape = regexp.MustCompile(`^\d{1,2}[\s/\-.]+(?:\d{1,2}|[A-Za-z]{3,9})[\s/\-.]+\d{2,4}$`)

var dateFields = map[string]bool{"Issue date": true, "Submission date": true}

// parseHeader runs the strategy cascade over every known label.
func parseHeader(text string) headerResult {
	res := headerResult{
		values:     map[string]string{},
		strategies: map[string]string{},
	}
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		label := matchedLabel(line)
		if label == "" {
			continue
		}
		if _, done := res.values[label]; done {
			continue // first occurrence wins
		}
		for _, strat := range fieldStrategies {
			v, ok := strat.extract(lines, i)
			if !ok {
				continue
			}
			if dateFields[label] && !reDateShape.MatchString(v) {
				// Ambiguous dates are rejected loudly, never
				// dropped silently.
				res.warnings = append(res.warnings,
					fmt.Sprintf("%s: value %q does not look like a date, rejected", label, v))
				break
			}
			res.values[label] = v
			res.strategies[label] = strat.name
			break
		}
	}

	resolveAcademicYear(&res, text)
	return res
}

var (
	reAcademicYear = regexp.MustCompile(`\b(20\d{2})\s*/\s*(\d{2})\b`)
	reIssueYear    = regexp.MustCompile(`(?i)\bissue\s+\d{1,2}\s*[–-]\s*(20\d{2})\s*/\s*(\d{2})\b`)
	reDateParts    = regexp.MustCompile(`^(\d{1,2})[\s/\-.]+(\d{1,2}|[A-Za-z]{3,9})[\s/\-.]+(\d{2,4})$`)
)

var monthNums = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// resolveAcademicYear fills in the academic year from its fallback chain.
// The labelled value is unreliable upstream (sometimes a cohort number, not
// a year), so a labelled value that isn't YYYY/YY is discarded in favour of
// an "Issue N - YYYY/YY" line, then the issue-date month (Sep-Dec spans
// into the next calendar year). This is a documented heuristic, not a hard
// business rule.
func resolveAcademicYear(res *headerResult, text string) {
	if v, ok := res.values["Academic year"]; ok {
		if reAcademicYear.MatchString(v) {
			return
		}
		res.warnings = append(res.warnings,
			fmt.Sprintf("Academic year: labelled value %q is not YYYY/YY, inferring instead", v))
		delete(res.values, "Academic year")
		delete(res.strategies, "Academic year")
	}

	if g := reIssueYear.FindStringSubmatch(text); g != nil {
		res.values["Academic year"] = g[1] + "/" + g[2]
		res.strategies["Academic year"] = "issue-line"
		return
	}

	issue, ok := res.values["Issue date"]
	if !ok {
		return
	}
	g := reDateParts.FindStringSubmatch(issue)
	if g == nil {
		return
	}
	month := 0
	if n, err := strconv.Atoi(g[2]); err == nil {
		month = n
	} else if n, ok := monthNums[strings.ToLower(g[2])[:3]]; ok {
		month = n
	}
	year, err := strconv.Atoi(g[3])
	if err != nil || month == 0 {
		return
	}
	if year < 100 {
		year += 2000
	}
	var ay string
	if month >= 9 {
		ay = fmt.Sprintf("%d/%02d", year, (year+1)%100)
	} else {
		ay = fmt.Sprintf("%d/%02d", year-1, year%100)
	}
	res.values["Academic year"] = ay
	res.strategies["Academic year"] = "issue-date-month"
}
