package specparse

import (
	"regexp"
	"strconv"
	"strings"
)

// criterionToken is one normalized `P1`/`M3`/`D2` occurrence found in a
// line, with the offset where its description text starts.
type criterionToken struct {
	code      string // normalized, e.g. "P10"
	start     int    // byte offset of the token in the line
	descStart int    // byte offset just past the token
}

// reCriterion matches raw criterion tokens including the common OCR
// confusions inside the digit run (`Pl0`, `MI`, `P10Investigate`). The
// trailing boundary (end of word, or glued uppercase description text) is
// checked in findCriterionTokens; the regexp engine cannot express it.
var reCriterion = regexp.MustCompile(`\b([PMD])\s?([0-9IlO]{1,2})`)

// normalizeDigitRun repairs OCR digit/letter confusion: I/l→1, O→0.
func normalizeDigitRun(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case 'I', 'l':
			b.WriteByte('1')
		case 'O', 'o':
			b.WriteByte('0')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// findCriterionTokens returns every criterion token in a line, normalized
// and validated. A line carrying several back-to-back tokens is a flattened
// table row and each token starts its own criterion.
func findCriterionTokens(line string) []criterionToken {
	matches := reCriterion.FindAllStringSubmatchIndex(line, -1)
	var out []criterionToken
	for _, m := range matches {
		letter := line[m[2]:m[3]]
		digits := line[m[4]:m[5]]
		end := m[5]
		if !tokenBoundaryOK(line, end) {
			// The digit class includes I and O, so a glued uppercase
			// word can start at the second digit position:
			// "P1Investigate" reads as "P1I" unless the run is cut
			// back by one.
			if len(digits) == 2 && digits[1] >= 'A' && digits[1] <= 'Z' {
				digits = digits[:1]
				end--
			} else {
				continue
			}
		}
		n, err := strconv.Atoi(normalizeDigitRun(digits))
		if err != nil || n < 1 || n > 99 {
			continue
		}
		out = append(out, criterionToken{
			code:      letter + strconv.Itoa(n),
			start:     m[0],
			descStart: end,
		})
	}
	return out
}

// tokenBoundaryOK reports whether a criterion token may end at offset i:
// end of line, any non-word byte, or an uppercase letter (glued description
// text such as "P10Investigate"). A following digit or lowercase letter
// means the match is a fragment of a longer word ("P100", "P1x").
func tokenBoundaryOK(line string, i int) bool {
	if i >= len(line) {
		return true
	}
	c := line[i]
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c == '_':
		return false
	default:
		return true
	}
}

var (
	reFooterCopyright = regexp.MustCompile(`(?i)©.*(pearson|education|ltd|limited|\d{4})`)
	reFooterIssue     = regexp.MustCompile(`(?i)^issue\s+\d+\b.*$`)
	rePageNumber      = regexp.MustCompile(`^\s*\d{1,3}\s*$`)
	reRunningHeader   = regexp.MustCompile(`(?i)^unit\s+\d+\s*[:–-]\s+.{0,60}$`)
	reLOHeading       = regexp.MustCompile(`(?i)^LO\s?(\d{1,2})[.:]?\s*(.*)$`)
)

// isFooterNoise gates running-footer and page-chrome lines out of the parse
// loop entirely.
func isFooterNoise(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	if rePageNumber.MatchString(trimmed) {
		return true
	}
	if reFooterCopyright.MatchString(trimmed) && len(trimmed) < 120 {
		return true
	}
	if reFooterIssue.MatchString(trimmed) {
		return true
	}
	return false
}

// stripInlineNoise trims footer substrings that OCR glued onto the end of a
// long description line.
func stripInlineNoise(line string) string {
	if loc := reFooterCopyright.FindStringIndex(line); loc != nil && loc[0] > 0 {
		line = line[:loc[0]]
	}
	return strings.TrimRight(line, " \t")
}
