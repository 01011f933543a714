// Package specparse turns normalized unit-descriptor text into a
// Unit → LearningOutcome → AssessmentCriterion tree, tolerant of OCR
// digit/letter confusion and page-footer noise.
package specparse

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/unitflow/unitflow/constants"
	"github.com/unitflow/unitflow/internal/draft"
)

// The criteria table only ever appears between this heading and the first
// terminal heading; scanning the whole document produces false positives
// from cover pages and footers.
const criteriaHeading = "Learning Outcomes and Assessment Criteria"

var terminalHeadings = []string{
	"Essential Content",
	"Recommended Resources",
	"Essential Requirements",
	"Links",
	"Delivery Guidance",
}

// parser state machine. The scan state is explicit so it is unambiguous
// when partial data is discarded versus committed.
type scanState int

const (
	stateIdle scanState = iota // before any LO heading
	stateInLO                  // LO open, no criterion yet
	stateInCriterion           // accumulating a criterion description
)

type accumulator struct {
	lo   *draft.LearningOutcome
	code string
	desc []string
}

// Parser parses unit specification text.
type Parser struct{}

func New() *Parser { return &Parser{} }

// Parse builds a ParsedSpecDraft from full-document text. Soft problems
// (missing window, unparseable header fields) surface as warnings on the
// second return value, never as errors.
func (p *Parser) Parse(text string) (draft.ParsedSpecDraft, []string) {
	var warnings []string

	out := draft.ParsedSpecDraft{
		Unit: parseUnitHeader(text),
	}

	window, ok := sliceCriteriaWindow(text)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("heading %q not found; no criteria parsed", criteriaHeading))
		return out, warnings
	}

	var (
		state scanState
		acc   accumulator
		los   []draft.LearningOutcome
	)

	// flush commits the open criterion into the open LO. acCode is unique
	// within an LO; on collision the first wins.
	flush := func() {
		if state != stateInCriterion || acc.lo == nil || acc.code == "" {
			acc.code, acc.desc = "", nil
			return
		}
		for _, c := range acc.lo.Criteria {
			if c.ACCode == acc.code {
				acc.code, acc.desc = "", nil
				return
			}
		}
		acc.lo.Criteria = append(acc.lo.Criteria, draft.Criterion{
			ACCode:      acc.code,
			GradeBand:   constants.BandForCode(acc.code),
			Description: strings.TrimSpace(strings.Join(acc.desc, " ")),
		})
		acc.code, acc.desc = "", nil
	}
	closeLO := func() {
		flush()
		if acc.lo != nil {
			los = append(los, *acc.lo)
			acc.lo = nil
		}
		state = stateIdle
	}

	for _, line := range strings.Split(window, "\n") {
		if isFooterNoise(line) {
			continue
		}
		line = stripInlineNoise(line)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if g := reLOHeading.FindStringSubmatch(trimmed); g != nil {
			closeLO()
			acc.lo = &draft.LearningOutcome{
				LOCode:      "LO" + g[1],
				Description: strings.TrimSpace(g[2]),
			}
			state = stateInLO
			continue
		}

		toks := findCriterionTokens(trimmed)
		if len(toks) > 0 && toks[0].start == 0 && acc.lo != nil {
			// Each token on the line opens its own criterion; a line
			// with several back-to-back tokens is a flattened table
			// row, not one criterion's description.
			for i, tok := range toks {
				flush()
				end := len(trimmed)
				if i+1 < len(toks) {
					end = toks[i+1].start
				}
				acc.code = tok.code
				if d := strings.TrimSpace(trimmed[tok.descStart:end]); d != "" {
					acc.desc = append(acc.desc, d)
				}
				state = stateInCriterion
			}
			continue
		}

		switch state {
		case stateInCriterion:
			acc.desc = append(acc.desc, trimmed)
		case stateInLO:
			if acc.lo.Description != "" {
				acc.lo.Description += " "
			}
			acc.lo.Description += trimmed
		}
	}
	closeLO()

	for i := range los {
		sortCriteria(los[i].Criteria)
	}
	out.LearningOutcomes = los
	if len(los) == 0 {
		warnings = append(warnings, "criteria window found but no learning outcomes parsed")
	}
	return out, warnings
}

// sliceCriteriaWindow cuts the text between the criteria heading and the
// first terminal heading.
func sliceCriteriaWindow(text string) (string, bool) {
	idx := indexFold(text, criteriaHeading)
	if idx < 0 {
		return "", false
	}
	rest := text[idx+len(criteriaHeading):]
	end := len(rest)
	for _, h := range terminalHeadings {
		if i := indexFold(rest, h); i >= 0 && i < end {
			end = i
		}
	}
	return rest[:end], true
}

func indexFold(s, sub string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(sub))
}

// sortCriteria orders within an LO by grade-band rank then numeric suffix.
func sortCriteria(cs []draft.Criterion) {
	sort.SliceStable(cs, func(i, j int) bool {
		ri, rj := constants.BandRank(cs[i].GradeBand), constants.BandRank(cs[j].GradeBand)
		if ri != rj {
			return ri < rj
		}
		return criterionNumber(cs[i].ACCode) < criterionNumber(cs[j].ACCode)
	})
}

func criterionNumber(code string) int {
	if len(code) < 2 {
		return 0
	}
	n, _ := strconv.Atoi(code[1:])
	return n
}

var (
	reUnitCode  = regexp.MustCompile(`(?i)\bunit\s+(\d{1,3})\b`)
	reUnitTitle = regexp.MustCompile(`(?im)^unit\s+title\s*[:\-]?\s*(\S.*)$`)
	reUnitLine  = regexp.MustCompile(`(?im)^unit\s+\d{1,3}\s*[:–-]\s*(\S.*)$`)
	reLevel     = regexp.MustCompile(`(?i)\blevel\s*[:\-]?\s*(\d)\b`)
	reCredits   = regexp.MustCompile(`(?i)\bcredit(?:s|\s+value)?\s*[:\-]?\s*(\d{1,3})\b`)
	reSpecIssue = regexp.MustCompile(`(?i)\bissue\s+(\d{1,2})\b`)
)

func parseUnitHeader(text string) draft.SpecUnit {
	var u draft.SpecUnit
	// Header fields live on the first page; limit the scan so body text
	// cannot shadow them.
	head := text
	if len(head) > 4000 {
		head = head[:4000]
	}
	if g := reUnitCode.FindStringSubmatch(head); g != nil {
		u.UnitCode = g[1]
	}
	if g := reUnitTitle.FindStringSubmatch(head); g != nil {
		u.UnitTitle = strings.TrimSpace(g[1])
	} else if g := reUnitLine.FindStringSubmatch(head); g != nil {
		u.UnitTitle = strings.TrimSpace(g[1])
	}
	if g := reLevel.FindStringSubmatch(head); g != nil {
		if n, err := strconv.Atoi(g[1]); err == nil {
			u.Level = &n
		}
	}
	if g := reCredits.FindStringSubmatch(head); g != nil {
		if n, err := strconv.Atoi(g[1]); err == nil {
			u.Credits = &n
		}
	}
	if g := reSpecIssue.FindStringSubmatch(head); g != nil {
		issue := "Issue " + g[1]
		u.SpecIssue = &issue
	}
	return u
}
