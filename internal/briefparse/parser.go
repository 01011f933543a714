package briefparse

import (
	"regexp"
	"sort"
	"strings"

	"github.com/unitflow/unitflow/internal/draft"
)

var (
	reCriterionCode = regexp.MustCompile(`\b([PMD]\d{1,2})\b`)
	reEndMatter     = regexp.MustCompile(`(?i)^sources of information\b`)
)

// Parse turns the per-page text of an assignment brief into a structured
// draft with default tuning. Pages index from 1 in the output; the header
// block is read from the first page only.
func Parse(pages []string) draft.ParsedBriefDraft {
	return ParseWithConfig(pages, Config{})
}

// ParseWithConfig is Parse with explicit tuning constants.
func ParseWithConfig(pages []string, cfg Config) draft.ParsedBriefDraft {
	cfg = cfg.withDefaults()
	var out draft.ParsedBriefDraft

	if len(pages) == 0 {
		out.Warnings = append(out.Warnings, "brief has no pages")
		out.Tasks = []draft.BriefTask{}
		out.DetectedCriterionCodes = []string{}
		return out
	}

	hr := parseHeader(pages[0])
	out.Header = headerFromResult(hr)
	out.Warnings = append(out.Warnings, hr.warnings...)

	body, endMatter := splitEndMatter(pages)
	if endMatter != "" {
		out.EndMatter = &endMatter
	}

	tasks, warns := parseTasks(body, cfg)
	out.Tasks = tasks
	out.Warnings = append(out.Warnings, warns...)

	for _, p := range body {
		out.Tables = append(out.Tables, detectTables(p)...)
	}

	out.DetectedCriterionCodes = detectCriterionCodes(strings.Join(body, "\n"))
	return out
}

func headerFromResult(hr headerResult) draft.BriefHeader {
	get := func(label string) *string {
		if v, ok := hr.values[label]; ok {
			return &v
		}
		return nil
	}
	return draft.BriefHeader{
		Qualification:      get("Qualification"),
		UnitNumberAndTitle: get("Unit number and title"),
		AssignmentTitle:    get("Assignment title"),
		Assessor:           get("Assessor"),
		InternalVerifier:   get("Internal Verifier"),
		IssueDate:          get("Issue date"),
		SubmissionDate:     get("Submission date"),
		AcademicYear:       get("Academic year"),
	}
}

// splitEndMatter cuts the document at the first end-matter heading
// ("Sources of information"); everything from that line onward is returned
// verbatim and excluded from task/table parsing.
func splitEndMatter(pages []string) ([]string, string) {
	for pi, page := range pages {
		lines := strings.Split(page, "\n")
		for li, line := range lines {
			if reEndMatter.MatchString(strings.TrimSpace(line)) {
				body := make([]string, len(pages))
				copy(body, pages)
				body[pi] = strings.Join(lines[:li], "\n")
				for j := pi + 1; j < len(body); j++ {
					body[j] = ""
				}
				var tail []string
				tail = append(tail, strings.Join(lines[li:], "\n"))
				for j := pi + 1; j < len(pages); j++ {
					tail = append(tail, pages[j])
				}
				return body, strings.TrimSpace(strings.Join(tail, "\n"))
			}
		}
	}
	return pages, ""
}

// detectCriterionCodes pulls every P/M/D code mentioned anywhere in the body,
// deduplicated and sorted. This is an advisory signal for mapping tasks to
// criteria downstream, not a parse of the criteria table itself.
func detectCriterionCodes(text string) []string {
	seen := map[string]bool{}
	var codes []string
	for _, g := range reCriterionCode.FindAllStringSubmatch(text, -1) {
		if !seen[g[1]] {
			seen[g[1]] = true
			codes = append(codes, g[1])
		}
	}
	sort.Strings(codes)
	if codes == nil {
		codes = []string{}
	}
	return codes
}
