// Package draft defines the JSON wire contracts handed to the downstream
// lock step. Field names and the PASS/MERIT/DISTINCTION enum are part of
// the contract and must round-trip exactly.
package draft

import (
	"github.com/unitflow/unitflow/constants"
)

// SpecUnit is the unit-descriptor header block of a parsed specification.
type SpecUnit struct {
	UnitCode  string  `json:"unitCode"`
	UnitTitle string  `json:"unitTitle"`
	Level     *int    `json:"level,omitempty"`
	Credits   *int    `json:"credits,omitempty"`
	SpecIssue *string `json:"specIssue,omitempty"`
}

// Criterion is one assessment criterion under a learning outcome.
type Criterion struct {
	ACCode      string              `json:"acCode"`
	GradeBand   constants.GradeBand `json:"gradeBand"`
	Description string              `json:"description"`
}

// LearningOutcome groups criteria under an LO heading.
type LearningOutcome struct {
	LOCode           string      `json:"loCode"`
	Description      string      `json:"description"`
	EssentialContent *string     `json:"essentialContent,omitempty"`
	Criteria         []Criterion `json:"criteria"`
}

// ParsedSpecDraft is the spec parser's complete output. Drafts are derived,
// not append-only: each extract-then-parse cycle overwrites the previous
// draft on the owning document.
type ParsedSpecDraft struct {
	Unit             SpecUnit          `json:"unit"`
	LearningOutcomes []LearningOutcome `json:"learningOutcomes"`
}

// BriefHeader is the labelled-field block at the top of an assignment brief.
type BriefHeader struct {
	Qualification      *string `json:"qualification,omitempty"`
	UnitNumberAndTitle *string `json:"unitNumberAndTitle,omitempty"`
	AssignmentTitle    *string `json:"assignmentTitle,omitempty"`
	Assessor           *string `json:"assessor,omitempty"`
	InternalVerifier   *string `json:"internalVerifier,omitempty"`
	IssueDate          *string `json:"issueDate,omitempty"`
	SubmissionDate     *string `json:"submissionDate,omitempty"`
	AcademicYear       *string `json:"academicYear,omitempty"`
}

// TaskPart is a lettered part (`a`, `b`, ...) or roman sub-part
// (`a.i`, `a.ii`, ...) inside a task body.
type TaskPart struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// BriefTask is one `Task <n>` block.
type BriefTask struct {
	N     int        `json:"n"`
	Label string     `json:"label"`
	Title *string    `json:"title,omitempty"`
	Pages []int      `json:"pages,omitempty"`
	Text  string     `json:"text"`
	Parts []TaskPart `json:"parts,omitempty"`
}

// Table block kinds.
const (
	TableKindStructured   = "TABLE"
	TableKindUnstructured = "UNSTRUCTURED"
)

// TableBlock is a detected table-like region. When column structure cannot
// be confidently inferred the block is UNSTRUCTURED and carries the verbatim
// text; column boundaries are never fabricated.
type TableBlock struct {
	Kind    string     `json:"kind"`
	Caption *string    `json:"caption,omitempty"`
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
	Text    string     `json:"text,omitempty"`
	Warning *string    `json:"warning,omitempty"`
}

// ParsedBriefDraft is the brief parser's complete output.
type ParsedBriefDraft struct {
	Header                 BriefHeader  `json:"header"`
	Tasks                  []BriefTask  `json:"tasks"`
	Tables                 []TableBlock `json:"tables,omitempty"`
	DetectedCriterionCodes []string     `json:"detectedCriterionCodes"`
	EndMatter              *string      `json:"endMatter,omitempty"`
	Warnings               []string     `json:"warnings,omitempty"`
}
