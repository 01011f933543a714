package constants

// RunStatus is the canonical status for rows in extraction_runs.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning  RunStatus = "RUNNING"   // in progress
	RunStatusDone     RunStatus = "DONE"      // text extracted and persisted
	RunStatusNeedsOCR RunStatus = "NEEDS_OCR" // completed but text unusable without OCR
	RunStatusFailed   RunStatus = "FAILED"    // terminal failure
)

// Terminal reports whether a run status is final. Runs are append-only:
// a finished run is never mutated, a retry creates a new run.
func (s RunStatus) Terminal() bool {
	return s == RunStatusDone || s == RunStatusNeedsOCR || s == RunStatusFailed
}

// SubmissionStatus is the extraction-owned status on a submission.
type SubmissionStatus string

const (
	SubmissionUploaded   SubmissionStatus = "UPLOADED"
	SubmissionExtracting SubmissionStatus = "EXTRACTING"
	SubmissionExtracted  SubmissionStatus = "EXTRACTED"
	SubmissionNeedsOCR   SubmissionStatus = "NEEDS_OCR"
	SubmissionFailed     SubmissionStatus = "FAILED"
	SubmissionGraded     SubmissionStatus = "GRADED"
)

// GradeBand is the band an assessment criterion belongs to.
type GradeBand string

const (
	BandPass        GradeBand = "PASS"
	BandMerit       GradeBand = "MERIT"
	BandDistinction GradeBand = "DISTINCTION"
)

// BandForCode maps a criterion code's leading letter onto its grade band:
// P→PASS, M→MERIT, anything else→DISTINCTION.
func BandForCode(acCode string) GradeBand {
	if acCode == "" {
		return BandDistinction
	}
	switch acCode[0] {
	case 'P', 'p':
		return BandPass
	case 'M', 'm':
		return BandMerit
	default:
		return BandDistinction
	}
}

// BandRank orders bands PASS < MERIT < DISTINCTION for criterion sorting.
func BandRank(b GradeBand) int {
	switch b {
	case BandPass:
		return 0
	case BandMerit:
		return 1
	default:
		return 2
	}
}

// DocumentKind is the declared role of an uploaded document.
type DocumentKind string

const (
	DocSpec       DocumentKind = "SPEC"       // unit specification
	DocBrief      DocumentKind = "BRIEF"      // assignment brief
	DocSubmission DocumentKind = "SUBMISSION" // student work
)
