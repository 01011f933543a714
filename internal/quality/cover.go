package quality

import (
	"regexp"
	"strings"
)

// CoverMeta records which identity-binding fields were found on the leading
// pages of a submission. Cover-only extraction exists to answer "whose work
// is this, for which assignment" without paying full-body OCR cost.
type CoverMeta struct {
	StudentName    string `json:"student_name,omitempty"`
	StudentID      string `json:"student_id,omitempty"`
	UnitCode       string `json:"unit_code,omitempty"`
	AssignmentCode string `json:"assignment_code,omitempty"`
	HasDeclaration bool   `json:"has_declaration"`
}

// Confidence is the fraction of the five identity signals present.
func (m CoverMeta) Confidence() float64 {
	found := 0
	if strings.TrimSpace(m.StudentName) != "" {
		found++
	}
	if strings.TrimSpace(m.StudentID) != "" {
		found++
	}
	if strings.TrimSpace(m.UnitCode) != "" {
		found++
	}
	if strings.TrimSpace(m.AssignmentCode) != "" {
		found++
	}
	if m.HasDeclaration {
		found++
	}
	return float64(found) / 5.0
}

var (
	reCoverName    = regexp.MustCompile(`(?mi)^\s*(?:student\s+name|learner\s+name|name)\s*[:\-]\s*(\S.{0,80}?)\s*$`)
	reCoverID      = regexp.MustCompile(`(?mi)^\s*(?:student\s+(?:id|number)|learner\s+(?:id|number)|id)\s*[:\-]\s*([A-Za-z0-9\-/]{2,20})\s*$`)
	reCoverUnit    = regexp.MustCompile(`(?i)\bunit\s*(?:code|number)?\s*[:\-]?\s*(\d{1,3}|[A-Z]\d{3,5})\b`)
	reCoverAssign  = regexp.MustCompile(`(?i)\bassignment\s*(?:code|ref(?:erence)?|number)?\s*[:\-]?\s*([A-Z0-9][A-Z0-9\-/.]{1,15})\b`)
	reCoverDeclare = regexp.MustCompile(`(?i)\b(?:I\s+(?:certify|confirm|declare)|learner\s+declaration|this\s+is\s+my\s+own\s+work)\b`)
)

// DetectCoverMeta scans cover-page text for labelled identity fields.
// Everything here is best effort; absence is information for the blend,
// never an error.
func DetectCoverMeta(text string) CoverMeta {
	var m CoverMeta
	if g := reCoverName.FindStringSubmatch(text); g != nil {
		m.StudentName = strings.TrimSpace(g[1])
	}
	if g := reCoverID.FindStringSubmatch(text); g != nil {
		m.StudentID = strings.TrimSpace(g[1])
	}
	if g := reCoverUnit.FindStringSubmatch(text); g != nil {
		m.UnitCode = strings.TrimSpace(g[1])
	}
	if g := reCoverAssign.FindStringSubmatch(text); g != nil {
		m.AssignmentCode = strings.TrimSpace(g[1])
	}
	m.HasDeclaration = reCoverDeclare.MatchString(text)
	return m
}
