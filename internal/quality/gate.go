// Package quality scores extraction output and turns raw confidence/status
// signals into an actionable ok/blocked verdict. The gate is a pure function
// of its inputs and is shared by the extraction endpoint, the batch-grade
// dispatcher, and workspace listing.
package quality

import (
	"strings"

	"github.com/unitflow/unitflow/constants"
	"github.com/unitflow/unitflow/internal/extract"
)

// Mode selects between full-body extraction and the reduced cover-only
// triage flow.
type Mode string

const (
	ModeFull  Mode = "full"
	ModeCover Mode = "cover"
)

// Config carries the scoring thresholds (empirically tuned; see common.ExtractConfig).
type Config struct {
	PageTextCutoff    int // per-page meaningful-text threshold, default 120
	PageDensityTarget int // chars/page density target, default 900
}

func (c Config) withDefaults() Config {
	if c.PageTextCutoff <= 0 {
		c.PageTextCutoff = 120
	}
	if c.PageDensityTarget <= 0 {
		c.PageDensityTarget = 900
	}
	return c
}

// RunInfo is the slice of an extraction run the gate needs.
type RunInfo struct {
	Status            constants.RunStatus
	IsScanned         bool
	OverallConfidence float64
}

// Verdict is never persisted standalone; it is attached to whichever
// decision consumed it.
type Verdict struct {
	OK       bool               `json:"ok"`
	Blockers []string           `json:"blockers,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

// Evaluate decides whether extracted output is safe to consume.
// allowNeedsOCR lets a caller explicitly accept NEEDS_OCR runs (a human
// override), otherwise only DONE runs pass.
func Evaluate(status constants.SubmissionStatus, extractedText string, run *RunInfo, allowNeedsOCR bool) Verdict {
	v := Verdict{Metrics: map[string]float64{}}

	if run == nil {
		v.Blockers = append(v.Blockers, "no extraction run recorded")
		return v
	}
	v.Metrics["overall_confidence"] = run.OverallConfidence

	switch run.Status {
	case constants.RunStatusDone:
	case constants.RunStatusNeedsOCR:
		if !allowNeedsOCR {
			v.Blockers = append(v.Blockers, "latest run needs OCR")
		} else {
			v.Warnings = append(v.Warnings, "consuming NEEDS_OCR run under override")
		}
	case constants.RunStatusRunning:
		v.Blockers = append(v.Blockers, "extraction still running")
	default:
		v.Blockers = append(v.Blockers, "latest run failed")
	}

	if strings.TrimSpace(extractedText) == "" {
		v.Blockers = append(v.Blockers, "no extracted text")
	}
	if status == constants.SubmissionExtracting {
		v.Blockers = append(v.Blockers, "submission is mid-extraction")
	}
	if run.IsScanned {
		v.Warnings = append(v.Warnings, "document classified as scanned")
	}

	v.OK = len(v.Blockers) == 0
	return v
}

// Blend computes the final document confidence from the extraction result:
// raw extractor confidence (0.4), mean per-page confidence (0.25), fraction
// of pages meeting the per-page meaningful-text threshold (0.2), and text
// density relative to the per-page target (0.15). Successful OCR or very
// dense text nudges the score up slightly; the cap depends on mode.
func Blend(cfg Config, res extract.Result, ocrApplied bool, mode Mode, cover *CoverMeta) float64 {
	cfg = cfg.withDefaults()
	if len(res.Pages) == 0 {
		return 0
	}
	// In cover mode a short body is intentional; everywhere else a
	// scanned document scores zero.
	if res.IsScanned && mode != ModeCover {
		return 0
	}

	var meanPage float64
	meeting := 0
	chars := 0
	for _, p := range res.Pages {
		meanPage += p.Confidence
		t := strings.TrimSpace(p.Text)
		chars += len(t)
		if len(t) >= cfg.PageTextCutoff {
			meeting++
		}
	}
	n := float64(len(res.Pages))
	meanPage /= n
	fracMeeting := float64(meeting) / n
	density := float64(chars) / n / float64(cfg.PageDensityTarget)
	if density > 1 {
		density = 1
	}

	score := 0.4*res.OverallConfidence + 0.25*meanPage + 0.2*fracMeeting + 0.15*density

	if ocrApplied {
		score += 0.02
	}
	if float64(chars)/n >= 1.5*float64(cfg.PageDensityTarget) {
		score += 0.03
	}

	limit := 0.96
	if mode == ModeCover {
		limit = 0.99
		if cover != nil {
			// The business question for cover-only extraction is
			// identity binding, not body grading: structural
			// cover-metadata confidence carries nearly half the
			// final score.
			score = 0.55*score + 0.45*cover.Confidence()
		}
	}
	if score > limit {
		score = limit
	}
	if score < 0 {
		score = 0
	}
	return score
}
