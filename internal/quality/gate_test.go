package quality

import (
	"math"
	"strings"
	"testing"

	"github.com/unitflow/unitflow/constants"
	"github.com/unitflow/unitflow/internal/extract"
)

func TestEvaluateBlockers(t *testing.T) {
	tests := []struct {
		name          string
		status        constants.SubmissionStatus
		text          string
		run           *RunInfo
		allowNeedsOCR bool
		wantOK        bool
		wantBlocker   string
	}{
		{
			name:        "no run recorded",
			status:      constants.SubmissionUploaded,
			text:        "",
			run:         nil,
			wantBlocker: "no extraction run recorded",
		},
		{
			name:   "done run with text passes",
			status: constants.SubmissionExtracted,
			text:   "plenty of text here",
			run:    &RunInfo{Status: constants.RunStatusDone, OverallConfidence: 0.9},
			wantOK: true,
		},
		{
			name:        "needs ocr without override blocked",
			status:      constants.SubmissionNeedsOCR,
			text:        "thin",
			run:         &RunInfo{Status: constants.RunStatusNeedsOCR},
			wantBlocker: "latest run needs OCR",
		},
		{
			name:          "needs ocr with override passes",
			status:        constants.SubmissionNeedsOCR,
			text:          "thin but present",
			run:           &RunInfo{Status: constants.RunStatusNeedsOCR},
			allowNeedsOCR: true,
			wantOK:        true,
		},
		{
			name:        "running run blocked",
			status:      constants.SubmissionExtracting,
			text:        "partial",
			run:         &RunInfo{Status: constants.RunStatusRunning},
			wantBlocker: "extraction still running",
		},
		{
			name:        "failed run blocked",
			status:      constants.SubmissionFailed,
			text:        "stale text",
			run:         &RunInfo{Status: constants.RunStatusFailed},
			wantBlocker: "latest run failed",
		},
		{
			name:        "empty text blocked",
			status:      constants.SubmissionExtracted,
			text:        "   ",
			run:         &RunInfo{Status: constants.RunStatusDone},
			wantBlocker: "no extracted text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(tt.status, tt.text, tt.run, tt.allowNeedsOCR)
			if v.OK != tt.wantOK {
				t.Fatalf("OK = %v, want %v (blockers %v)", v.OK, tt.wantOK, v.Blockers)
			}
			if tt.wantBlocker != "" {
				found := false
				for _, b := range v.Blockers {
					if b == tt.wantBlocker {
						found = true
					}
				}
				if !found {
					t.Errorf("blockers = %v, want %q", v.Blockers, tt.wantBlocker)
				}
			}
		})
	}
}

func denseResult(pages int, perPage int) extract.Result {
	res := extract.Result{OverallConfidence: 0.95}
	for i := 0; i < pages; i++ {
		res.Pages = append(res.Pages, extract.Page{
			PageNumber: i + 1,
			Text:       strings.Repeat("x", perPage),
			Confidence: 0.9,
		})
	}
	return res
}

func TestBlendWeights(t *testing.T) {
	// 2 pages, 900 chars each: density 1, all pages meet the 120 cutoff.
	res := denseResult(2, 900)
	got := Blend(Config{}, res, false, ModeFull, nil)
	// 0.4*0.95 + 0.25*0.9 + 0.2*1 + 0.15*1 = 0.955, capped at 0.96... under.
	want := 0.4*0.95 + 0.25*0.9 + 0.2 + 0.15
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("blend = %v, want %v", got, want)
	}
}

func TestBlendDensityNudgeAndCap(t *testing.T) {
	// 1350+ chars/page earns the density nudge; full-mode cap is 0.96.
	res := denseResult(2, 1400)
	got := Blend(Config{}, res, false, ModeFull, nil)
	if got != 0.96 {
		t.Fatalf("blend = %v, want full-mode cap 0.96", got)
	}
}

func TestBlendOCRNudge(t *testing.T) {
	res := denseResult(2, 400)
	base := Blend(Config{}, res, false, ModeFull, nil)
	ocr := Blend(Config{}, res, true, ModeFull, nil)
	if math.Abs(ocr-base-0.02) > 1e-9 {
		t.Fatalf("ocr nudge = %v, want +0.02", ocr-base)
	}
}

func TestBlendScannedScoresZeroInFullMode(t *testing.T) {
	res := denseResult(1, 10)
	res.IsScanned = true
	if got := Blend(Config{}, res, false, ModeFull, nil); got != 0 {
		t.Fatalf("scanned full-mode blend = %v, want 0", got)
	}
}

func TestBlendCoverModeIgnoresScannedAndBlendsCoverMeta(t *testing.T) {
	res := denseResult(1, 40)
	res.IsScanned = true
	res.OverallConfidence = 0 // scanned body scores nothing on its own
	cover := &CoverMeta{StudentName: "A Student", StudentID: "S123", UnitCode: "U5"}

	got := Blend(Config{}, res, false, ModeCover, cover)
	if got == 0 {
		t.Fatal("cover mode must not zero a short-bodied document")
	}
	// 3 of 5 cover fields found.
	if c := cover.Confidence(); math.Abs(c-0.6) > 1e-9 {
		t.Fatalf("cover confidence = %v, want 0.6", c)
	}
	// Structural blend dominates a near-empty body.
	without := Blend(Config{}, res, false, ModeCover, nil)
	if got <= without {
		t.Errorf("cover metadata should lift the score: with=%v without=%v", got, without)
	}
}

func TestBlendEmptyPages(t *testing.T) {
	if got := Blend(Config{}, extract.Result{}, false, ModeFull, nil); got != 0 {
		t.Fatalf("no pages blend = %v, want 0", got)
	}
}

func TestDetectCoverMeta(t *testing.T) {
	text := "Student Name: Jordan Lee\n" +
		"Student ID: 20241234\n" +
		"Unit Code: Unit 5\n" +
		"Assignment: A1\n" +
		"I declare that this work is my own.\n"
	m := DetectCoverMeta(text)
	if m.StudentName == "" || m.StudentID == "" || m.UnitCode == "" || m.AssignmentCode == "" || !m.HasDeclaration {
		t.Fatalf("incomplete cover meta: %+v", m)
	}
	if m.Confidence() != 1 {
		t.Errorf("confidence = %v, want 1", m.Confidence())
	}
}
