// Package runs drives the extraction state machine: claim, extract, fall
// back, finalize. RUNNING is the only non-terminal state; every attempt ends
// DONE, NEEDS_OCR, or FAILED, and a submission can never be left stuck in
// EXTRACTING.
package runs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/unitflow/unitflow/constants"
	"github.com/unitflow/unitflow/internal/briefparse"
	"github.com/unitflow/unitflow/internal/draft"
	"github.com/unitflow/unitflow/internal/extract"
	"github.com/unitflow/unitflow/internal/ocr"
	"github.com/unitflow/unitflow/internal/quality"
	"github.com/unitflow/unitflow/internal/repository"
	"github.com/unitflow/unitflow/internal/specparse"
)

// Skip reasons returned instead of an error when an attempt is refused.
const (
	SkipAlreadyRunning   = "already-running"
	SkipAlreadyExtracted = "already-extracted"
)

// Service owns the per-submission extraction lifecycle.
type Service struct {
	store      repository.Store
	extractor  *extract.Extractor
	ocr        *ocr.Coordinator
	qcfg       quality.Config
	briefCfg   briefparse.Config
	meaningful int // combined-chars threshold under which a doc needs OCR
	coverPages int
	log        *slog.Logger
}

func NewService(store repository.Store, extractor *extract.Extractor, ocrc *ocr.Coordinator, qcfg quality.Config, meaningfulCutoff, coverPages int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if meaningfulCutoff <= 0 {
		meaningfulCutoff = 200
	}
	return &Service{
		store:      store,
		extractor:  extractor,
		ocr:        ocrc,
		qcfg:       qcfg,
		meaningful: meaningfulCutoff,
		coverPages: coverPages,
		log:        log,
	}
}

// WithBriefConfig overrides the brief parser's tuning constants.
func (s *Service) WithBriefConfig(cfg briefparse.Config) *Service {
	s.briefCfg = cfg
	return s
}

// Request is one extraction attempt.
type Request struct {
	SubmissionID uuid.UUID
	Force        bool
	Mode         quality.Mode
}

// Outcome reports what the attempt did. A skipped attempt carries only the
// skip reason; it is not an error.
type Outcome struct {
	Skipped           bool               `json:"skipped"`
	SkipReason        string             `json:"skipReason,omitempty"`
	RunID             uuid.UUID          `json:"runId,omitempty"`
	Status            constants.RunStatus `json:"status,omitempty"`
	IsScanned         bool               `json:"isScanned"`
	OverallConfidence float64            `json:"overallConfidence"`
	ExtractedChars    int                `json:"extractedChars"`
}

// Extract runs one full extraction attempt for a submission. Concurrent and
// repeat attempts are refused with a skip outcome unless Force is set;
// extraction is expensive and callers (UI polling, triage, batch jobs) race.
func (s *Service) Extract(ctx context.Context, req Request) (*Outcome, error) {
	if req.Mode == "" {
		req.Mode = quality.ModeFull
	}
	sub, err := s.store.GetSubmission(ctx, req.SubmissionID)
	if err != nil {
		return nil, err
	}

	if !req.Force {
		switch sub.Status {
		case constants.SubmissionExtracting:
			s.log.Info("runs.claim.skipped", "submission_id", sub.ID, "reason", SkipAlreadyRunning)
			return &Outcome{Skipped: true, SkipReason: SkipAlreadyRunning}, nil
		case constants.SubmissionExtracted, constants.SubmissionGraded:
			s.log.Info("runs.claim.skipped", "submission_id", sub.ID, "reason", SkipAlreadyExtracted)
			return &Outcome{Skipped: true, SkipReason: SkipAlreadyExtracted}, nil
		}
	}

	claimed, err := s.store.ClaimExtraction(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		if !req.Force {
			s.log.Info("runs.claim.skipped", "submission_id", sub.ID, "reason", SkipAlreadyRunning)
			return &Outcome{Skipped: true, SkipReason: SkipAlreadyRunning}, nil
		}
		// Force takes the lock over a presumed-dead holder.
		if err := s.store.ReleaseClaim(ctx, sub.ID, constants.SubmissionExtracting); err != nil {
			return nil, err
		}
		s.log.Warn("runs.claim.forced", "submission_id", sub.ID)
	}

	run := &repository.ExtractionRun{
		SubmissionID: sub.ID,
		Status:       constants.RunStatusRunning,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		// The claim must not outlive a run we could not record.
		_ = s.store.ReleaseClaim(ctx, sub.ID, sub.Status)
		return nil, err
	}

	out, err := s.perform(ctx, sub, run, req.Mode)
	if err != nil {
		s.finalizeFailure(ctx, sub, run, err)
		return nil, err
	}
	return out, nil
}

// perform does the extract/fallback/score/finalize sequence once the claim
// and run row are in place.
func (s *Service) perform(ctx context.Context, sub *repository.Submission, run *repository.ExtractionRun, mode quality.Mode) (*Outcome, error) {
	ext := s.extractor
	if mode == quality.ModeCover {
		ext = ext.CoverOnly(s.coverPages)
	}

	res, err := ext.Extract(ctx, sub.FilePath, constants.MapExtToFormat(sub.FileExt))
	if err != nil {
		return nil, err
	}

	var ocrOut ocr.Outcome
	if s.ocr != nil && mode != quality.ModeCover {
		ocrOut = s.ocr.Apply(ctx, sub.FilePath, &res)
	}

	combined := res.CombinedText()
	chars := len(strings.TrimSpace(combined))

	var cover *quality.CoverMeta
	if mode == quality.ModeCover {
		cm := quality.DetectCoverMeta(combined)
		cover = &cm
	}
	confidence := quality.Blend(s.qcfg, res, ocrOut.Applied, mode, cover)

	runStatus := constants.RunStatusDone
	subStatus := constants.SubmissionExtracted
	if mode != quality.ModeCover && !ocrOut.Applied && (res.IsScanned || chars < s.meaningful) {
		// Human-actionable state, not an error state.
		runStatus = constants.RunStatusNeedsOCR
		subStatus = constants.SubmissionNeedsOCR
	}

	if runStatus == constants.RunStatusDone {
		s.parseDrafts(ctx, sub, &res, combined)
	}

	run.Status = runStatus
	run.IsScanned = res.IsScanned
	run.OverallConfidence = confidence
	run.PageCount = len(res.Pages)
	run.Warnings = res.Warnings
	run.SourceMeta = map[string]any{
		"method": res.Method,
		"mode":   string(mode),
	}
	if ocrOut.Applied && ocrOut.Model != "" {
		run.SourceMeta["ocr_model"] = ocrOut.Model
	}

	pages := make([]repository.PageRow, 0, len(res.Pages))
	for _, p := range res.Pages {
		pages = append(pages, repository.PageRow{
			RunID:      run.ID,
			PageNumber: p.PageNumber,
			Text:       p.Text,
			Confidence: p.Confidence,
		})
	}
	if err := s.store.FinishRun(ctx, run, pages, subStatus, combined); err != nil {
		return nil, err
	}

	return &Outcome{
		RunID:             run.ID,
		Status:            runStatus,
		IsScanned:         res.IsScanned,
		OverallConfidence: confidence,
		ExtractedChars:    chars,
	}, nil
}

// parseDrafts runs the structural parser matching the document kind and
// overwrites the previous draft. Parser trouble degrades to run warnings;
// it never fails the extraction.
func (s *Service) parseDrafts(ctx context.Context, sub *repository.Submission, res *extract.Result, combined string) {
	switch sub.Kind {
	case constants.DocSpec:
		d, warns := specparse.New().Parse(combined)
		res.Warnings = append(res.Warnings, warns...)
		raw, err := draft.MarshalSpecDraft(d)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("spec draft rejected: %v", err))
			return
		}
		if err := s.store.SaveSpecDraft(ctx, sub.ID, raw); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("spec draft save failed: %v", err))
		}
	case constants.DocBrief:
		pageTexts := make([]string, 0, len(res.Pages))
		for _, p := range res.Pages {
			pageTexts = append(pageTexts, p.Text)
		}
		d := briefparse.ParseWithConfig(pageTexts, s.briefCfg)
		res.Warnings = append(res.Warnings, d.Warnings...)
		raw, err := draft.MarshalBriefDraft(d)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("brief draft rejected: %v", err))
			return
		}
		if err := s.store.SaveBriefDraft(ctx, sub.ID, raw); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("brief draft save failed: %v", err))
		}
	}
}

// finalizeFailure records the failure atomically so the submission is never
// left in EXTRACTING. The previous extracted text is preserved.
func (s *Service) finalizeFailure(ctx context.Context, sub *repository.Submission, run *repository.ExtractionRun, cause error) {
	msg := cause.Error()
	run.Status = constants.RunStatusFailed
	run.ErrorMessage = &msg
	if err := s.store.FinishRun(ctx, run, nil, constants.SubmissionFailed, sub.ExtractedText); err != nil {
		// Last resort: at minimum unstick the submission status.
		s.log.Error("runs.finalize_failure.failed", "submission_id", sub.ID, "run_id", run.ID, "error", err)
		_ = s.store.ReleaseClaim(ctx, sub.ID, constants.SubmissionFailed)
	}
	s.log.Warn("runs.failed", "submission_id", sub.ID, "run_id", run.ID, "error", msg)
}

// Verdict evaluates the latest run of a submission through the quality gate.
func (s *Service) Verdict(ctx context.Context, submissionID uuid.UUID, allowNeedsOCR bool) (quality.Verdict, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return quality.Verdict{}, err
	}
	var info *quality.RunInfo
	if run, err := s.store.LatestRun(ctx, submissionID); err == nil {
		info = &quality.RunInfo{
			Status:            run.Status,
			IsScanned:         run.IsScanned,
			OverallConfidence: run.OverallConfidence,
		}
	}
	return quality.Evaluate(sub.Status, sub.ExtractedText, info, allowNeedsOCR), nil
}
