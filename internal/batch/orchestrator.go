// Package batch fans many submissions out through the grading port behind a
// small fixed worker pool. Grading triggers further downstream network calls
// per submission, so the pool is deliberately capped low.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/unitflow/unitflow/constants"
	"github.com/unitflow/unitflow/internal/quality"
	"github.com/unitflow/unitflow/internal/repository"
)

// Grader is the grading port: an opaque, possibly-slow, possibly-failing
// remote call. Consumed here, never implemented.
type Grader interface {
	Grade(ctx context.Context, submissionID uuid.UUID) (GradeResult, error)
}

// GradeResult is the grading port's reply.
type GradeResult struct {
	OverallGrade string    `json:"overallGrade"`
	AssessmentID uuid.UUID `json:"assessmentId"`
}

// Machine-readable skip reasons.
const (
	SkipMissing            = "missing"
	SkipNotFailed          = "not-failed"
	SkipAlreadyDone        = "already-done"
	SkipExtractionNotReady = "extraction-not-ready"
)

// Options tune one batch invocation.
type Options struct {
	Concurrency     int  // clamped to 1..4
	RetryFailedOnly bool // restrict targets to FAILED submissions
	ForceRetry      bool // re-grade already-graded submissions
	AllowNeedsOCR   bool // quality-gate override
}

// ItemResult is the per-submission outcome.
type ItemResult struct {
	SubmissionID uuid.UUID `json:"submissionId"`
	OK           bool      `json:"ok"`
	Status       string    `json:"status,omitempty"`
	Grade        *string   `json:"grade,omitempty"`
	Error        *string   `json:"error,omitempty"`
}

// Skip records why a requested submission was not graded.
type Skip struct {
	SubmissionID uuid.UUID `json:"submissionId"`
	Reason       string    `json:"reason"`
}

// Summary is the complete batch report; requested always equals
// targeted + len(skipped).
type Summary struct {
	Requested int          `json:"requested"`
	Targeted  int          `json:"targeted"`
	Skipped   []Skip       `json:"skipped"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []ItemResult `json:"results"`
}

// Orchestrator gates and dispatches batch grading.
type Orchestrator struct {
	store  repository.Store
	grader Grader
	qlog   *slog.Logger
}

func NewOrchestrator(store repository.Store, grader Grader, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{store: store, grader: grader, qlog: log}
}

// Run grades the requested submissions. One submission's failure never
// aborts the batch; every requested ID surfaces either in Results or in
// Skipped.
func (o *Orchestrator) Run(ctx context.Context, ids []uuid.UUID, opts Options) (Summary, error) {
	if o.grader == nil {
		return Summary{}, errors.New("no grader configured")
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 4 {
		concurrency = 4
	}

	summary := Summary{Requested: len(ids)}
	targets := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if reason := o.eligibility(ctx, id, opts); reason != "" {
			summary.Skipped = append(summary.Skipped, Skip{SubmissionID: id, Reason: reason})
			o.qlog.Info("batch.skipped", "submission_id", id, "reason", reason)
			continue
		}
		targets = append(targets, id)
	}
	summary.Targeted = len(targets)

	results := make([]ItemResult, len(targets))
	var next int
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			for {
				mu.Lock()
				i := next
				next++
				mu.Unlock()
				if i >= len(targets) {
					return nil
				}
				results[i] = o.gradeOne(gctx, targets[i])
			}
		})
	}
	// Workers never return errors; failures live in per-item results.
	_ = g.Wait()

	summary.Results = results
	for _, r := range results {
		if r.OK {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	o.qlog.Info("batch.done",
		"requested", summary.Requested, "targeted", summary.Targeted,
		"skipped", len(summary.Skipped), "succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}

// eligibility returns a skip reason, or "" for a gradeable target.
func (o *Orchestrator) eligibility(ctx context.Context, id uuid.UUID, opts Options) string {
	sub, err := o.store.GetSubmission(ctx, id)
	if err != nil {
		return SkipMissing
	}
	if opts.RetryFailedOnly && sub.Status != constants.SubmissionFailed {
		return SkipNotFailed
	}
	if !opts.ForceRetry && sub.Status == constants.SubmissionGraded {
		return SkipAlreadyDone
	}

	var info *quality.RunInfo
	if run, err := o.store.LatestRun(ctx, id); err == nil {
		info = &quality.RunInfo{
			Status:            run.Status,
			IsScanned:         run.IsScanned,
			OverallConfidence: run.OverallConfidence,
		}
	}
	verdict := quality.Evaluate(sub.Status, sub.ExtractedText, info, opts.AllowNeedsOCR)
	if !verdict.OK {
		return SkipExtractionNotReady
	}
	return ""
}

func (o *Orchestrator) gradeOne(ctx context.Context, id uuid.UUID) ItemResult {
	res, err := o.grader.Grade(ctx, id)
	if err != nil {
		msg := err.Error()
		o.qlog.Warn("batch.grade.failed", "submission_id", id, "error", msg)
		return ItemResult{SubmissionID: id, OK: false, Status: "failed", Error: &msg}
	}
	grade := res.OverallGrade
	return ItemResult{SubmissionID: id, OK: true, Status: "graded", Grade: &grade}
}
