package batch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/unitflow/unitflow/constants"
	"github.com/unitflow/unitflow/internal/common"
	"github.com/unitflow/unitflow/internal/repository"
)

// gateStore is the minimal store the orchestrator consults: submissions and
// their latest runs. Everything else panics so an unexpected call is loud.
type gateStore struct {
	subs map[uuid.UUID]*repository.Submission
	runs map[uuid.UUID]*repository.ExtractionRun
}

func (g *gateStore) GetSubmission(_ context.Context, id uuid.UUID) (*repository.Submission, error) {
	s, ok := g.subs[id]
	if !ok {
		return nil, common.WrapError(common.ErrNotFound, "submission not found")
	}
	return s, nil
}

func (g *gateStore) LatestRun(_ context.Context, id uuid.UUID) (*repository.ExtractionRun, error) {
	r, ok := g.runs[id]
	if !ok {
		return nil, common.WrapError(common.ErrNotFound, "no runs")
	}
	return r, nil
}

func (g *gateStore) CreateSubmission(context.Context, *repository.Submission) error {
	panic("unexpected CreateSubmission")
}
func (g *gateStore) ClaimExtraction(context.Context, uuid.UUID) (bool, error) {
	panic("unexpected ClaimExtraction")
}
func (g *gateStore) ReleaseClaim(context.Context, uuid.UUID, constants.SubmissionStatus) error {
	panic("unexpected ReleaseClaim")
}
func (g *gateStore) CreateRun(context.Context, *repository.ExtractionRun) error {
	panic("unexpected CreateRun")
}
func (g *gateStore) FinishRun(context.Context, *repository.ExtractionRun, []repository.PageRow, constants.SubmissionStatus, string) error {
	panic("unexpected FinishRun")
}
func (g *gateStore) ListRuns(context.Context, uuid.UUID) ([]*repository.ExtractionRun, error) {
	panic("unexpected ListRuns")
}
func (g *gateStore) SaveSpecDraft(context.Context, uuid.UUID, []byte) error {
	panic("unexpected SaveSpecDraft")
}
func (g *gateStore) SaveBriefDraft(context.Context, uuid.UUID, []byte) error {
	panic("unexpected SaveBriefDraft")
}

// addReady seeds a submission that passes the quality gate.
func (g *gateStore) addReady(status constants.SubmissionStatus) uuid.UUID {
	id := uuid.New()
	g.subs[id] = &repository.Submission{
		ID:            id,
		Kind:          constants.DocSubmission,
		Status:        status,
		ExtractedText: "plenty of useful text",
	}
	g.runs[id] = &repository.ExtractionRun{
		ID:                uuid.New(),
		SubmissionID:      id,
		Status:            constants.RunStatusDone,
		OverallConfidence: 0.9,
	}
	return id
}

type fakeGrader struct {
	mu     sync.Mutex
	calls  []uuid.UUID
	failOn map[uuid.UUID]error
}

func (f *fakeGrader) Grade(_ context.Context, id uuid.UUID) (GradeResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	if err, ok := f.failOn[id]; ok {
		return GradeResult{}, err
	}
	return GradeResult{OverallGrade: "MERIT", AssessmentID: uuid.New()}, nil
}

func newGateStore() *gateStore {
	return &gateStore{
		subs: map[uuid.UUID]*repository.Submission{},
		runs: map[uuid.UUID]*repository.ExtractionRun{},
	}
}

func TestRunGradesBatchAndIsolatesFailures(t *testing.T) {
	store := newGateStore()
	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = store.addReady(constants.SubmissionExtracted)
	}
	grader := &fakeGrader{failOn: map[uuid.UUID]error{
		ids[2]: errors.New("grading backend unavailable"),
	}}

	sum, err := NewOrchestrator(store, grader, nil).Run(context.Background(), ids, Options{Concurrency: 3})
	if err != nil {
		t.Fatal(err)
	}

	if sum.Requested != 5 || sum.Targeted != 5 || len(sum.Skipped) != 0 {
		t.Fatalf("requested/targeted/skipped = %d/%d/%d", sum.Requested, sum.Targeted, len(sum.Skipped))
	}
	if sum.Succeeded != 4 || sum.Failed != 1 {
		t.Fatalf("succeeded/failed = %d/%d, want 4/1", sum.Succeeded, sum.Failed)
	}
	if len(sum.Results) != 5 {
		t.Fatalf("results = %d, want one per target", len(sum.Results))
	}
	// Results keep target order regardless of worker scheduling.
	for i, r := range sum.Results {
		if r.SubmissionID != ids[i] {
			t.Fatalf("results[%d] = %s, want %s", i, r.SubmissionID, ids[i])
		}
	}
	bad := sum.Results[2]
	if bad.OK || bad.Error == nil || *bad.Error != "grading backend unavailable" {
		t.Fatalf("failed item = %+v", bad)
	}
	good := sum.Results[0]
	if !good.OK || good.Grade == nil || *good.Grade != "MERIT" {
		t.Fatalf("succeeded item = %+v", good)
	}
}

func TestRunSkipReasons(t *testing.T) {
	store := newGateStore()
	missing := uuid.New()
	graded := store.addReady(constants.SubmissionGraded)
	notReady := store.addReady(constants.SubmissionExtracted)
	store.runs[notReady].Status = constants.RunStatusNeedsOCR
	ok := store.addReady(constants.SubmissionExtracted)

	grader := &fakeGrader{}
	sum, err := NewOrchestrator(store, grader, nil).Run(context.Background(),
		[]uuid.UUID{missing, graded, notReady, ok}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if sum.Requested != 4 || sum.Targeted != 1 {
		t.Fatalf("requested/targeted = %d/%d, want 4/1", sum.Requested, sum.Targeted)
	}
	want := map[uuid.UUID]string{
		missing:  SkipMissing,
		graded:   SkipAlreadyDone,
		notReady: SkipExtractionNotReady,
	}
	if len(sum.Skipped) != len(want) {
		t.Fatalf("skipped = %+v", sum.Skipped)
	}
	for _, s := range sum.Skipped {
		if want[s.SubmissionID] != s.Reason {
			t.Errorf("skip %s reason = %q, want %q", s.SubmissionID, s.Reason, want[s.SubmissionID])
		}
	}
	if len(grader.calls) != 1 || grader.calls[0] != ok {
		t.Fatalf("grader calls = %v, want only %s", grader.calls, ok)
	}
}

func TestRunRetryFailedOnly(t *testing.T) {
	store := newGateStore()
	extracted := store.addReady(constants.SubmissionExtracted)
	// Grading failed previously; the extraction run itself is still DONE,
	// so the quality gate passes.
	failed := store.addReady(constants.SubmissionFailed)

	sum, err := NewOrchestrator(store, &fakeGrader{}, nil).Run(context.Background(),
		[]uuid.UUID{extracted, failed}, Options{RetryFailedOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Targeted != 1 {
		t.Fatalf("targeted = %d, want 1", sum.Targeted)
	}
	if len(sum.Skipped) != 1 || sum.Skipped[0].SubmissionID != extracted || sum.Skipped[0].Reason != SkipNotFailed {
		t.Fatalf("skipped = %+v", sum.Skipped)
	}
	if sum.Results[0].SubmissionID != failed {
		t.Fatalf("graded %s, want %s", sum.Results[0].SubmissionID, failed)
	}
}

func TestRunForceRetryRegradesDone(t *testing.T) {
	store := newGateStore()
	graded := store.addReady(constants.SubmissionGraded)

	sum, err := NewOrchestrator(store, &fakeGrader{}, nil).Run(context.Background(),
		[]uuid.UUID{graded}, Options{ForceRetry: true})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Targeted != 1 || sum.Succeeded != 1 {
		t.Fatalf("targeted/succeeded = %d/%d, want 1/1", sum.Targeted, sum.Succeeded)
	}
}

func TestRunAllowNeedsOCROverride(t *testing.T) {
	store := newGateStore()
	id := store.addReady(constants.SubmissionNeedsOCR)
	store.runs[id].Status = constants.RunStatusNeedsOCR

	sum, err := NewOrchestrator(store, &fakeGrader{}, nil).Run(context.Background(),
		[]uuid.UUID{id}, Options{AllowNeedsOCR: true})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Targeted != 1 || sum.Succeeded != 1 {
		t.Fatalf("targeted/succeeded = %d/%d, want 1/1", sum.Targeted, sum.Succeeded)
	}
}

func TestRunNoGraderConfigured(t *testing.T) {
	if _, err := NewOrchestrator(newGateStore(), nil, nil).Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error without a grader")
	}
}
