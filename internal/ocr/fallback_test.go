package ocr

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unitflow/unitflow/constants"
	"github.com/unitflow/unitflow/internal/extract"
)

type fakeClient struct {
	result Result
	err    error
	calls  int
}

func (f *fakeClient) OCR(_ context.Context, _ []byte) (Result, error) {
	f.calls++
	return f.result, f.err
}

func writeTempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func longText(n int) string { return strings.Repeat("x", n) }

func TestApplySkipsNonPDF(t *testing.T) {
	fc := &fakeClient{}
	c := NewCoordinator(fc, 200, nil)
	res := extract.Result{Kind: constants.DOCX}

	out := c.Apply(context.Background(), "ignored", &res)
	if out.Applied || fc.calls != 0 {
		t.Fatal("OCR must never trigger for non-PDF sources")
	}
}

func TestApplySkipsWhenTextIsMeaningful(t *testing.T) {
	fc := &fakeClient{}
	c := NewCoordinator(fc, 200, nil)
	res := extract.Result{
		Kind:  constants.PDF,
		Pages: []extract.Page{{PageNumber: 1, Text: longText(250)}},
	}

	out := c.Apply(context.Background(), "ignored", &res)
	if out.Applied || fc.calls != 0 {
		t.Fatal("OCR must not trigger above the meaningful-content threshold")
	}
}

func TestApplyReplacesPagesOnSuccess(t *testing.T) {
	fc := &fakeClient{result: Result{
		OK:    true,
		Model: "vision-lg",
		Pages: []PageResult{
			{PageNumber: 1, Text: longText(150), Confidence: 0.8},
			{PageNumber: 2, Text: longText(150), Confidence: 0.6},
		},
	}}
	c := NewCoordinator(fc, 200, nil)
	res := extract.Result{
		Kind:      constants.PDF,
		IsScanned: true,
		Pages:     []extract.Page{{PageNumber: 1, Text: ""}},
		Method:    "pdf-layout",
	}

	out := c.Apply(context.Background(), writeTempPDF(t), &res)
	if !out.Applied {
		t.Fatal("expected OCR pages to be adopted")
	}
	if out.Model != "vision-lg" {
		t.Errorf("model = %q", out.Model)
	}
	if len(res.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(res.Pages))
	}
	if res.Method != "ocr" {
		t.Errorf("method = %q, want ocr", res.Method)
	}
	if res.IsScanned {
		t.Error("successful OCR clears the scanned flag")
	}
	if math.Abs(res.OverallConfidence-0.7) > 1e-9 {
		t.Errorf("confidence = %v, want mean 0.7", res.OverallConfidence)
	}
}

func TestApplyLeavesResultUntouchedOnClientError(t *testing.T) {
	fc := &fakeClient{err: errors.New("service unavailable")}
	c := NewCoordinator(fc, 200, nil)
	res := extract.Result{
		Kind:   constants.PDF,
		Pages:  []extract.Page{{PageNumber: 1, Text: "thin"}},
		Method: "pdf-layout",
	}

	out := c.Apply(context.Background(), writeTempPDF(t), &res)
	if out.Applied {
		t.Fatal("failed OCR must not apply")
	}
	if res.Method != "pdf-layout" || len(res.Pages) != 1 || res.Pages[0].Text != "thin" {
		t.Errorf("original result mutated: %+v", res)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning recording the OCR failure")
	}
}

func TestApplyRejectsInsufficientOCROutput(t *testing.T) {
	fc := &fakeClient{result: Result{
		OK:    true,
		Pages: []PageResult{{PageNumber: 1, Text: "barely anything", Confidence: 0.9}},
	}}
	c := NewCoordinator(fc, 200, nil)
	res := extract.Result{
		Kind:   constants.PDF,
		Pages:  []extract.Page{{PageNumber: 1, Text: ""}},
		Method: "pdf-layout",
	}

	out := c.Apply(context.Background(), writeTempPDF(t), &res)
	if out.Applied {
		t.Fatal("OCR output under the threshold must not replace pages")
	}
	if res.Method != "pdf-layout" {
		t.Errorf("method = %q", res.Method)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "below meaningful-content threshold") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing threshold warning, got %v", res.Warnings)
	}
}

func TestApplyNumbersPagesWithoutNumbers(t *testing.T) {
	fc := &fakeClient{result: Result{
		OK: true,
		Pages: []PageResult{
			{Text: longText(120), Confidence: 0.8},
			{Text: longText(120), Confidence: 0.8},
		},
	}}
	c := NewCoordinator(fc, 200, nil)
	res := extract.Result{Kind: constants.PDF}

	out := c.Apply(context.Background(), writeTempPDF(t), &res)
	if !out.Applied {
		t.Fatal("expected apply")
	}
	if res.Pages[0].PageNumber != 1 || res.Pages[1].PageNumber != 2 {
		t.Errorf("pages not renumbered: %+v", res.Pages)
	}
}
