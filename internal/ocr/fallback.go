package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/unitflow/unitflow/constants"
	"github.com/unitflow/unitflow/internal/extract"
)

// Coordinator decides when reconstructed text is too thin to use and merges
// OCR output back into the extraction result's page-array shape.
type Coordinator struct {
	client           Client
	meaningfulCutoff int
	logger           *slog.Logger
}

func NewCoordinator(client Client, meaningfulCutoff int, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if meaningfulCutoff <= 0 {
		meaningfulCutoff = 200
	}
	return &Coordinator{client: client, meaningfulCutoff: meaningfulCutoff, logger: logger}
}

// Outcome describes what the fallback did to the extraction result.
type Outcome struct {
	Applied bool
	Model   string
}

// Apply runs the OCR fallback against res in place and reports whether OCR
// pages replaced the originals. OCR failure or insufficient OCR output
// leaves the original result untouched; the caller marks the document
// NEEDS_OCR, a human-actionable state rather than an error state.
func (c *Coordinator) Apply(ctx context.Context, path string, res *extract.Result) Outcome {
	if res.Kind != constants.PDF {
		return Outcome{}
	}
	if combinedLen(res.Pages) >= c.meaningfulCutoff {
		return Outcome{}
	}
	if c.client == nil {
		res.Warnings = append(res.Warnings, "ocr fallback unavailable: no client configured")
		return Outcome{}
	}

	pdfBytes, err := os.ReadFile(path)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("ocr fallback skipped: read pdf: %v", err))
		return Outcome{}
	}

	out, err := c.client.OCR(ctx, pdfBytes)
	if err != nil {
		c.logger.Warn("ocr.fallback.failed", "path", path, "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("ocr fallback failed: %v", err))
		return Outcome{}
	}
	res.Warnings = append(res.Warnings, out.Warnings...)

	ocrPages := make([]extract.Page, 0, len(out.Pages))
	ocrChars := 0
	for i, p := range out.Pages {
		nr := p.PageNumber
		if nr <= 0 {
			nr = i + 1
		}
		ocrChars += len(strings.TrimSpace(p.Text))
		ocrPages = append(ocrPages, extract.Page{
			PageNumber: nr,
			Text:       p.Text,
			Confidence: p.Confidence,
			Width:      p.Width,
			Height:     p.Height,
		})
	}

	// Only adopt OCR output that itself clears the meaningful-content
	// threshold; a second unusable page set helps nobody.
	if ocrChars < c.meaningfulCutoff {
		c.logger.Info("ocr.fallback.insufficient", "path", path, "ocr_chars", ocrChars, "cutoff", c.meaningfulCutoff)
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("ocr output below meaningful-content threshold (%d < %d)", ocrChars, c.meaningfulCutoff))
		return Outcome{}
	}

	res.Pages = ocrPages
	res.Method = "ocr"
	res.IsScanned = false
	res.OverallConfidence = meanConfidence(ocrPages)
	c.logger.Info("ocr.fallback.applied", "path", path, "pages", len(ocrPages), "chars", ocrChars, "model", out.Model)
	return Outcome{Applied: true, Model: out.Model}
}

func combinedLen(pages []extract.Page) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p.Text))
	}
	return n
}

func meanConfidence(pages []extract.Page) float64 {
	if len(pages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pages {
		sum += p.Confidence
	}
	return sum / float64(len(pages))
}
