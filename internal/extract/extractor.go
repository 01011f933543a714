// Package extract turns raw PDF/DOCX bytes into per-page text plus
// confidence via a layout-reconstruction heuristic, with a subprocess
// fallback for documents the primary parser cannot open.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/unitflow/unitflow/constants"
)

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg.withDefaults(), runner: execRunner{}, logger: logger}
}

// WithRunner swaps the subprocess runner; tests stub external binaries here.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// CoverOnly returns a derived extractor limited to the leading page window.
// The config is copied, so the full and cover pipelines can run in parallel.
func (e *Extractor) CoverOnly(pages int) *Extractor {
	cfg := e.cfg
	if pages < 1 {
		pages = 1
	}
	if pages > 3 {
		pages = 3
	}
	cfg.CoverPages = pages
	return &Extractor{cfg: cfg, runner: e.runner, logger: e.logger}
}

// Extract picks a strategy based on the declared kind, sniffing content when
// the kind is unknown. It returns an error only for catastrophic I/O
// failure; "no text" is a scored, warned result, not an error.
func (e *Extractor) Extract(ctx context.Context, path, declaredKind string) (Result, error) {
	kind := declaredKind
	if kind == "" || kind == constants.UNKNOWN {
		sniffed, err := sniffKind(path)
		if err != nil {
			return Result{}, err
		}
		kind = sniffed
	}

	e.logger.Debug("extract.start", "path", path, "kind", kind)
	switch kind {
	case constants.PDF:
		return e.extractPDF(ctx, path)
	case constants.DOCX:
		return e.extractDOCX(path)
	default:
		return Result{}, fmt.Errorf("unsupported document kind: %q", kind)
	}
}

// sniffKind inspects magic bytes: %PDF for PDF, PK zip header for DOCX.
func sniffKind(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 4)
	n, _ := f.Read(head)
	head = head[:n]
	switch {
	case len(head) >= 4 && string(head[:4]) == "%PDF":
		return constants.PDF, nil
	case len(head) >= 2 && head[0] == 'P' && head[1] == 'K':
		return constants.DOCX, nil
	default:
		return constants.UNKNOWN, nil
	}
}

// score fills in per-document confidence and the scanned verdict.
// Page confidence is already set (0.9 text, 0 empty); document confidence is
// max(0.6, min(0.95, pagesWithText/totalPages*0.95)), or 0 for a scanned
// document (combined text under the scanned cutoff).
func (e *Extractor) score(res *Result) {
	combined := 0
	withText := 0
	for _, p := range res.Pages {
		t := strings.TrimSpace(p.Text)
		combined += len(t)
		if t != "" {
			withText++
		}
	}

	if combined < e.cfg.ScannedCutoff {
		// A cover window is intentionally short; thin text there says
		// nothing about the body, so the scanned classification only
		// applies to full-document extraction.
		res.IsScanned = e.cfg.CoverPages == 0
		res.OverallConfidence = 0
		return
	}
	res.IsScanned = false

	total := len(res.Pages)
	if total == 0 {
		res.OverallConfidence = 0
		return
	}
	conf := float64(withText) / float64(total) * 0.95
	if conf > 0.95 {
		conf = 0.95
	}
	if conf < 0.6 {
		conf = 0.6
	}
	res.OverallConfidence = conf
}
