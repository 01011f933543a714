package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		slog.Error("exec failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
	} else {
		slog.Debug("exec ok",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// extractSubprocess runs the degraded-but-robust path: an isolated external
// process with its own timeout. A process boundary bounds the blast radius
// of the occasional malformed document that can hang an in-process parser,
// and is trivially killable on timeout.
func (e *Extractor) extractSubprocess(ctx context.Context, path string) (Result, error) {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.SubprocessTimeout)
	defer cancel()

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(sctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	res := Result{Kind: "PDF", DetectedMime: "application/pdf", Method: "pdf-subprocess"}
	if err != nil {
		// Its own output failing to parse (or the process dying) is a
		// warning, not an exception; the caller still gets a scored,
		// empty result.
		res.Warnings = append(res.Warnings, fmt.Sprintf("subprocess extractor failed: %v: %s", err, truncate(string(errb), 512)))
		e.score(&res)
		return res, nil
	}

	res.Pages = splitSubprocessPages(string(out))
	if e.cfg.CoverPages > 0 && len(res.Pages) > e.cfg.CoverPages {
		res.Pages = res.Pages[:e.cfg.CoverPages]
	}
	e.score(&res)
	return res, nil
}

// splitSubprocessPages splits structured subprocess stdout on the explicit
// form-feed page-delimiter convention.
func splitSubprocessPages(text string) []Page {
	raw := strings.Split(text, "\f")
	pages := make([]Page, 0, len(raw))
	for i, t := range raw {
		t = strings.TrimRight(t, "\n")
		p := Page{PageNumber: i + 1, Text: t}
		if strings.TrimSpace(t) != "" {
			p.Confidence = 0.9
		} else {
			p.Text = strings.TrimSpace(t)
		}
		pages = append(pages, p)
	}
	// A trailing delimiter yields one final empty page; drop it.
	if n := len(pages); n > 1 && pages[n-1].Text == "" {
		pages = pages[:n-1]
	}
	return pages
}
