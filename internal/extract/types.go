package extract

import (
	"time"

	"github.com/unitflow/unitflow/internal/common"
)

// Page is one reconstructed page of a document.
type Page struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
}

// Result is the extractor's complete, self-describing output. It is never
// an error for a document to contain no text; only catastrophic I/O failures
// surface as errors.
type Result struct {
	Kind              string   `json:"kind"` // constants.PDF | constants.DOCX
	DetectedMime      string   `json:"detected_mime,omitempty"`
	IsScanned         bool     `json:"is_scanned"`
	OverallConfidence float64  `json:"overall_confidence"`
	Pages             []Page   `json:"pages"`
	Warnings          []string `json:"warnings,omitempty"`
	Method            string   `json:"method"` // "pdf-layout" | "pdf-subprocess" | "docx" | "ocr"
}

// CombinedText joins page texts with form-feed page breaks, the same
// page-delimiter convention the subprocess fallback emits.
func (r Result) CombinedText() string {
	var n int
	for _, p := range r.Pages {
		n += len(p.Text) + 1
	}
	b := make([]byte, 0, n)
	for i, p := range r.Pages {
		if i > 0 {
			b = append(b, '\f')
		}
		b = append(b, p.Text...)
	}
	return string(b)
}

// Config carries the extraction engine's tuning constants. Immutable per
// invocation; pipelines with different configs can run in parallel.
type Config struct {
	PageConcurrency   int
	PageTimeout       time.Duration
	MaxPages          int
	ScannedCutoff     int
	LineYTolerance    float64
	SpaceGap          float64
	Pdftotext         string
	SubprocessTimeout time.Duration
	CoverPages        int // >0 limits extraction to the leading page window
}

// ConfigFromCommon maps the env-driven app config onto an extractor config.
func ConfigFromCommon(c common.ExtractConfig) Config {
	return Config{
		PageConcurrency:   c.PageConcurrency,
		PageTimeout:       c.PageTimeout,
		MaxPages:          c.MaxPages,
		ScannedCutoff:     c.ScannedCutoff,
		LineYTolerance:    c.LineYTolerance,
		SpaceGap:          c.SpaceGap,
		Pdftotext:         c.Pdftotext,
		SubprocessTimeout: c.SubprocessTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.PageConcurrency <= 0 {
		c.PageConcurrency = 6
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = 15 * time.Second
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 500
	}
	if c.ScannedCutoff <= 0 {
		c.ScannedCutoff = 50
	}
	if c.LineYTolerance <= 0 {
		c.LineYTolerance = 4
	}
	if c.SpaceGap <= 0 {
		c.SpaceGap = 3
	}
	if c.Pdftotext == "" {
		c.Pdftotext = "pdftotext"
	}
	if c.SubprocessTimeout <= 0 {
		c.SubprocessTimeout = 15 * time.Second
	}
	return c
}
