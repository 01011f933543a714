package briefparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Config carries the brief parser's tuning constants.
type Config struct {
	// EquationConfidenceCutoff is the recognition confidence below which
	// an equation token's recognized text is not trusted and the raw
	// token is kept verbatim instead. Default 0.86.
	EquationConfidenceCutoff float64
}

func (c Config) withDefaults() Config {
	if c.EquationConfidenceCutoff <= 0 {
		c.EquationConfidenceCutoff = 0.86
	}
	return c
}

// Extraction and OCR backends mark non-text regions with inline placeholder
// tokens: `[image]`, `[figure: pareto chart]`, `[equation: E = mc^2 (0.93)]`.
// The trailing parenthesised number on equation/formula tokens is the
// backend's recognition confidence.
var reInlineToken = regexp.MustCompile(`(?i)\[(equation|formula|image|figure)(?::\s*([^\[\]]*?))?\s*(?:\((0?\.\d{1,3}|1(?:\.0{1,3})?)\))?\]`)

// resolveInlineTokens rewrites one line's placeholder tokens. Recognized
// equation text replaces its token only at or above the confidence cutoff;
// every other token survives verbatim, so no content is invented or lost.
func resolveInlineTokens(line string, cutoff float64, page int) (string, []string) {
	var warns []string
	out := reInlineToken.ReplaceAllStringFunc(line, func(tok string) string {
		g := reInlineToken.FindStringSubmatch(tok)
		kind := strings.ToLower(g[1])
		body := strings.TrimSpace(g[2])
		if (kind == "equation" || kind == "formula") && body != "" && g[3] != "" {
			if conf, err := strconv.ParseFloat(g[3], 64); err == nil {
				if conf >= cutoff {
					return body
				}
				warns = append(warns, fmt.Sprintf(
					"equation token on page %d below confidence cutoff (%.2f < %.2f); kept verbatim", page, conf, cutoff))
			}
		}
		return tok
	})
	return out, warns
}
