package briefparse

import (
	"regexp"
	"strings"

	"github.com/unitflow/unitflow/internal/draft"
)

var (
	reTableCaption = regexp.MustCompile(`(?i)^table\s+(\d{1,2})\b[:.\s]*(.*)$`)
	reQCHeader     = regexp.MustCompile(`(?i)before\s+QC.*after\s+QC`)
	reColumnSplit  = regexp.MustCompile(`\s{2,}|\t`)
	reNumericCell  = regexp.MustCompile(`^[\d.,%\-+()£$€]+$`)
)

// detectTables finds table-like regions: known costing layouts
// ("Before QC"/"After QC"), generic aligned multi-column runs, and explicit
// "Table N" captions. When column structure cannot be confidently inferred
// the block is returned UNSTRUCTURED with the verbatim text and a warning;
// column boundaries are never guessed.
func detectTables(text string) []draft.TableBlock {
	lines := strings.Split(text, "\n")
	var blocks []draft.TableBlock

	for i := 0; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			continue
		}

		if reQCHeader.MatchString(t) {
			block, consumed := parseQCTable(lines, i)
			blocks = append(blocks, block)
			i += consumed
			continue
		}

		if g := reTableCaption.FindStringSubmatch(t); g != nil {
			caption := strings.TrimSpace(t)
			block, consumed := parseAlignedTable(lines, i+1)
			if block == nil {
				warning := "table caption found but column structure could not be inferred"
				raw, n := collectBlock(lines, i+1)
				blocks = append(blocks, draft.TableBlock{
					Kind:    draft.TableKindUnstructured,
					Caption: &caption,
					Text:    raw,
					Warning: &warning,
				})
				i += n
				continue
			}
			block.Caption = &caption
			blocks = append(blocks, *block)
			// The table starts one line past the caption; consumed is
			// relative to that header line.
			i += consumed + 1
			continue
		}

		if block, consumed := parseAlignedTable(lines, i); block != nil {
			blocks = append(blocks, *block)
			i += consumed
		}
	}
	return blocks
}

// parseQCTable handles the known costing layout: a "Before QC"/"After QC"
// header row followed by label + two numeric columns.
func parseQCTable(lines []string, start int) (draft.TableBlock, int) {
	headers := []string{"Measure", "Before QC", "After QC"}
	var rows [][]string
	consumed := 0

	for j := start + 1; j < len(lines); j++ {
		t := strings.TrimRight(lines[j], " \t")
		if strings.TrimSpace(t) == "" {
			break
		}
		cols := splitColumns(t)
		if len(cols) < 3 {
			break
		}
		last2 := cols[len(cols)-2:]
		if !reNumericCell.MatchString(last2[0]) || !reNumericCell.MatchString(last2[1]) {
			break
		}
		label := strings.TrimSpace(strings.Join(cols[:len(cols)-2], " "))
		rows = append(rows, []string{label, last2[0], last2[1]})
		consumed = j - start
	}

	if len(rows) < 2 {
		// Not enough numeric rows to trust the layout.
		warning := "costing header found but fewer than 2 numeric rows followed"
		raw, n := collectBlock(lines, start)
		return draft.TableBlock{
			Kind:    draft.TableKindUnstructured,
			Text:    raw,
			Warning: &warning,
		}, n
	}
	return draft.TableBlock{Kind: draft.TableKindStructured, Headers: headers, Rows: rows}, consumed
}

// parseAlignedTable accepts a run of 3+ consecutive lines that all split
// into the same column count (>=2); the first line becomes the header row.
func parseAlignedTable(lines []string, start int) (*draft.TableBlock, int) {
	if start >= len(lines) {
		return nil, 0
	}
	first := splitColumns(strings.TrimRight(lines[start], " \t"))
	if len(first) < 2 {
		return nil, 0
	}
	want := len(first)
	var rows [][]string
	consumed := 0
	for j := start + 1; j < len(lines); j++ {
		t := strings.TrimRight(lines[j], " \t")
		if strings.TrimSpace(t) == "" {
			break
		}
		cols := splitColumns(t)
		if len(cols) != want {
			break
		}
		rows = append(rows, cols)
		consumed = j - start
	}
	if len(rows) < 2 {
		return nil, 0
	}
	return &draft.TableBlock{Kind: draft.TableKindStructured, Headers: first, Rows: rows}, consumed
}

// collectBlock gathers lines until the next blank line.
func collectBlock(lines []string, start int) (string, int) {
	var out []string
	n := 0
	for j := start; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == "" {
			break
		}
		out = append(out, lines[j])
		n = j - start + 1
	}
	return strings.Join(out, "\n"), n
}

func splitColumns(line string) []string {
	parts := reColumnSplit.Split(strings.TrimSpace(line), -1)
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
