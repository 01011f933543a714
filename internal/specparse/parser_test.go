package specparse

import (
	"strings"
	"testing"

	"github.com/unitflow/unitflow/constants"
)

const sampleSpec = `Unit 5: Quality Control in Engineering
Level: 3
Credit value: 15
Issue 4

Learning Outcomes and Assessment Criteria

LO1 Understand quality control principles
P1 Explain the purpose of quality control in a production environment.
P2 Describe two inspection techniques used in quality control.
M1 Compare the effectiveness of the inspection techniques described.

LO2 Apply statistical process control
P3 Produce a control chart for a given data set.
D1 Evaluate the impact of statistical process control on product quality,
justifying conclusions with collected data.

Essential Content
LO1 Quality control principles: definitions, standards.
`

func TestParseBuildsLOTree(t *testing.T) {
	d, warns := New().Parse(sampleSpec)
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if len(d.LearningOutcomes) != 2 {
		t.Fatalf("got %d LOs, want 2", len(d.LearningOutcomes))
	}

	lo1 := d.LearningOutcomes[0]
	if lo1.LOCode != "LO1" {
		t.Errorf("lo1 code = %q", lo1.LOCode)
	}
	if lo1.Description != "Understand quality control principles" {
		t.Errorf("lo1 description = %q", lo1.Description)
	}
	codes := make([]string, 0, len(lo1.Criteria))
	for _, c := range lo1.Criteria {
		codes = append(codes, c.ACCode)
	}
	// Band rank then number: P1 P2 M1.
	if got := strings.Join(codes, " "); got != "P1 P2 M1" {
		t.Errorf("lo1 criteria = %q, want %q", got, "P1 P2 M1")
	}

	lo2 := d.LearningOutcomes[1]
	if len(lo2.Criteria) != 2 {
		t.Fatalf("lo2 criteria = %d, want 2", len(lo2.Criteria))
	}
	// Multi-line description accumulates until the next boundary.
	d1 := lo2.Criteria[1]
	if d1.ACCode != "D1" {
		t.Fatalf("lo2 last criterion = %q, want D1", d1.ACCode)
	}
	if !strings.Contains(d1.Description, "justifying conclusions") {
		t.Errorf("D1 description lost its continuation line: %q", d1.Description)
	}
	// Content after the terminal heading is outside the window.
	for _, lo := range d.LearningOutcomes {
		for _, c := range lo.Criteria {
			if strings.Contains(c.Description, "Essential Content") {
				t.Error("terminal heading leaked into a description")
			}
		}
	}
}

func TestParseGradeBands(t *testing.T) {
	d, _ := New().Parse(sampleSpec)
	byCode := map[string]constants.GradeBand{}
	for _, lo := range d.LearningOutcomes {
		for _, c := range lo.Criteria {
			byCode[c.ACCode] = c.GradeBand
		}
	}
	for code, want := range map[string]constants.GradeBand{
		"P1": constants.BandPass,
		"M1": constants.BandMerit,
		"D1": constants.BandDistinction,
	} {
		if byCode[code] != want {
			t.Errorf("band(%s) = %q, want %q", code, byCode[code], want)
		}
	}
}

func TestParseUnitHeader(t *testing.T) {
	d, _ := New().Parse(sampleSpec)
	u := d.Unit
	if u.UnitCode != "5" {
		t.Errorf("unit code = %q, want 5", u.UnitCode)
	}
	if u.UnitTitle != "Quality Control in Engineering" {
		t.Errorf("unit title = %q", u.UnitTitle)
	}
	if u.Level == nil || *u.Level != 3 {
		t.Errorf("level = %v, want 3", u.Level)
	}
	if u.Credits == nil || *u.Credits != 15 {
		t.Errorf("credits = %v, want 15", u.Credits)
	}
	if u.SpecIssue == nil || *u.SpecIssue != "Issue 4" {
		t.Errorf("spec issue = %v", u.SpecIssue)
	}
}

func TestParseMissingHeadingWarns(t *testing.T) {
	d, warns := New().Parse("Unit 7: Something\nNo criteria table here.")
	if len(d.LearningOutcomes) != 0 {
		t.Fatalf("expected no LOs, got %d", len(d.LearningOutcomes))
	}
	if len(warns) == 0 || !strings.Contains(warns[0], "not found") {
		t.Fatalf("expected missing-heading warning, got %v", warns)
	}
}

func TestParseOCRConfusedTokens(t *testing.T) {
	text := "Learning Outcomes and Assessment Criteria\n" +
		"LO1 Investigate things\n" +
		"Pl0 Describe the first confused criterion.\n" +
		"MI Compare something.\n"
	d, _ := New().Parse(text)
	if len(d.LearningOutcomes) != 1 {
		t.Fatalf("LOs = %d", len(d.LearningOutcomes))
	}
	codes := map[string]bool{}
	for _, c := range d.LearningOutcomes[0].Criteria {
		codes[c.ACCode] = true
	}
	if !codes["P10"] {
		t.Errorf("Pl0 should normalize to P10, got %v", codes)
	}
	if !codes["M1"] {
		t.Errorf("MI should normalize to M1, got %v", codes)
	}
}

func TestParseFlattenedTableRow(t *testing.T) {
	// OCR collapsed a table row: several tokens back-to-back on one line.
	text := "Learning Outcomes and Assessment Criteria\n" +
		"LO1 Understand things\n" +
		"P1 Explain the concept. P2 Describe the process. M1 Compare approaches.\n"
	d, _ := New().Parse(text)
	cs := d.LearningOutcomes[0].Criteria
	if len(cs) != 3 {
		t.Fatalf("criteria = %d, want 3 from the flattened row", len(cs))
	}
	if cs[0].ACCode != "P1" || !strings.Contains(cs[0].Description, "Explain the concept") {
		t.Errorf("first criterion = %+v", cs[0])
	}
	if strings.Contains(cs[0].Description, "Describe the process") {
		t.Error("second token's text bled into the first criterion")
	}
}

func TestParseDuplicateACCodeFirstWins(t *testing.T) {
	text := "Learning Outcomes and Assessment Criteria\n" +
		"LO1 Understand things\n" +
		"P1 The original description.\n" +
		"P1 A duplicated row from a page overlap.\n"
	d, _ := New().Parse(text)
	cs := d.LearningOutcomes[0].Criteria
	if len(cs) != 1 {
		t.Fatalf("criteria = %d, want 1 after dedupe", len(cs))
	}
	if !strings.Contains(cs[0].Description, "original") {
		t.Errorf("dedupe must keep the first occurrence, got %q", cs[0].Description)
	}
}

func TestParseStripsFooterNoise(t *testing.T) {
	text := "Learning Outcomes and Assessment Criteria\n" +
		"LO1 Understand things\n" +
		"P1 Explain the concept\n" +
		"42\n" +
		"Issue 3 – June 2024 © Pearson Education Limited 2024\n" +
		"across multiple settings.\n"
	d, _ := New().Parse(text)
	cs := d.LearningOutcomes[0].Criteria
	if len(cs) != 1 {
		t.Fatalf("criteria = %d, want 1", len(cs))
	}
	desc := cs[0].Description
	if strings.Contains(desc, "Pearson") || strings.Contains(desc, "42") {
		t.Errorf("footer noise leaked into description: %q", desc)
	}
	if !strings.Contains(desc, "across multiple settings") {
		t.Errorf("continuation after footer lost: %q", desc)
	}
}

func TestFindCriterionTokensValidatesRange(t *testing.T) {
	toks := findCriterionTokens("P0 invalid, P100 also invalid, P7 fine")
	if len(toks) != 1 || toks[0].code != "P7" {
		t.Fatalf("tokens = %+v, want only P7", toks)
	}
}

func TestFindCriterionTokensGluedText(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"P10Investigate the process", []string{"P10"}},
		{"P1Investigate the process", []string{"P1"}},
		{"P1x is part of a longer word", nil},
		{"MI Discuss the findings", []string{"M1"}},
	}
	for _, tt := range tests {
		toks := findCriterionTokens(tt.line)
		var codes []string
		for _, tok := range toks {
			codes = append(codes, tok.code)
		}
		if len(codes) != len(tt.want) {
			t.Errorf("%q: tokens = %v, want %v", tt.line, codes, tt.want)
			continue
		}
		for i := range codes {
			if codes[i] != tt.want[i] {
				t.Errorf("%q: tokens = %v, want %v", tt.line, codes, tt.want)
			}
		}
	}
	// Glued text starts the description immediately after the code.
	toks := findCriterionTokens("P1Investigate the process")
	if len(toks) != 1 || toks[0].descStart != len("P1") {
		t.Fatalf("descStart = %+v, want offset after P1", toks)
	}
}
