package draft

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }

func sampleSpecDraft() ParsedSpecDraft {
	return ParsedSpecDraft{
		Unit: SpecUnit{
			UnitCode:  "5",
			UnitTitle: "Quality Control in Engineering",
			Level:     intp(3),
			Credits:   intp(15),
			SpecIssue: strp("Issue 4"),
		},
		LearningOutcomes: []LearningOutcome{
			{
				LOCode:      "LO1",
				Description: "Understand quality control principles",
				Criteria: []Criterion{
					{ACCode: "P1", GradeBand: "PASS", Description: "Explain the purpose of quality control."},
					{ACCode: "M1", GradeBand: "MERIT", Description: "Compare inspection techniques."},
				},
			},
			{
				LOCode:      "LO2",
				Description: "Apply statistical process control",
				// Optional fields absent on purpose.
				Criteria: []Criterion{
					{ACCode: "D1", GradeBand: "DISTINCTION", Description: "Evaluate the impact."},
				},
			},
		},
	}
}

func TestSpecDraftRoundTrip(t *testing.T) {
	orig := sampleSpecDraft()
	b, err := MarshalSpecDraft(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back ParsedSpecDraft
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(orig, back) {
		t.Fatalf("round trip diverged:\norig %+v\nback %+v", orig, back)
	}
}

func TestSpecDraftOptionalFieldsAbsentNotNull(t *testing.T) {
	d := sampleSpecDraft()
	d.Unit.Level = nil
	b, err := MarshalSpecDraft(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if strings.Contains(s, `"level":null`) {
		t.Error("absent optional must be omitted, not null")
	}
	if strings.Contains(s, `"essentialContent"`) {
		t.Error("unset essentialContent must be omitted")
	}
}

func TestSpecDraftSchemaRejectsBadACCode(t *testing.T) {
	d := sampleSpecDraft()
	d.LearningOutcomes[0].Criteria[0].ACCode = "X9"
	if _, err := MarshalSpecDraft(d); err == nil {
		t.Fatal("schema must reject a non-PMD criterion code")
	}
}

func TestSpecDraftSchemaRejectsBadBand(t *testing.T) {
	d := sampleSpecDraft()
	d.LearningOutcomes[0].Criteria[0].GradeBand = "GOLD"
	if _, err := MarshalSpecDraft(d); err == nil {
		t.Fatal("schema must reject an unknown grade band")
	}
}

func TestBriefDraftRoundTrip(t *testing.T) {
	orig := ParsedBriefDraft{
		Header: BriefHeader{
			Qualification:   strp("BTEC Level 3"),
			AssignmentTitle: strp("Monitoring Production Quality"),
			IssueDate:       strp("12/09/2024"),
			AcademicYear:    strp("2024/25"),
		},
		Tasks: []BriefTask{
			{
				N:     1,
				Label: "Task 1",
				Title: strp("Investigate quality systems"),
				Pages: []int{1},
				Text:  "Review the procedures.",
			},
			{
				N:     2,
				Label: "Task 2",
				Pages: []int{1, 2},
				Text:  "a) Produce a chart.",
				Parts: []TaskPart{
					{Key: "a", Text: "Produce a chart."},
					{Key: "a.i", Text: "common-cause variation"},
				},
			},
		},
		Tables: []TableBlock{
			{
				Kind:    TableKindStructured,
				Headers: []string{"Measure", "Before QC", "After QC"},
				Rows:    [][]string{{"Scrap cost", "1200", "300"}, {"Rework hours", "85", "12"}},
			},
			{
				Kind:    TableKindUnstructured,
				Caption: strp("Table 2: Observations"),
				Text:    "wrapped text without columns",
				Warning: strp("column structure could not be inferred"),
			},
		},
		DetectedCriterionCodes: []string{"D1", "M1", "P1"},
		EndMatter:              strp("Sources of information\nBS 6143."),
	}

	b, err := MarshalBriefDraft(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back ParsedBriefDraft
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(orig, back) {
		t.Fatalf("round trip diverged:\norig %+v\nback %+v", orig, back)
	}
}

func TestBriefDraftSchemaRejectsBadPartKey(t *testing.T) {
	d := ParsedBriefDraft{
		Tasks: []BriefTask{{
			N: 1, Label: "Task 1", Text: "x",
			Parts: []TaskPart{{Key: "1.a", Text: "reversed key scheme"}},
		}},
		DetectedCriterionCodes: []string{},
	}
	if _, err := MarshalBriefDraft(d); err == nil {
		t.Fatal("schema must reject a part key outside the a / a.i scheme")
	}
}
