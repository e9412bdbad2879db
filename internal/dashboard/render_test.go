package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/terra-clan/evalboard/internal/models"
)

type fakeCode struct {
	text  string
	err   error
	links []string
}

func (f *fakeCode) FetchCode(ctx context.Context, link string) (string, error) {
	f.links = append(f.links, link)
	return f.text, f.err
}

func TestScoreBand(t *testing.T) {
	tests := []struct {
		score float64
		want  Band
	}{
		{0, BandCritical},
		{60, BandCritical},
		{60.5, BandPoor},
		{70, BandPoor},
		{80, BandFair},
		{90, BandGood},
		{90.1, BandExcellent},
		{100, BandExcellent},
	}
	for _, tt := range tests {
		if got := ScoreBand(tt.score); got != tt.want {
			t.Errorf("ScoreBand(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestFixLines(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []string
	}{
		{"list", `["Add timeouts", " Close client "]`, []string{"Add timeouts", "Close client"}},
		{"newline string", `"Add timeouts\n\n  \nClose client\n"`, []string{"Add timeouts", "Close client"}},
		{"empty list", `[]`, []string{"No fixes suggested"}},
		{"null", `null`, []string{"No fixes suggested"}},
		{"blank string", `"   "`, []string{"No fixes suggested"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var text Text
			if err := json.Unmarshal([]byte(tt.payload), &text); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := FixLines(text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if got := FixLines(Text{}); !reflect.DeepEqual(got, []string{"No fixes suggested"}) {
		t.Errorf("absent summary: got %q", got)
	}
}

func TestRecommendationText(t *testing.T) {
	var list, str Text
	json.Unmarshal([]byte(`["Wrap errors","Use context"]`), &list)
	json.Unmarshal([]byte(`"Wrap errors with %w"`), &str)

	if got := RecommendationText(list); got != "- Wrap errors\n- Use context" {
		t.Errorf("list: got %q", got)
	}
	if got := RecommendationText(str); got != "Wrap errors with %w" {
		t.Errorf("string: got %q", got)
	}
	if got := RecommendationText(Text{}); got != "N/A" {
		t.Errorf("absent: got %q", got)
	}
}

func TestRenderFullDetail(t *testing.T) {
	evaluated := time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC)
	code := "package main\n"
	detail := &models.EvaluationDetail{
		OverallComplianceScore: 72,
		EvaluationDate:         &evaluated,
		GithubLink:             "https://github.com/x/y/blob/main/a.go",
		RawCode:                &code,
		EvaluationData: json.RawMessage(`{
			"identified_generic_problem_categories": ["Error Handling", "Naming"],
			"criteria_breakdown": [
				{"criterion_name": "Errors", "score": 7.5, "weight": 0.25, "assessment": "Mostly fine", "recommendations_for_llm_fix": ["Wrap errors"]},
				{"score": null}
			],
			"llm_fix_summary_for_code_generation": "Wrap errors\nAdd timeouts"
		}`),
	}

	src := &fakeCode{}
	view := Render(context.Background(), detail, src)

	if view.Band != BandFair {
		t.Errorf("expected fair band, got %s", view.Band)
	}
	if view.Evaluated != "June 1, 2024" || view.LastUpdated != "N/A" {
		t.Errorf("unexpected dates: %q %q", view.Evaluated, view.LastUpdated)
	}
	if !reflect.DeepEqual(view.Problems, []string{"Error Handling", "Naming"}) {
		t.Errorf("unexpected problems: %v", view.Problems)
	}

	wantCriteria := []Criterion{
		{Name: "Errors", Score: "7.5", Weight: "0.25", Assessment: "Mostly fine", Recommendation: "- Wrap errors"},
		{Name: "N/A", Score: "N/A", Weight: "N/A", Assessment: "N/A", Recommendation: "N/A"},
	}
	if !reflect.DeepEqual(view.Criteria, wantCriteria) {
		t.Errorf("criteria:\n got %+v\nwant %+v", view.Criteria, wantCriteria)
	}
	if !reflect.DeepEqual(view.Fixes, []string{"Wrap errors", "Add timeouts"}) {
		t.Errorf("unexpected fixes: %v", view.Fixes)
	}
	if view.Code != code || view.CodeError != "" {
		t.Errorf("embedded code not used: %q %q", view.Code, view.CodeError)
	}
	if len(src.links) != 0 {
		t.Errorf("embedded code must not be fetched, got %v", src.links)
	}
}

func TestRenderFetchesMissingCode(t *testing.T) {
	detail := &models.EvaluationDetail{
		GithubLink:     "https://github.com/x/y/blob/main/a.go",
		EvaluationData: json.RawMessage("null"),
	}

	src := &fakeCode{text: "print('hi')\n"}
	view := Render(context.Background(), detail, src)
	if view.Code != "print('hi')\n" {
		t.Errorf("unexpected code: %q", view.Code)
	}
	if !reflect.DeepEqual(src.links, []string{detail.GithubLink}) {
		t.Errorf("unexpected fetches: %v", src.links)
	}
	if !reflect.DeepEqual(view.Fixes, []string{"No fixes suggested"}) {
		t.Errorf("unexpected fixes: %v", view.Fixes)
	}
}

func TestRenderCodeFailureKeepsRestOfView(t *testing.T) {
	detail := &models.EvaluationDetail{
		OverallComplianceScore: 95,
		GithubLink:             "https://github.com/x/y/blob/main/gone.go",
		EvaluationData:         json.RawMessage(`{"identified_generic_problem_categories":["Naming"]}`),
	}

	src := &fakeCode{err: errors.New("HTTP 500: Failed to fetch code.: GitHub returned status: 404 Not Found")}
	view := Render(context.Background(), detail, src)

	if !strings.Contains(view.CodeError, "404 Not Found") {
		t.Errorf("expected code error, got %q", view.CodeError)
	}
	if view.Band != BandExcellent || len(view.Problems) != 1 {
		t.Errorf("rest of view lost: %+v", view)
	}

	var buf bytes.Buffer
	if err := view.WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Overall Score: 95 (excellent)", "[Naming]", "Could not retrieve code.", "No fixes suggested"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderBadlyTypedFieldKeepsOtherSections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, v *DetailView)
	}{
		{
			name: "numeric criterion name",
			payload: `{
				"identified_generic_problem_categories": ["Naming"],
				"criteria_breakdown": [{"criterion_name": 42, "score": 6}, "not an object", {"criterion_name": "Docs", "assessment": "Thin"}],
				"llm_fix_summary_for_code_generation": ["Add docs"]
			}`,
			check: func(t *testing.T, v *DetailView) {
				if !reflect.DeepEqual(v.Problems, []string{"Naming"}) {
					t.Errorf("problems lost: %v", v.Problems)
				}
				if len(v.Criteria) != 2 || v.Criteria[0].Score != "6" || v.Criteria[1].Name != "Docs" {
					t.Errorf("unexpected criteria: %+v", v.Criteria)
				}
				if !reflect.DeepEqual(v.Fixes, []string{"Add docs"}) {
					t.Errorf("fixes lost: %v", v.Fixes)
				}
			},
		},
		{
			name: "string problems",
			payload: `{
				"identified_generic_problem_categories": "Error Handling",
				"criteria_breakdown": [{"criterion_name": "Errors", "score": 5}],
				"llm_fix_summary_for_code_generation": "Wrap errors"
			}`,
			check: func(t *testing.T, v *DetailView) {
				if !reflect.DeepEqual(v.Problems, []string{"Error Handling"}) {
					t.Errorf("unexpected problems: %v", v.Problems)
				}
				if len(v.Criteria) != 1 || v.Criteria[0].Name != "Errors" {
					t.Errorf("criteria lost: %+v", v.Criteria)
				}
			},
		},
		{
			name: "criteria not a list",
			payload: `{
				"identified_generic_problem_categories": ["Naming"],
				"criteria_breakdown": {"criterion_name": "Errors"},
				"llm_fix_summary_for_code_generation": "Wrap errors"
			}`,
			check: func(t *testing.T, v *DetailView) {
				if len(v.Criteria) != 0 {
					t.Errorf("expected blank criteria, got %+v", v.Criteria)
				}
				if !reflect.DeepEqual(v.Problems, []string{"Naming"}) || !reflect.DeepEqual(v.Fixes, []string{"Wrap errors"}) {
					t.Errorf("other sections lost: %v %v", v.Problems, v.Fixes)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := "x"
			detail := &models.EvaluationDetail{RawCode: &code, EvaluationData: json.RawMessage(tt.payload)}
			v := Render(context.Background(), detail, nil)
			if v.AnalysisError != "" {
				t.Errorf("unexpected analysis error: %q", v.AnalysisError)
			}
			tt.check(t, v)
		})
	}
}

func TestRenderParseFailureSentinel(t *testing.T) {
	detail := &models.EvaluationDetail{
		EvaluationData: json.RawMessage(`{"error":"Failed to parse evaluation data."}`),
	}

	view := Render(context.Background(), detail, nil)
	if view.AnalysisError != "Failed to parse evaluation data." {
		t.Errorf("unexpected analysis error: %q", view.AnalysisError)
	}
	if view.CodeError != "Raw code is missing from the data." {
		t.Errorf("unexpected code error: %q", view.CodeError)
	}
}
