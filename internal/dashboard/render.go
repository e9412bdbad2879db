package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/terra-clan/evalboard/internal/models"
)

const (
	dateLayout     = "January 2, 2006"
	notAvailable   = "N/A"
	noFixesMessage = "No fixes suggested"
	missingCode    = "Raw code is missing from the data."
)

// Band is the colour class of a compliance score
type Band string

const (
	BandCritical  Band = "critical"
	BandPoor      Band = "poor"
	BandFair      Band = "fair"
	BandGood      Band = "good"
	BandExcellent Band = "excellent"
)

// ScoreBand maps a 0-100 score onto its band. Upper bounds are inclusive.
func ScoreBand(score float64) Band {
	switch {
	case score <= 60:
		return BandCritical
	case score <= 70:
		return BandPoor
	case score <= 80:
		return BandFair
	case score <= 90:
		return BandGood
	default:
		return BandExcellent
	}
}

// CodeSource fetches source text for a code host link. *client.Client satisfies it.
type CodeSource interface {
	FetchCode(ctx context.Context, link string) (string, error)
}

// Criterion is one rendered entry of the criteria breakdown
type Criterion struct {
	Name           string
	Score          string
	Weight         string
	Assessment     string
	Recommendation string
}

// DetailView is a fully rendered evaluation detail
type DetailView struct {
	Score       float64
	Band        Band
	GithubLink  string
	LastUpdated string
	Evaluated   string

	Problems []string
	Criteria []Criterion
	Fixes    []string

	// AnalysisError is set when the evaluation payload could not be used
	AnalysisError string

	Code      string
	CodeError string
}

// Text is a JSON value that may be either a string or a list of strings
type Text struct {
	Items []string
	List  bool
}

// UnmarshalJSON accepts a string, a list, or null. Non-string list entries
// are kept in their JSON form.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Text{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text{Items: []string{s}}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		items := make([]string, 0, len(raw))
		for _, r := range raw {
			var item string
			if err := json.Unmarshal(r, &item); err != nil {
				item = string(r)
			}
			items = append(items, item)
		}
		*t = Text{Items: items, List: true}
		return nil
	}

	*t = Text{Items: []string{string(data)}}
	return nil
}

// Empty reports whether no text was supplied
func (t Text) Empty() bool {
	for _, item := range t.Items {
		if strings.TrimSpace(item) != "" {
			return false
		}
	}
	return true
}

// analysis is the usable part of an evaluation payload. Each member is
// decoded on its own so one badly typed field only blanks its own section.
type analysis struct {
	Error      string
	Problems   []string
	Criteria   []criterionRaw
	FixSummary Text
}

type criterionRaw struct {
	Name            string
	Score           json.RawMessage
	Weight          json.RawMessage
	Assessment      Text
	Recommendations Text
}

// Render builds the detail view. Source code comes from the record when
// embedded, otherwise from code; a fetch failure is kept in CodeError.
// detail must not be nil.
func Render(ctx context.Context, detail *models.EvaluationDetail, code CodeSource) *DetailView {
	view := &DetailView{
		Score:       detail.OverallComplianceScore,
		Band:        ScoreBand(detail.OverallComplianceScore),
		GithubLink:  detail.GithubLink,
		LastUpdated: formatDate(detail.LastUpdatedDate),
		Evaluated:   formatDate(detail.EvaluationDate),
	}

	a, err := decodeAnalysis(detail.EvaluationData)
	switch {
	case err != nil:
		slog.Warn("unusable evaluation payload", "github_link", detail.GithubLink, "error", err)
		view.AnalysisError = err.Error()
	case a.Error != "":
		view.AnalysisError = a.Error
	}

	view.Problems = a.Problems
	for _, c := range a.Criteria {
		view.Criteria = append(view.Criteria, renderCriterion(c))
	}
	view.Fixes = FixLines(a.FixSummary)

	view.Code, view.CodeError = loadCode(ctx, detail, code)

	return view
}

func decodeAnalysis(payload json.RawMessage) (analysis, error) {
	var a analysis
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return a, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return analysis{}, fmt.Errorf("failed to decode evaluation data: %w", err)
	}

	decodeField(fields, "error", &a.Error)
	decodeField(fields, "llm_fix_summary_for_code_generation", &a.FixSummary)

	var problems Text
	decodeField(fields, "identified_generic_problem_categories", &problems)
	for _, p := range problems.Items {
		if strings.TrimSpace(p) != "" {
			a.Problems = append(a.Problems, p)
		}
	}

	var criteria []json.RawMessage
	decodeField(fields, "criteria_breakdown", &criteria)
	for _, raw := range criteria {
		var cf map[string]json.RawMessage
		if err := json.Unmarshal(raw, &cf); err != nil || cf == nil {
			slog.Debug("skipping criterion that is not an object", "value", string(raw))
			continue
		}

		var c criterionRaw
		var name Text
		decodeField(cf, "criterion_name", &name)
		if !name.Empty() {
			c.Name = strings.Join(name.Items, ", ")
		}
		c.Score = cf["score"]
		c.Weight = cf["weight"]
		decodeField(cf, "assessment", &c.Assessment)
		decodeField(cf, "recommendations_for_llm_fix", &c.Recommendations)
		a.Criteria = append(a.Criteria, c)
	}

	return a, nil
}

// decodeField decodes fields[key] into dst, leaving dst zero when the member
// is absent or has the wrong type
func decodeField(fields map[string]json.RawMessage, key string, dst any) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Debug("ignoring badly typed evaluation field", "field", key, "error", err)
	}
}

func renderCriterion(c criterionRaw) Criterion {
	name := c.Name
	if name == "" {
		name = notAvailable
	}

	assessment := strings.Join(c.Assessment.Items, "\n")
	if c.Assessment.Empty() {
		assessment = notAvailable
	}

	return Criterion{
		Name:           name,
		Score:          formatNumber(c.Score),
		Weight:         formatNumber(c.Weight),
		Assessment:     assessment,
		Recommendation: RecommendationText(c.Recommendations),
	}
}

// RecommendationText renders a list as "- item" lines and passes a string
// through unchanged. Absent text becomes "N/A".
func RecommendationText(t Text) string {
	if t.Empty() {
		return notAvailable
	}
	if !t.List {
		return t.Items[0]
	}

	lines := make([]string, len(t.Items))
	for i, item := range t.Items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

// FixLines normalizes the fix summary into line items. A string is split on
// newlines, blank lines are dropped, and an absent summary yields a single
// placeholder line.
func FixLines(t Text) []string {
	var lines []string
	for _, item := range t.Items {
		parts := []string{item}
		if !t.List {
			parts = strings.Split(item, "\n")
		}
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				lines = append(lines, p)
			}
		}
	}

	if len(lines) == 0 {
		return []string{noFixesMessage}
	}
	return lines
}

func loadCode(ctx context.Context, detail *models.EvaluationDetail, code CodeSource) (string, string) {
	if detail.RawCode != nil && *detail.RawCode != "" {
		return *detail.RawCode, ""
	}
	if detail.GithubLink == "" || code == nil {
		return "", missingCode
	}

	text, err := code.FetchCode(ctx, detail.GithubLink)
	if err != nil {
		slog.Warn("failed to fetch source code", "github_link", detail.GithubLink, "error", err)
		return "", err.Error()
	}
	return text, ""
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return notAvailable
	}
	return t.UTC().Format(dateLayout)
}

// formatNumber prints a JSON number without trailing zeros and anything
// else as text. Absent values become "N/A".
func formatNumber(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return notAvailable
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// WriteText prints a plain-text rendering of the view
func (v *DetailView) WriteText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Overall Score: %s (%s)\n", strconv.FormatFloat(v.Score, 'f', -1, 64), v.Band)
	if v.GithubLink != "" {
		fmt.Fprintf(&b, "Source: %s\n", v.GithubLink)
	}
	fmt.Fprintf(&b, "Last Updated: %s\n", v.LastUpdated)
	fmt.Fprintf(&b, "Evaluated: %s\n", v.Evaluated)

	if v.AnalysisError != "" {
		fmt.Fprintf(&b, "\nEvaluation data unavailable: %s\n", v.AnalysisError)
	}

	b.WriteString("\nIdentified Problems:\n")
	if len(v.Problems) == 0 {
		b.WriteString("  none\n")
	}
	for _, p := range v.Problems {
		fmt.Fprintf(&b, "  [%s]\n", p)
	}

	b.WriteString("\nCriteria Breakdown:\n")
	for _, c := range v.Criteria {
		fmt.Fprintf(&b, "  %s (Score: %s / Weight: %s)\n", c.Name, c.Score, c.Weight)
		fmt.Fprintf(&b, "    Assessment: %s\n", indent(c.Assessment, "      "))
		fmt.Fprintf(&b, "    Recommendation: %s\n", indent(c.Recommendation, "      "))
	}

	b.WriteString("\nSuggested Fixes:\n")
	for _, f := range v.Fixes {
		fmt.Fprintf(&b, "  * %s\n", f)
	}

	b.WriteString("\nCode File:\n")
	if v.CodeError != "" {
		fmt.Fprintf(&b, "  Could not retrieve code. %s\n", v.CodeError)
	} else {
		b.WriteString(v.Code)
		if !strings.HasSuffix(v.Code, "\n") {
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// indent puts continuation lines of a multi-line value under its label
func indent(s, prefix string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	return "\n" + prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
