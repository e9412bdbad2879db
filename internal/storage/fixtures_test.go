package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFixturesFromDir(t *testing.T) {
	records, err := LoadFixturesFromDir("testdata")
	if err != nil {
		t.Fatalf("LoadFixturesFromDir failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	first := records[0]
	if first.SampleLanguage != "go" || first.ProductName != "Cloud Run" {
		t.Errorf("unexpected first record: %+v", first)
	}
	if len(first.RegionTags) != 2 {
		t.Errorf("expected 2 region tags, got %v", first.RegionTags)
	}
	wantDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if first.EvaluationDate == nil || !first.EvaluationDate.Equal(wantDate) {
		t.Errorf("unexpected evaluation date: %v", first.EvaluationDate)
	}
	if first.LastUpdatedDate == nil || first.LastUpdatedDate.Day() != 20 {
		t.Errorf("expected date-only last_updated_date to parse, got %v", first.LastUpdatedDate)
	}
	if first.RawCode != nil {
		t.Errorf("expected no raw code, got %q", *first.RawCode)
	}

	// Mapping payloads are re-encoded as JSON strings
	second := records[1]
	if second.EvaluationDataRawJSON == nil {
		t.Fatal("expected payload on second record")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(*second.EvaluationDataRawJSON), &payload); err != nil {
		t.Fatalf("re-encoded payload is not JSON: %v", err)
	}
	if _, ok := payload["llm_fix_summary_for_code_generation"]; !ok {
		t.Errorf("payload lost its keys: %v", payload)
	}
	if second.RawCode == nil {
		t.Error("expected raw code on second record")
	}
	if second.LastUpdatedDate != nil {
		t.Errorf("expected nil last_updated_date, got %v", second.LastUpdatedDate)
	}

	// Malformed payload strings are kept verbatim
	third := records[2]
	if third.EvaluationDataRawJSON == nil || *third.EvaluationDataRawJSON != "not json at all" {
		t.Errorf("expected verbatim payload, got %v", third.EvaluationDataRawJSON)
	}
}

func TestLoadFixturesRejectsBadRecords(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"missing-language.yaml": "evaluations:\n  - product_name: Storage\n",
		"bad-date.yaml":         "evaluations:\n  - sample_language: go\n    product_name: Storage\n    evaluation_date: yesterday\n",
	}

	for name, content := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := LoadFixturesFromFile(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadFixturesEmptyDir(t *testing.T) {
	if _, err := LoadFixturesFromDir(t.TempDir()); err == nil {
		t.Error("expected error for a directory without fixtures")
	}
}
