package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/terra-clan/evalboard/internal/models"
)

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func record(lang, product, link string, score float64, date *time.Time, tags ...string) *models.EvaluationRecord {
	return &models.EvaluationRecord{
		SampleLanguage:         lang,
		ProductName:            product,
		GithubLink:             link,
		OverallComplianceScore: score,
		EvaluationDate:         date,
		RegionTags:             tags,
	}
}

func TestMemoryLanguagesDistinctSorted(t *testing.T) {
	repo := NewMemoryRepository([]*models.EvaluationRecord{
		record("python", "Storage", "l1", 50, nil, "a"),
		record("go", "Storage", "l2", 50, nil, "a"),
		record("python", "Run", "l3", 50, nil, "a"),
	})

	got, err := repo.Languages(context.Background())
	if err != nil {
		t.Fatalf("Languages failed: %v", err)
	}
	want := []string{"go", "python"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMemoryLanguagesEmpty(t *testing.T) {
	got, err := NewMemoryRepository(nil).Languages(context.Background())
	if err != nil {
		t.Fatalf("Languages failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestMemoryProductAreasCountDistinctLinks(t *testing.T) {
	// Two records share one source link but land in different product areas.
	repo := NewMemoryRepository([]*models.EvaluationRecord{
		record("go", "Cloud Run", "shared", 80, day("2024-01-01"), "run_a"),
		record("go", "Storage", "shared", 60, day("2024-01-01"), "storage_a"),
		record("python", "Storage", "other", 10, day("2024-01-01"), "storage_a"),
	})

	areas, err := repo.ProductAreas(context.Background(), "go")
	if err != nil {
		t.Fatalf("ProductAreas failed: %v", err)
	}
	if len(areas) != 2 {
		t.Fatalf("expected 2 areas, got %+v", areas)
	}
	for _, a := range areas {
		if a.Samples != 1 {
			t.Errorf("area %s: expected 1 sample, got %d", a.Name, a.Samples)
		}
	}
	// Equal sample counts fall back to name order
	if areas[0].Name != "Cloud Run" || areas[1].Name != "Storage" {
		t.Errorf("unexpected order: %+v", areas)
	}
}

func TestMemoryProductAreasDuplicateTagsKeepSamples(t *testing.T) {
	base := []*models.EvaluationRecord{
		record("go", "Storage", "link-1", 70, day("2024-01-01"), "a"),
		record("go", "Storage", "link-2", 75, day("2024-01-01"), "b"),
	}
	dup := append(base, record("go", "Storage", "link-1", 70, day("2024-01-01"), "a", "c"))

	before, _ := NewMemoryRepository(base).ProductAreas(context.Background(), "go")
	after, _ := NewMemoryRepository(dup).ProductAreas(context.Background(), "go")

	if before[0].Samples != 2 || after[0].Samples != 2 {
		t.Errorf("samples changed by duplicated link: before %d, after %d", before[0].Samples, after[0].Samples)
	}
}

func TestMemoryProductAreasAverageFullPrecision(t *testing.T) {
	repo := NewMemoryRepository([]*models.EvaluationRecord{
		record("go", "Storage", "l1", 70, nil, "a"),
		record("go", "Storage", "l2", 71, nil, "b"),
		record("go", "Storage", "l3", 71, nil, "c"),
	})

	areas, _ := repo.ProductAreas(context.Background(), "go")
	want := 212.0 / 3.0
	if areas[0].Score != want {
		t.Errorf("expected unrounded average %v, got %v", want, areas[0].Score)
	}
}

func TestMemoryProductAreasOrderedBySamples(t *testing.T) {
	repo := NewMemoryRepository([]*models.EvaluationRecord{
		record("go", "Alpha", "a1", 50, nil, "x"),
		record("go", "Beta", "b1", 50, nil, "x"),
		record("go", "Beta", "b2", 50, nil, "x"),
	})

	areas, _ := repo.ProductAreas(context.Background(), "go")
	if areas[0].Name != "Beta" || areas[1].Name != "Alpha" {
		t.Errorf("expected Beta first, got %+v", areas)
	}
}

func TestMemoryRegionTagsMostRecentWins(t *testing.T) {
	repo := NewMemoryRepository([]*models.EvaluationRecord{
		record("go", "Cloud Run", "link-old", 40, day("2024-01-01"), "run_quickstart"),
		record("go", "Cloud Run", "link-new", 90, day("2024-06-01"), "run_quickstart", "run_hello"),
		record("go", "Cloud Run", "link-x", 10, day("2024-02-01"), "run_hello"),
	})

	tags, err := repo.RegionTags(context.Background(), "go", "Cloud Run")
	if err != nil {
		t.Fatalf("RegionTags failed: %v", err)
	}

	want := []models.RegionTagSummary{
		{Name: "run_hello", Score: 90},
		{Name: "run_quickstart", Score: 90},
	}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("got %+v, want %+v", tags, want)
	}
}

func TestMemoryRegionTagsTieBrokenByLink(t *testing.T) {
	same := day("2024-06-01")
	repo := NewMemoryRepository([]*models.EvaluationRecord{
		record("go", "Run", "https://github.com/a", 30, same, "t"),
		record("go", "Run", "https://github.com/b", 60, same, "t"),
	})

	tags, _ := repo.RegionTags(context.Background(), "go", "Run")
	if len(tags) != 1 || tags[0].Score != 60 {
		t.Errorf("expected the larger link to win, got %+v", tags)
	}
}

func TestMemoryRegionTagsNullDateLoses(t *testing.T) {
	repo := NewMemoryRepository([]*models.EvaluationRecord{
		record("go", "Run", "zzz", 30, nil, "t"),
		record("go", "Run", "aaa", 60, day("2020-01-01"), "t"),
	})

	tags, _ := repo.RegionTags(context.Background(), "go", "Run")
	if tags[0].Score != 60 {
		t.Errorf("expected dated record to win, got %+v", tags)
	}
}

func TestMemoryRegionTagsOrderedWorstFirst(t *testing.T) {
	repo := NewMemoryRepository([]*models.EvaluationRecord{
		record("go", "Run", "l1", 90, nil, "good"),
		record("go", "Run", "l2", 20, nil, "bad"),
		record("go", "Run", "l3", 55, nil, "meh"),
	})

	tags, _ := repo.RegionTags(context.Background(), "go", "Run")
	names := []string{tags[0].Name, tags[1].Name, tags[2].Name}
	if !reflect.DeepEqual(names, []string{"bad", "meh", "good"}) {
		t.Errorf("unexpected order: %v", names)
	}
}

func TestMemoryLatestEvaluation(t *testing.T) {
	repo := NewMemoryRepository([]*models.EvaluationRecord{
		record("go", "Run", "old", 40, day("2024-01-01"), "t"),
		record("go", "Run", "new", 90, day("2024-06-01"), "t"),
		record("go", "Storage", "other", 10, day("2025-01-01"), "t"),
	})

	rec, err := repo.LatestEvaluation(context.Background(), "go", "Run", "t")
	if err != nil {
		t.Fatalf("LatestEvaluation failed: %v", err)
	}
	if rec == nil || rec.GithubLink != "new" {
		t.Fatalf("expected newest record, got %+v", rec)
	}

	missing, err := repo.LatestEvaluation(context.Background(), "go", "Run", "absent")
	if err != nil {
		t.Fatalf("LatestEvaluation failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unmatched tag, got %+v", missing)
	}
}

func TestMemoryIdempotent(t *testing.T) {
	records, err := LoadFixturesFromDir("testdata")
	if err != nil {
		t.Fatalf("load fixtures: %v", err)
	}
	repo := NewMemoryRepository(records)
	ctx := context.Background()

	a, _ := repo.RegionTags(ctx, "go", "Cloud Run")
	b, _ := repo.RegionTags(ctx, "go", "Cloud Run")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("repeated calls differ: %+v vs %+v", a, b)
	}
}

func TestMemoryReloadFromDir(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository([]*models.EvaluationRecord{
		record("rust", "Spanner", "https://github.com/x/y/blob/main/a.rs", 80, nil, "spanner_query"),
	})

	n, err := repo.ReloadFromDir("testdata")
	if err != nil {
		t.Fatalf("ReloadFromDir failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 records, got %d", n)
	}
	languages, _ := repo.Languages(ctx)
	if !reflect.DeepEqual(languages, []string{"go", "python"}) {
		t.Errorf("unexpected languages after reload: %v", languages)
	}

	// A broken directory keeps the current records
	if _, err := repo.ReloadFromDir(filepath.Join("testdata", "missing")); err == nil {
		t.Error("expected error for a missing directory")
	}
	languages, _ = repo.Languages(ctx)
	if !reflect.DeepEqual(languages, []string{"go", "python"}) {
		t.Errorf("records lost after failed reload: %v", languages)
	}
}

func TestValidateTableID(t *testing.T) {
	valid := []string{"proj.dataset.table", "my-proj:dataset.table", "evaluations", "public.evaluations"}
	for _, id := range valid {
		if err := ValidateTableID(id); err != nil {
			t.Errorf("%q: unexpected error %v", id, err)
		}
	}

	invalid := []string{"", "tbl`; DROP TABLE x", "a b", "t\"x"}
	for _, id := range invalid {
		if err := ValidateTableID(id); err == nil {
			t.Errorf("%q: expected error", id)
		}
	}
}

func TestQuotePostgresTable(t *testing.T) {
	if got := QuotePostgresTable("public.evaluations"); got != `"public"."evaluations"` {
		t.Errorf("unexpected quoting: %s", got)
	}
}
