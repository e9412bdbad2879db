package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// TestPostgresMatchesMemory seeds the fixtures into a real database and
// checks that the SQL aggregations agree with the in-memory ones.
func TestPostgresMatchesMemory(t *testing.T) {
	dsn := os.Getenv("EVALBOARD_TEST_DSN")
	if dsn == "" {
		t.Skip("EVALBOARD_TEST_DSN not set, skipping")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	table := fmt.Sprintf("evaluations_test_%d", time.Now().UnixNano())
	migrations := filepath.Join("..", "..", "migrations")

	if err := MigrateFromDSN(ctx, dsn, migrations, table); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	records, err := LoadFixturesFromDir("testdata")
	if err != nil {
		t.Fatalf("load fixtures: %v", err)
	}

	seeder, err := NewSeeder(ctx, dsn, table)
	if err != nil {
		t.Fatalf("seeder: %v", err)
	}
	defer seeder.Close()
	if _, err := seeder.Seed(ctx, records, true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	repo, err := NewPostgresRepository(ctx, PostgresConfig{DSN: dsn, Table: table})
	if err != nil {
		t.Fatalf("repository: %v", err)
	}
	defer repo.Close()
	mem := NewMemoryRepository(records)

	gotLangs, err := repo.Languages(ctx)
	if err != nil {
		t.Fatalf("Languages: %v", err)
	}
	wantLangs, _ := mem.Languages(ctx)
	if !reflect.DeepEqual(gotLangs, wantLangs) {
		t.Errorf("languages: got %v, want %v", gotLangs, wantLangs)
	}

	gotAreas, err := repo.ProductAreas(ctx, "go")
	if err != nil {
		t.Fatalf("ProductAreas: %v", err)
	}
	wantAreas, _ := mem.ProductAreas(ctx, "go")
	if !reflect.DeepEqual(gotAreas, wantAreas) {
		t.Errorf("product areas: got %+v, want %+v", gotAreas, wantAreas)
	}

	gotTags, err := repo.RegionTags(ctx, "go", "Cloud Run")
	if err != nil {
		t.Fatalf("RegionTags: %v", err)
	}
	wantTags, _ := mem.RegionTags(ctx, "go", "Cloud Run")
	if !reflect.DeepEqual(gotTags, wantTags) {
		t.Errorf("region tags: got %+v, want %+v", gotTags, wantTags)
	}

	rec, err := repo.LatestEvaluation(ctx, "go", "Cloud Run", "run_quickstart")
	if err != nil {
		t.Fatalf("LatestEvaluation: %v", err)
	}
	if rec == nil || rec.OverallComplianceScore != 92 {
		t.Errorf("unexpected latest evaluation: %+v", rec)
	}

	missing, err := repo.LatestEvaluation(ctx, "go", "Cloud Run", "absent")
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for absent tag, got (%+v, %v)", missing, err)
	}
}
