package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"syscall"
	"testing"

	"github.com/terra-clan/evalboard/internal/evaluations"
	"github.com/terra-clan/evalboard/internal/models"
	"github.com/terra-clan/evalboard/internal/storage"
)

func TestWaitForShutdownServerError(t *testing.T) {
	serverErr := make(chan error, 1)
	serverErr <- errors.New("listen tcp :8080: bind: address already in use")

	reloads := 0
	if code := waitForShutdown(serverErr, make(chan os.Signal), func() { reloads++ }); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if reloads != 0 {
		t.Errorf("unexpected reloads: %d", reloads)
	}
}

func TestWaitForShutdownReloadsOnHangup(t *testing.T) {
	signals := make(chan os.Signal, 3)
	signals <- syscall.SIGHUP
	signals <- syscall.SIGHUP
	signals <- syscall.SIGTERM

	reloads := 0
	if code := waitForShutdown(make(chan error), signals, func() { reloads++ }); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
	if reloads != 2 {
		t.Errorf("expected 2 reloads, got %d", reloads)
	}
}

func TestReloadFixtures(t *testing.T) {
	dir := t.TempDir()
	fixture := `evaluations:
  - sample_language: kotlin
    product_name: Firestore
    region_tags: [firestore_query]
    overall_compliance_score: 81
    github_link: https://github.com/x/y/blob/main/Query.kt
`
	if err := os.WriteFile(filepath.Join(dir, "evaluations.yaml"), []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	ctx := context.Background()
	repo := storage.NewMemoryRepository([]*models.EvaluationRecord{
		{SampleLanguage: "go", ProductName: "Cloud Run", GithubLink: "https://github.com/x/y/blob/main/a.go", RegionTags: []string{"run_quickstart"}},
	})
	service := evaluations.NewService(repo)

	reloadFixtures(ctx, repo, service, dir)

	languages, err := service.Languages(ctx)
	if err != nil {
		t.Fatalf("Languages: %v", err)
	}
	if !reflect.DeepEqual(languages, []string{"kotlin"}) {
		t.Errorf("expected reloaded records, got %v", languages)
	}

	// A bad directory leaves the records in place
	reloadFixtures(ctx, repo, service, filepath.Join(dir, "missing"))
	languages, _ = service.Languages(ctx)
	if !reflect.DeepEqual(languages, []string{"kotlin"}) {
		t.Errorf("records lost after failed reload: %v", languages)
	}
}
