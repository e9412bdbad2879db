package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/terra-clan/evalboard/internal/models"
)

// MemoryRepository implements Repository over records held in memory.
// The aggregations mirror the warehouse SQL: group, then reduce each group.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []*models.EvaluationRecord
}

// NewMemoryRepository creates a repository over the given records
func NewMemoryRepository(records []*models.EvaluationRecord) *MemoryRepository {
	return &MemoryRepository{records: records}
}

// Replace swaps the record set
func (r *MemoryRepository) Replace(records []*models.EvaluationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = records
}

// ReloadFromDir re-reads the fixture directory and swaps in its records.
// On error the current records are kept.
func (r *MemoryRepository) ReloadFromDir(dir string) (int, error) {
	records, err := LoadFixturesFromDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to reload fixtures: %w", err)
	}
	r.Replace(records)
	return len(records), nil
}

// Languages returns the distinct sample languages in ascending order
func (r *MemoryRepository) Languages(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	languages := make([]string, 0)
	for _, rec := range r.records {
		if seen[rec.SampleLanguage] {
			continue
		}
		seen[rec.SampleLanguage] = true
		languages = append(languages, rec.SampleLanguage)
	}
	sort.Strings(languages)

	return languages, nil
}

// ProductAreas groups a language's records by product name
func (r *MemoryRepository) ProductAreas(ctx context.Context, language string) ([]models.ProductAreaSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type group struct {
		links map[string]bool
		sum   float64
		rows  int
	}

	groups := make(map[string]*group)
	for _, rec := range r.records {
		if rec.SampleLanguage != language {
			continue
		}
		g, ok := groups[rec.ProductName]
		if !ok {
			g = &group{links: make(map[string]bool)}
			groups[rec.ProductName] = g
		}
		g.links[rec.GithubLink] = true
		g.sum += rec.OverallComplianceScore
		g.rows++
	}

	areas := make([]models.ProductAreaSummary, 0, len(groups))
	for name, g := range groups {
		areas = append(areas, models.ProductAreaSummary{
			Name:    name,
			Samples: int64(len(g.links)),
			Score:   g.sum / float64(g.rows),
		})
	}

	sort.Slice(areas, func(i, j int) bool {
		if areas[i].Samples != areas[j].Samples {
			return areas[i].Samples > areas[j].Samples
		}
		return areas[i].Name < areas[j].Name
	})

	return areas, nil
}

// RegionTags returns the most recent score per region tag
func (r *MemoryRepository) RegionTags(ctx context.Context, language, productName string) ([]models.RegionTagSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := make(map[string]*models.EvaluationRecord)
	for _, rec := range r.records {
		if rec.SampleLanguage != language || rec.ProductName != productName {
			continue
		}
		for _, tag := range rec.RegionTags {
			if cur, ok := latest[tag]; !ok || rec.NewerThan(cur) {
				latest[tag] = rec
			}
		}
	}

	tags := make([]models.RegionTagSummary, 0, len(latest))
	for tag, rec := range latest {
		tags = append(tags, models.RegionTagSummary{
			Name:  tag,
			Score: rec.OverallComplianceScore,
		})
	}

	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Score != tags[j].Score {
			return tags[i].Score < tags[j].Score
		}
		return tags[i].Name < tags[j].Name
	})

	return tags, nil
}

// LatestEvaluation returns the most recent matching record, or nil
func (r *MemoryRepository) LatestEvaluation(ctx context.Context, language, productName, regionTag string) (*models.EvaluationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *models.EvaluationRecord
	for _, rec := range r.records {
		if rec.SampleLanguage != language || rec.ProductName != productName || !rec.HasTag(regionTag) {
			continue
		}
		if best == nil || rec.NewerThan(best) {
			best = rec
		}
	}

	if best == nil {
		return nil, nil
	}

	found := *best
	return &found, nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}
