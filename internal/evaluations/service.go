package evaluations

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/terra-clan/evalboard/internal/metrics"
	"github.com/terra-clan/evalboard/internal/models"
	"github.com/terra-clan/evalboard/internal/storage"
)

// Operation names, used for cache keys, logs and metrics
const (
	OpLanguages    = "languages"
	OpProductAreas = "product_areas"
	OpRegionTags   = "region_tags"
	OpDetails      = "details"
)

// ParseFailureMessage replaces an evaluation payload that is not valid JSON
const ParseFailureMessage = "Failed to parse evaluation data."

var parseFailurePayload = json.RawMessage(`{"error":"` + ParseFailureMessage + `"}`)

// Service is the query/aggregation layer over the evaluation table
type Service struct {
	repo  storage.Repository
	cache Cache
}

// Option configures the service
type Option func(*Service)

// WithCache sets the response cache
func WithCache(cache Cache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// NewService creates a new query service
func NewService(repo storage.Repository, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		cache: NopCache{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the underlying data source
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Languages returns the distinct languages in ascending order
func (s *Service) Languages(ctx context.Context) ([]string, error) {
	return cachedQuery(ctx, s, OpLanguages, cacheKey(OpLanguages), false, s.loadLanguages)
}

// ProductAreas returns the product areas of a language, most samples first,
// with the average score rounded to the nearest integer
func (s *Service) ProductAreas(ctx context.Context, language string) ([]models.ProductAreaSummary, error) {
	if err := Require("language", language); err != nil {
		return nil, err
	}
	return cachedQuery(ctx, s, OpProductAreas, cacheKey(OpProductAreas, language), false,
		func(ctx context.Context) ([]models.ProductAreaSummary, error) {
			return s.loadProductAreas(ctx, language)
		})
}

// RegionTags returns the latest score of every region tag in a product area,
// worst score first
func (s *Service) RegionTags(ctx context.Context, language, productName string) ([]models.RegionTagSummary, error) {
	if err := Require("language", language, "product_name", productName); err != nil {
		return nil, err
	}
	return cachedQuery(ctx, s, OpRegionTags, cacheKey(OpRegionTags, language, productName), false,
		func(ctx context.Context) ([]models.RegionTagSummary, error) {
			tags, err := s.repo.RegionTags(ctx, language, productName)
			if err != nil {
				return nil, upstream(OpRegionTags, err)
			}
			if tags == nil {
				tags = []models.RegionTagSummary{}
			}
			sort.SliceStable(tags, func(i, j int) bool {
				if tags[i].Score != tags[j].Score {
					return tags[i].Score < tags[j].Score
				}
				return tags[i].Name < tags[j].Name
			})
			return tags, nil
		})
}

// Details returns the most recent record of a selection with its evaluation
// payload decoded. ErrNotFound when nothing matches.
func (s *Service) Details(ctx context.Context, language, productName, regionTag string) (*models.EvaluationDetail, error) {
	if err := Require("language", language, "product_name", productName, "region_tag", regionTag); err != nil {
		return nil, err
	}
	return cachedQuery(ctx, s, OpDetails, cacheKey(OpDetails, language, productName, regionTag), false,
		func(ctx context.Context) (*models.EvaluationDetail, error) {
			rec, err := s.repo.LatestEvaluation(ctx, language, productName, regionTag)
			if err != nil {
				return nil, upstream(OpDetails, err)
			}
			if rec == nil {
				return nil, ErrNotFound
			}
			return toDetail(rec), nil
		})
}

// Refresh reloads the language list and every language's product areas into
// the cache, bypassing cached entries. It returns the number of languages.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	languages, err := cachedQuery(ctx, s, OpLanguages, cacheKey(OpLanguages), true, s.loadLanguages)
	if err != nil {
		return 0, err
	}

	for _, language := range languages {
		if language == "" {
			continue
		}
		_, err := cachedQuery(ctx, s, OpProductAreas, cacheKey(OpProductAreas, language), true,
			func(ctx context.Context) ([]models.ProductAreaSummary, error) {
				return s.loadProductAreas(ctx, language)
			})
		if err != nil {
			return 0, err
		}
	}

	return len(languages), nil
}

func (s *Service) loadLanguages(ctx context.Context) ([]string, error) {
	languages, err := s.repo.Languages(ctx)
	if err != nil {
		return nil, upstream(OpLanguages, err)
	}
	if languages == nil {
		languages = []string{}
	}
	return languages, nil
}

func (s *Service) loadProductAreas(ctx context.Context, language string) ([]models.ProductAreaSummary, error) {
	areas, err := s.repo.ProductAreas(ctx, language)
	if err != nil {
		return nil, upstream(OpProductAreas, err)
	}
	if areas == nil {
		areas = []models.ProductAreaSummary{}
	}
	for i := range areas {
		areas[i].Score = math.Round(areas[i].Score)
	}
	sort.SliceStable(areas, func(i, j int) bool {
		if areas[i].Samples != areas[j].Samples {
			return areas[i].Samples > areas[j].Samples
		}
		return areas[i].Name < areas[j].Name
	})
	return areas, nil
}

// cachedQuery serves op from the cache when possible and records metrics.
// Errors are never cached. With refresh set the cache read is skipped.
func cachedQuery[T any](ctx context.Context, s *Service, op, key string, refresh bool, load func(context.Context) (T, error)) (T, error) {
	if !refresh {
		var cached T
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			slog.Warn("cache read failed", "operation", op, "key", key, "error", err)
		}
		if hit {
			metrics.CacheRequests.WithLabelValues(op, "hit").Inc()
			return cached, nil
		}
		metrics.CacheRequests.WithLabelValues(op, "miss").Inc()
	}

	start := time.Now()
	result, err := load(ctx)
	metrics.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.QueryTotal.WithLabelValues(op, "ok").Inc()
	case errors.Is(err, ErrNotFound):
		metrics.QueryTotal.WithLabelValues(op, "not_found").Inc()
		return result, err
	default:
		metrics.QueryTotal.WithLabelValues(op, "error").Inc()
		slog.Error("query failed", "operation", op, "error", err)
		return result, err
	}

	if err := s.cache.Set(ctx, key, result); err != nil {
		slog.Warn("cache write failed", "operation", op, "key", key, "error", err)
	}

	return result, nil
}

func toDetail(rec *models.EvaluationRecord) *models.EvaluationDetail {
	tags := rec.RegionTags
	if tags == nil {
		tags = []string{}
	}

	return &models.EvaluationDetail{
		SampleLanguage:         rec.SampleLanguage,
		ProductName:            rec.ProductName,
		RegionTags:             tags,
		OverallComplianceScore: rec.OverallComplianceScore,
		EvaluationDate:         rec.EvaluationDate,
		LastUpdatedDate:        rec.LastUpdatedDate,
		GithubLink:             rec.GithubLink,
		EvaluationData:         decodeEvaluationData(rec),
		RawCode:                rec.RawCode,
	}
}

// decodeEvaluationData validates the stored payload. A NULL payload becomes
// JSON null; anything that is not valid JSON becomes the parse-failure object.
func decodeEvaluationData(rec *models.EvaluationRecord) json.RawMessage {
	if rec.EvaluationDataRawJSON == nil {
		return json.RawMessage("null")
	}

	raw := []byte(*rec.EvaluationDataRawJSON)
	if !json.Valid(raw) {
		slog.Warn("failed to parse evaluation_data_raw_json",
			"github_link", rec.GithubLink,
			"bytes", len(raw),
		)
		return append(json.RawMessage(nil), parseFailurePayload...)
	}

	return json.RawMessage(raw)
}
