package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/evalboard/internal/models"
)

// PostgresRepository implements Repository over a PostgreSQL table with the
// same columns as the warehouse table (region_tags is a text[])
type PostgresRepository struct {
	pool  *pgxpool.Pool
	table string
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN         string
	Table       string
	MaxConns    int32
	MaxLifetime time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	if err := ValidateTableID(cfg.Table); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	} else {
		poolConfig.MaxConns = 10 // default
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{
		pool:  pool,
		table: QuotePostgresTable(cfg.Table),
	}, nil
}

// QuotePostgresTable quotes a possibly schema-qualified table name
func QuotePostgresTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Languages returns the distinct sample languages in ascending order
func (r *PostgresRepository) Languages(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT sample_language
		FROM %s
		ORDER BY sample_language
	`, r.table)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query languages: %w", err)
	}
	defer rows.Close()

	languages := make([]string, 0)
	for rows.Next() {
		var language *string
		if err := rows.Scan(&language); err != nil {
			return nil, fmt.Errorf("failed to scan language: %w", err)
		}
		if language != nil {
			languages = append(languages, *language)
		} else {
			languages = append(languages, "")
		}
	}

	return languages, rows.Err()
}

// ProductAreas groups a language's records by product name
func (r *PostgresRepository) ProductAreas(ctx context.Context, language string) ([]models.ProductAreaSummary, error) {
	query := fmt.Sprintf(`
		SELECT
			product_name,
			COUNT(DISTINCT github_link) AS samples,
			AVG(overall_compliance_score)::double precision AS score
		FROM %s
		WHERE sample_language = $1
		GROUP BY product_name
		ORDER BY samples DESC, product_name ASC
	`, r.table)

	rows, err := r.pool.Query(ctx, query, language)
	if err != nil {
		return nil, fmt.Errorf("failed to query product areas: %w", err)
	}
	defer rows.Close()

	areas := make([]models.ProductAreaSummary, 0)
	for rows.Next() {
		var area models.ProductAreaSummary
		var score *float64
		if err := rows.Scan(&area.Name, &area.Samples, &score); err != nil {
			return nil, fmt.Errorf("failed to scan product area: %w", err)
		}
		if score != nil {
			area.Score = *score
		}
		areas = append(areas, area)
	}

	return areas, rows.Err()
}

// RegionTags returns the most recent score per region tag
func (r *PostgresRepository) RegionTags(ctx context.Context, language, productName string) ([]models.RegionTagSummary, error) {
	query := fmt.Sprintf(`
		SELECT tag, score
		FROM (
			SELECT
				t.tag,
				e.overall_compliance_score::double precision AS score,
				ROW_NUMBER() OVER (
					PARTITION BY t.tag
					ORDER BY e.evaluation_date DESC NULLS LAST, e.github_link DESC
				) AS rn
			FROM %s AS e
			CROSS JOIN LATERAL unnest(e.region_tags) AS t(tag)
			WHERE e.sample_language = $1 AND e.product_name = $2
		) ranked
		WHERE rn = 1
		ORDER BY score ASC, tag ASC
	`, r.table)

	rows, err := r.pool.Query(ctx, query, language, productName)
	if err != nil {
		return nil, fmt.Errorf("failed to query region tags: %w", err)
	}
	defer rows.Close()

	tags := make([]models.RegionTagSummary, 0)
	for rows.Next() {
		var tag models.RegionTagSummary
		var score *float64
		if err := rows.Scan(&tag.Name, &score); err != nil {
			return nil, fmt.Errorf("failed to scan region tag: %w", err)
		}
		if score != nil {
			tag.Score = *score
		}
		tags = append(tags, tag)
	}

	return tags, rows.Err()
}

// LatestEvaluation returns the most recent matching record, or nil
func (r *PostgresRepository) LatestEvaluation(ctx context.Context, language, productName, regionTag string) (*models.EvaluationRecord, error) {
	query := fmt.Sprintf(`
		SELECT sample_language, product_name, region_tags, overall_compliance_score::double precision,
			evaluation_date, last_updated_date, github_link, evaluation_data_raw_json, raw_code
		FROM %s
		WHERE sample_language = $1
			AND product_name = $2
			AND $3 = ANY(region_tags)
		ORDER BY evaluation_date DESC NULLS LAST, github_link DESC
		LIMIT 1
	`, r.table)

	var rec models.EvaluationRecord
	var score *float64
	err := r.pool.QueryRow(ctx, query, language, productName, regionTag).Scan(
		&rec.SampleLanguage,
		&rec.ProductName,
		&rec.RegionTags,
		&score,
		&rec.EvaluationDate,
		&rec.LastUpdatedDate,
		&rec.GithubLink,
		&rec.EvaluationDataRawJSON,
		&rec.RawCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}

	if score != nil {
		rec.OverallComplianceScore = *score
	}
	if rec.EvaluationDate != nil {
		t := rec.EvaluationDate.UTC()
		rec.EvaluationDate = &t
	}
	if rec.LastUpdatedDate != nil {
		t := rec.LastUpdatedDate.UTC()
		rec.LastUpdatedDate = &t
	}

	return &rec, nil
}
