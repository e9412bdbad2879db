package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/terra-clan/evalboard/internal/models"
)

// Seeder bulk-loads evaluation records into a PostgreSQL table with COPY
type Seeder struct {
	db    *sql.DB
	table string
}

// NewSeeder opens a database/sql connection through lib/pq
func NewSeeder(ctx context.Context, dsn, table string) (*Seeder, error) {
	if err := ValidateTableID(table); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Seeder{db: db, table: table}, nil
}

// Seed copies the records into the table in one transaction. With truncate
// set, existing rows are removed first.
func (s *Seeder) Seed(ctx context.Context, records []*models.EvaluationRecord, truncate bool) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if truncate {
		if _, err := tx.ExecContext(ctx, "TRUNCATE "+QuotePostgresTable(s.table)); err != nil {
			return 0, fmt.Errorf("failed to truncate %s: %w", s.table, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, copyInStatement(s.table))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.SampleLanguage,
			rec.ProductName,
			pq.Array(rec.RegionTags),
			rec.OverallComplianceScore,
			rec.EvaluationDate,
			rec.LastUpdatedDate,
			rec.GithubLink,
			rec.EvaluationDataRawJSON,
			rec.RawCode,
		)
		if err != nil {
			stmt.Close()
			return 0, fmt.Errorf("failed to copy record %s: %w", rec.GithubLink, err)
		}
	}

	// Flush buffered rows
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seed: %w", err)
	}

	slog.Info("evaluation records seeded", "table", s.table, "records", len(records), "truncated", truncate)
	return len(records), nil
}

// Close closes the database connection
func (s *Seeder) Close() error {
	return s.db.Close()
}

var seedColumns = []string{
	"sample_language",
	"product_name",
	"region_tags",
	"overall_compliance_score",
	"evaluation_date",
	"last_updated_date",
	"github_link",
	"evaluation_data_raw_json",
	"raw_code",
}

func copyInStatement(table string) string {
	parts := strings.Split(table, ".")
	if len(parts) == 2 {
		return pq.CopyInSchema(parts[0], parts[1], seedColumns...)
	}
	return pq.CopyIn(table, seedColumns...)
}
