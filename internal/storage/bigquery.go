package storage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/terra-clan/evalboard/internal/models"
)

// BigQueryRepository implements Repository over a BigQuery table or view
type BigQueryRepository struct {
	client   *bigquery.Client
	table    string
	location string
	timeout  time.Duration
}

// BigQueryConfig holds BigQuery connection configuration
type BigQueryConfig struct {
	ProjectID       string
	TableID         string // project.dataset.table
	Location        string
	CredentialsFile string
	QueryTimeout    time.Duration
}

// NewBigQueryRepository creates a new BigQuery repository. Credentials come
// from Application Default Credentials unless a credentials file is given.
func NewBigQueryRepository(ctx context.Context, cfg BigQueryConfig) (*BigQueryRepository, error) {
	if err := ValidateTableID(cfg.TableID); err != nil {
		return nil, err
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}

	return &BigQueryRepository{
		client:   client,
		table:    cfg.TableID,
		location: cfg.Location,
		timeout:  cfg.QueryTimeout,
	}, nil
}

const bqLanguagesQuery = `
	SELECT DISTINCT sample_language
	FROM ` + "`%s`" + `
	ORDER BY sample_language`

const bqProductAreasQuery = `
	SELECT
		product_name,
		COUNT(DISTINCT github_link) AS samples,
		AVG(CAST(overall_compliance_score AS FLOAT64)) AS score
	FROM ` + "`%s`" + `
	WHERE sample_language = @language
	GROUP BY product_name
	ORDER BY samples DESC, product_name ASC`

const bqRegionTagsQuery = `
	SELECT unnested_region_tag AS name, score
	FROM (
		SELECT
			unnested_region_tag,
			CAST(overall_compliance_score AS FLOAT64) AS score,
			ROW_NUMBER() OVER (
				PARTITION BY unnested_region_tag
				ORDER BY evaluation_date DESC, github_link DESC
			) AS rn
		FROM ` + "`%s`" + `, UNNEST(region_tags) AS unnested_region_tag
		WHERE sample_language = @language AND product_name = @product_name
	)
	WHERE rn = 1
	ORDER BY score ASC, name ASC`

const bqLatestEvaluationQuery = `
	SELECT *
	FROM ` + "`%s`" + `
	WHERE
		sample_language = @language
		AND product_name = @product_name
		AND @region_tag IN UNNEST(region_tags)
	ORDER BY evaluation_date DESC, github_link DESC
	LIMIT 1`

func (r *BigQueryRepository) query(ctx context.Context, sql string, params ...bigquery.QueryParameter) (*bigquery.RowIterator, error) {
	q := r.client.Query(fmt.Sprintf(sql, r.table))
	q.Parameters = params
	if r.location != "" {
		q.Location = r.location
	}
	return q.Read(ctx)
}

func (r *BigQueryRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}

// Languages returns the distinct sample languages in ascending order
func (r *BigQueryRepository) Languages(ctx context.Context) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	it, err := r.query(ctx, bqLanguagesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query languages: %w", err)
	}

	languages := make([]string, 0)
	for {
		var row struct {
			SampleLanguage bigquery.NullString `bigquery:"sample_language"`
		}
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read language row: %w", err)
		}
		languages = append(languages, row.SampleLanguage.StringVal)
	}

	return languages, nil
}

// ProductAreas groups a language's records by product name
func (r *BigQueryRepository) ProductAreas(ctx context.Context, language string) ([]models.ProductAreaSummary, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	it, err := r.query(ctx, bqProductAreasQuery,
		bigquery.QueryParameter{Name: "language", Value: language},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query product areas: %w", err)
	}

	areas := make([]models.ProductAreaSummary, 0)
	for {
		var row struct {
			ProductName bigquery.NullString  `bigquery:"product_name"`
			Samples     int64                `bigquery:"samples"`
			Score       bigquery.NullFloat64 `bigquery:"score"`
		}
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read product area row: %w", err)
		}
		areas = append(areas, models.ProductAreaSummary{
			Name:    row.ProductName.StringVal,
			Samples: row.Samples,
			Score:   row.Score.Float64,
		})
	}

	return areas, nil
}

// RegionTags returns the most recent score per region tag
func (r *BigQueryRepository) RegionTags(ctx context.Context, language, productName string) ([]models.RegionTagSummary, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	it, err := r.query(ctx, bqRegionTagsQuery,
		bigquery.QueryParameter{Name: "language", Value: language},
		bigquery.QueryParameter{Name: "product_name", Value: productName},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query region tags: %w", err)
	}

	tags := make([]models.RegionTagSummary, 0)
	for {
		var row struct {
			Name  string               `bigquery:"name"`
			Score bigquery.NullFloat64 `bigquery:"score"`
		}
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read region tag row: %w", err)
		}
		tags = append(tags, models.RegionTagSummary{
			Name:  row.Name,
			Score: row.Score.Float64,
		})
	}

	return tags, nil
}

// LatestEvaluation returns the most recent matching record, or nil.
// Rows are read as maps so optional columns such as raw_code may be absent.
func (r *BigQueryRepository) LatestEvaluation(ctx context.Context, language, productName, regionTag string) (*models.EvaluationRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	it, err := r.query(ctx, bqLatestEvaluationQuery,
		bigquery.QueryParameter{Name: "language", Value: language},
		bigquery.QueryParameter{Name: "product_name", Value: productName},
		bigquery.QueryParameter{Name: "region_tag", Value: regionTag},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluation: %w", err)
	}

	row := make(map[string]bigquery.Value)
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read evaluation row: %w", err)
	}

	return recordFromBigQueryRow(row), nil
}

// Ping verifies that the configured table is reachable
func (r *BigQueryRepository) Ping(ctx context.Context) error {
	parts := strings.Split(r.table, ".")
	if len(parts) != 3 {
		// Two-part identifiers resolve against the client project.
		if len(parts) != 2 {
			return fmt.Errorf("cannot resolve table %q", r.table)
		}
		parts = append([]string{r.client.Project()}, parts...)
	}

	_, err := r.client.DatasetInProject(parts[0], parts[1]).Table(parts[2]).Metadata(ctx)
	if err != nil {
		return fmt.Errorf("failed to read table metadata: %w", err)
	}
	return nil
}

// Close closes the BigQuery client
func (r *BigQueryRepository) Close() error {
	return r.client.Close()
}

func recordFromBigQueryRow(row map[string]bigquery.Value) *models.EvaluationRecord {
	rec := &models.EvaluationRecord{
		SampleLanguage:         bqString(row["sample_language"]),
		ProductName:            bqString(row["product_name"]),
		RegionTags:             bqStrings(row["region_tags"]),
		OverallComplianceScore: bqFloat(row["overall_compliance_score"]),
		EvaluationDate:         bqTime(row["evaluation_date"]),
		LastUpdatedDate:        bqTime(row["last_updated_date"]),
		GithubLink:             bqString(row["github_link"]),
	}

	if v, ok := row["evaluation_data_raw_json"]; ok && v != nil {
		s := bqString(v)
		rec.EvaluationDataRawJSON = &s
	}
	if v, ok := row["raw_code"]; ok && v != nil {
		s := bqString(v)
		rec.RawCode = &s
	}

	return rec
}

func bqString(v bigquery.Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func bqStrings(v bigquery.Value) []string {
	values, ok := v.([]bigquery.Value)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, item := range values {
		out = append(out, bqString(item))
	}
	return out
}

func bqFloat(v bigquery.Value) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case *big.Rat:
		f, _ := val.Float64()
		return f
	default:
		return 0
	}
}

func bqTime(v bigquery.Value) *time.Time {
	var t time.Time
	switch val := v.(type) {
	case time.Time:
		t = val
	case civil.Date:
		t = val.In(time.UTC)
	case civil.DateTime:
		t = val.In(time.UTC)
	default:
		return nil
	}
	t = t.UTC()
	return &t
}
