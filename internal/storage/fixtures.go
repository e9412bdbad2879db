package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/evalboard/internal/models"
)

// fixtureFile is the on-disk layout of an evaluation fixture file
type fixtureFile struct {
	Evaluations []fixtureRecord `yaml:"evaluations"`
}

type fixtureRecord struct {
	SampleLanguage         string    `yaml:"sample_language"`
	ProductName            string    `yaml:"product_name"`
	RegionTags             []string  `yaml:"region_tags"`
	OverallComplianceScore float64   `yaml:"overall_compliance_score"`
	EvaluationDate         string    `yaml:"evaluation_date"`
	LastUpdatedDate        string    `yaml:"last_updated_date"`
	GithubLink             string    `yaml:"github_link"`
	EvaluationData         yaml.Node `yaml:"evaluation_data_raw_json"`
	RawCode                *string   `yaml:"raw_code"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LoadFixturesFromDir loads every *.yaml / *.yml fixture file in dir.
// Files are read in name order so the resulting record order is stable.
func LoadFixturesFromDir(dir string) ([]*models.EvaluationRecord, error) {
	slog.Info("loading evaluation fixtures", "dir", dir)

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to glob %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}

	var records []*models.EvaluationRecord
	for _, file := range files {
		loaded, err := LoadFixturesFromFile(file)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", file, err)
		}
		records = append(records, loaded...)
	}

	slog.Info("evaluation fixtures loaded", "files", len(files), "records", len(records))
	return records, nil
}

// LoadFixturesFromFile loads the records of a single fixture file
func LoadFixturesFromFile(path string) ([]*models.EvaluationRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	records := make([]*models.EvaluationRecord, 0, len(file.Evaluations))
	for i, fr := range file.Evaluations {
		rec, err := fr.toRecord()
		if err != nil {
			return nil, fmt.Errorf("evaluation %d: %w", i, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func (fr fixtureRecord) toRecord() (*models.EvaluationRecord, error) {
	if fr.SampleLanguage == "" {
		return nil, fmt.Errorf("sample_language is required")
	}
	if fr.ProductName == "" {
		return nil, fmt.Errorf("product_name is required")
	}

	evaluationDate, err := parseTimestamp(fr.EvaluationDate)
	if err != nil {
		return nil, fmt.Errorf("evaluation_date: %w", err)
	}
	lastUpdated, err := parseTimestamp(fr.LastUpdatedDate)
	if err != nil {
		return nil, fmt.Errorf("last_updated_date: %w", err)
	}
	payload, err := nodeToJSONString(&fr.EvaluationData)
	if err != nil {
		return nil, fmt.Errorf("evaluation_data_raw_json: %w", err)
	}

	return &models.EvaluationRecord{
		SampleLanguage:         fr.SampleLanguage,
		ProductName:            fr.ProductName,
		RegionTags:             fr.RegionTags,
		OverallComplianceScore: fr.OverallComplianceScore,
		EvaluationDate:         evaluationDate,
		LastUpdatedDate:        lastUpdated,
		GithubLink:             fr.GithubLink,
		EvaluationDataRawJSON:  payload,
		RawCode:                fr.RawCode,
	}, nil
}

func parseTimestamp(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", value)
}

// nodeToJSONString accepts the payload either as a string (stored verbatim,
// malformed JSON included) or as a YAML mapping/sequence that is re-encoded
func nodeToJSONString(node *yaml.Node) (*string, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		s := node.Value
		return &s, nil
	default:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		s := string(data)
		return &s, nil
	}
}
