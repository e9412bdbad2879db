package models

import (
	"encoding/json"
	"time"
)

// EvaluationRecord is one row of the evaluation table
type EvaluationRecord struct {
	SampleLanguage         string     `json:"sample_language"`
	ProductName            string     `json:"product_name"`
	RegionTags             []string   `json:"region_tags"`
	OverallComplianceScore float64    `json:"overall_compliance_score"`
	EvaluationDate         *time.Time `json:"evaluation_date"`
	LastUpdatedDate        *time.Time `json:"last_updated_date"`
	GithubLink             string     `json:"github_link"`
	EvaluationDataRawJSON  *string    `json:"evaluation_data_raw_json"`
	RawCode                *string    `json:"raw_code,omitempty"`
}

// HasTag reports whether the record belongs to the given region tag
func (r *EvaluationRecord) HasTag(tag string) bool {
	for _, t := range r.RegionTags {
		if t == tag {
			return true
		}
	}
	return false
}

// NewerThan orders records by evaluation date, then github link, both descending.
// A record without an evaluation date is never newer than one with a date.
func (r *EvaluationRecord) NewerThan(other *EvaluationRecord) bool {
	switch {
	case r.EvaluationDate == nil && other.EvaluationDate != nil:
		return false
	case r.EvaluationDate != nil && other.EvaluationDate == nil:
		return true
	case r.EvaluationDate != nil && !r.EvaluationDate.Equal(*other.EvaluationDate):
		return r.EvaluationDate.After(*other.EvaluationDate)
	}
	return r.GithubLink > other.GithubLink
}

// ProductAreaSummary aggregates the records of one product area
type ProductAreaSummary struct {
	Name    string  `json:"product_name"`
	Samples int64   `json:"samples"`
	Score   float64 `json:"score"`
}

// RegionTagSummary is the most recent score recorded for a region tag
type RegionTagSummary struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// EvaluationDetail is the most recent record for a (language, product, tag)
// selection with its evaluation payload decoded
type EvaluationDetail struct {
	SampleLanguage         string          `json:"sample_language"`
	ProductName            string          `json:"product_name"`
	RegionTags             []string        `json:"region_tags"`
	OverallComplianceScore float64         `json:"overall_compliance_score"`
	EvaluationDate         *time.Time      `json:"evaluation_date"`
	LastUpdatedDate        *time.Time      `json:"last_updated_date"`
	GithubLink             string          `json:"github_link"`
	EvaluationData         json.RawMessage `json:"evaluation_data_raw_json"`
	RawCode                *string         `json:"raw_code,omitempty"`
}
