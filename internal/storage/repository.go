package storage

import (
	"context"
	"fmt"
	"regexp"

	"github.com/terra-clan/evalboard/internal/models"
)

// Repository is the read-only adapter over the evaluation table
type Repository interface {
	// Languages returns the distinct sample languages in ascending order
	Languages(ctx context.Context) ([]string, error)

	// ProductAreas groups a language's records by product name. Samples counts
	// distinct github links and Score is the unrounded average.
	ProductAreas(ctx context.Context, language string) ([]models.ProductAreaSummary, error)

	// RegionTags returns one entry per region tag holding the score of the
	// most recent record carrying that tag
	RegionTags(ctx context.Context, language, productName string) ([]models.RegionTagSummary, error)

	// LatestEvaluation returns the most recent record matching the selection,
	// or nil when none matches
	LatestEvaluation(ctx context.Context, language, productName, regionTag string) (*models.EvaluationRecord, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}

var tableIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:\-]+$`)

// ValidateTableID rejects table identifiers that cannot be spliced into SQL safely
func ValidateTableID(tableID string) error {
	if !tableIDPattern.MatchString(tableID) {
		return fmt.Errorf("invalid table identifier: %q", tableID)
	}
	return nil
}
