package dashboard

import (
	"sort"
	"strings"

	"github.com/terra-clan/evalboard/internal/models"
)

// SortKey orders a displayed list. The empty key keeps server order.
type SortKey string

const (
	SortServer    SortKey = ""
	SortName      SortKey = "name"
	SortCountAsc  SortKey = "count-asc"
	SortCountDesc SortKey = "count-desc"
	SortScoreAsc  SortKey = "score-asc"
	SortScoreDesc SortKey = "score-desc"
)

// Placeholder messages shown instead of an empty list
const (
	PlaceholderSelectLanguage = "Select a language to see product areas."
	PlaceholderSelectArea     = "Select a product area to see region tags."
	PlaceholderSelectTag      = "Select a region tag to see details."
	PlaceholderLoadingAreas   = "Loading product areas..."
	PlaceholderLoadingTags    = "Loading region tags..."
	PlaceholderNoAreas        = "No matching product areas found."
	PlaceholderNoTags         = "No matching region tags found."
	PlaceholderLoadError      = "Error loading data."
)

// ProductAreaView is the product area list as it should be displayed.
// Exactly one of Items and Placeholder is set.
type ProductAreaView struct {
	Items       []models.ProductAreaSummary
	Placeholder string
	Err         error
}

// RegionTagView is the region tag list as it should be displayed.
// Exactly one of Items and Placeholder is set.
type RegionTagView struct {
	Items       []models.RegionTagSummary
	Placeholder string
	Err         error
}

func deriveProductAreas(all []models.ProductAreaSummary, filter string, key SortKey) ProductAreaView {
	items := make([]models.ProductAreaSummary, 0, len(all))
	for _, a := range all {
		if matches(a.Name, filter) {
			items = append(items, a)
		}
	}
	if len(items) == 0 {
		return ProductAreaView{Placeholder: PlaceholderNoAreas}
	}

	var less func(i, j int) bool
	switch key {
	case SortName:
		less = func(i, j int) bool { return nameLess(items[i].Name, items[j].Name) }
	case SortCountAsc:
		less = func(i, j int) bool { return items[i].Samples < items[j].Samples }
	case SortCountDesc:
		less = func(i, j int) bool { return items[i].Samples > items[j].Samples }
	case SortScoreAsc:
		less = func(i, j int) bool { return items[i].Score < items[j].Score }
	case SortScoreDesc:
		less = func(i, j int) bool { return items[i].Score > items[j].Score }
	}
	if less != nil {
		sort.SliceStable(items, less)
	}

	return ProductAreaView{Items: items}
}

func deriveRegionTags(all []models.RegionTagSummary, filter string, key SortKey) RegionTagView {
	items := make([]models.RegionTagSummary, 0, len(all))
	for _, t := range all {
		if matches(t.Name, filter) {
			items = append(items, t)
		}
	}
	if len(items) == 0 {
		return RegionTagView{Placeholder: PlaceholderNoTags}
	}

	// Region tags have no sample count, so count keys keep server order
	var less func(i, j int) bool
	switch key {
	case SortName:
		less = func(i, j int) bool { return nameLess(items[i].Name, items[j].Name) }
	case SortScoreAsc:
		less = func(i, j int) bool { return items[i].Score < items[j].Score }
	case SortScoreDesc:
		less = func(i, j int) bool { return items[i].Score > items[j].Score }
	}
	if less != nil {
		sort.SliceStable(items, less)
	}

	return RegionTagView{Items: items}
}

// matches is a case-insensitive substring test; an empty filter matches all
func matches(name, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(filter))
}

func nameLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}
