package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/terra-clan/evalboard/internal/models"
)

var (
	// ErrInvalidTransition is returned when a selection skips a level
	ErrInvalidTransition = errors.New("invalid selection transition")

	// ErrStale is returned when a response arrives after the selection changed
	ErrStale = errors.New("response superseded by a newer selection")

	// ErrIncompleteSelection is returned when a deep link lacks a level
	ErrIncompleteSelection = errors.New("language, product area and region tag are required")
)

// Level is the depth of the current selection
type Level int

const (
	NoLanguage Level = iota
	LanguageSelected
	ProductAreaSelected
	RegionTagSelected
)

func (l Level) String() string {
	switch l {
	case NoLanguage:
		return "no_language"
	case LanguageSelected:
		return "language_selected"
	case ProductAreaSelected:
		return "product_area_selected"
	case RegionTagSelected:
		return "region_tag_selected"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Fetcher is the network side of the dashboard. *client.Client satisfies it.
type Fetcher interface {
	Languages(ctx context.Context) ([]string, error)
	ProductAreas(ctx context.Context, language string) ([]models.ProductAreaSummary, error)
	RegionTags(ctx context.Context, language, productName string) ([]models.RegionTagSummary, error)
	Details(ctx context.Context, language, productName, regionTag string) (*models.EvaluationDetail, error)
}

// Selection identifies the chosen language, product area and region tag
type Selection struct {
	Language    string
	ProductArea string
	RegionTag   string
}

// Complete reports whether every level is chosen
func (s Selection) Complete() bool {
	return s.Language != "" && s.ProductArea != "" && s.RegionTag != ""
}

// SelectionFromQuery reads a deep link's lang, pa and rt parameters
func SelectionFromQuery(q url.Values) Selection {
	return Selection{
		Language:    strings.TrimSpace(q.Get("lang")),
		ProductArea: strings.TrimSpace(q.Get("pa")),
		RegionTag:   strings.TrimSpace(q.Get("rt")),
	}
}

// Controller holds the client-side selection and the cached lists behind it.
// All state lives here; views are derived from it on demand.
type Controller struct {
	fetcher Fetcher

	mu        sync.Mutex
	level     Level
	selection Selection

	areas     []models.ProductAreaSummary
	areasErr  error
	tags      []models.RegionTagSummary
	tagsErr   error
	detail    *models.EvaluationDetail
	detailErr error

	areaFilter string
	areaSort   SortKey
	tagFilter  string
	tagSort    SortKey
}

// NewController creates a controller with nothing selected
func NewController(fetcher Fetcher) *Controller {
	return &Controller{fetcher: fetcher}
}

// Level returns the current selection depth
func (c *Controller) Level() Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// Selection returns the current selection
func (c *Controller) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// Languages returns the selectable languages, dropping blank entries
func (c *Controller) Languages(ctx context.Context) ([]string, error) {
	languages, err := c.fetcher.Languages(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(languages))
	for _, l := range languages {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out, nil
}

// SelectLanguage resets everything below the language, then loads its
// product areas
func (c *Controller) SelectLanguage(ctx context.Context, language string) error {
	if strings.TrimSpace(language) == "" {
		return fmt.Errorf("%w: empty language", ErrInvalidTransition)
	}

	c.mu.Lock()
	c.selection = Selection{Language: language}
	c.level = LanguageSelected
	c.areas, c.areasErr = nil, nil
	c.areaFilter = ""
	c.resetRegionTagsLocked()
	origin := c.selection
	c.mu.Unlock()

	areas, err := c.fetcher.ProductAreas(ctx, language)

	c.mu.Lock()
	defer c.mu.Unlock()
	// The area list only depends on the language; picking an area while it
	// loads must not discard it.
	if c.selection.Language != origin.Language {
		return ErrStale
	}
	if err != nil {
		c.areasErr = err
		return fmt.Errorf("failed to fetch product areas for %s: %w", language, err)
	}
	if areas == nil {
		areas = []models.ProductAreaSummary{}
	}
	c.areas = areas
	return nil
}

// SelectProductArea resets the region tag level, then loads the product
// area's region tags. A language must already be selected.
func (c *Controller) SelectProductArea(ctx context.Context, productArea string) error {
	if strings.TrimSpace(productArea) == "" {
		return fmt.Errorf("%w: empty product area", ErrInvalidTransition)
	}

	c.mu.Lock()
	if c.level < LanguageSelected {
		c.mu.Unlock()
		return fmt.Errorf("%w: select a language first", ErrInvalidTransition)
	}
	c.selection.ProductArea = productArea
	c.level = ProductAreaSelected
	c.resetRegionTagsLocked()
	origin := c.selection
	c.mu.Unlock()

	tags, err := c.fetcher.RegionTags(ctx, origin.Language, productArea)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection.Language != origin.Language || c.selection.ProductArea != origin.ProductArea {
		return ErrStale
	}
	if err != nil {
		c.tagsErr = err
		return fmt.Errorf("failed to fetch region tags for %s: %w", productArea, err)
	}
	if tags == nil {
		tags = []models.RegionTagSummary{}
	}
	c.tags = tags
	return nil
}

// SelectRegionTag loads the detail record of a region tag. A product area
// must already be selected.
func (c *Controller) SelectRegionTag(ctx context.Context, regionTag string) (*models.EvaluationDetail, error) {
	if strings.TrimSpace(regionTag) == "" {
		return nil, fmt.Errorf("%w: empty region tag", ErrInvalidTransition)
	}

	c.mu.Lock()
	if c.level < ProductAreaSelected {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: select a product area first", ErrInvalidTransition)
	}
	c.selection.RegionTag = regionTag
	c.level = RegionTagSelected
	c.detail, c.detailErr = nil, nil
	origin := c.selection
	c.mu.Unlock()

	detail, err := c.fetcher.Details(ctx, origin.Language, origin.ProductArea, regionTag)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection != origin {
		return nil, ErrStale
	}
	if err != nil {
		c.detailErr = err
		return nil, fmt.Errorf("failed to fetch details for %s: %w", regionTag, err)
	}
	c.detail = detail
	return detail, nil
}

// Detail returns the loaded detail record and its load error, if any
func (c *Controller) Detail() (*models.EvaluationDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detail, c.detailErr
}

// Restore replays the selection cascade of a deep link
func (c *Controller) Restore(ctx context.Context, sel Selection) (*models.EvaluationDetail, error) {
	if !sel.Complete() {
		return nil, ErrIncompleteSelection
	}
	if err := c.SelectLanguage(ctx, sel.Language); err != nil {
		return nil, err
	}
	if err := c.SelectProductArea(ctx, sel.ProductArea); err != nil {
		return nil, err
	}
	return c.SelectRegionTag(ctx, sel.RegionTag)
}

// DeepLink returns base with the current selection encoded as lang, pa and rt
func (c *Controller) DeepLink(base string) (string, error) {
	sel := c.Selection()
	if !sel.Complete() {
		return "", ErrIncompleteSelection
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}

	q := url.Values{}
	q.Set("lang", sel.Language)
	q.Set("pa", sel.ProductArea)
	q.Set("rt", sel.RegionTag)
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return u.String(), nil
}

// SetProductAreaFilter changes the product area filter text
func (c *Controller) SetProductAreaFilter(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.areaFilter = text
}

// SetProductAreaSort changes the product area sort order
func (c *Controller) SetProductAreaSort(key SortKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.areaSort = key
}

// SetRegionTagFilter changes the region tag filter text
func (c *Controller) SetRegionTagFilter(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tagFilter = text
}

// SetRegionTagSort changes the region tag sort order
func (c *Controller) SetRegionTagSort(key SortKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tagSort = key
}

// ProductAreaView derives the displayed product area list from the cache
func (c *Controller) ProductAreaView() ProductAreaView {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.level < LanguageSelected:
		return ProductAreaView{Placeholder: PlaceholderSelectLanguage}
	case c.areasErr != nil:
		return ProductAreaView{Placeholder: PlaceholderLoadError, Err: c.areasErr}
	case c.areas == nil:
		return ProductAreaView{Placeholder: PlaceholderLoadingAreas}
	}
	return deriveProductAreas(c.areas, c.areaFilter, c.areaSort)
}

// RegionTagView derives the displayed region tag list from the cache
func (c *Controller) RegionTagView() RegionTagView {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.level < ProductAreaSelected:
		return RegionTagView{Placeholder: PlaceholderSelectArea}
	case c.tagsErr != nil:
		return RegionTagView{Placeholder: PlaceholderLoadError, Err: c.tagsErr}
	case c.tags == nil:
		return RegionTagView{Placeholder: PlaceholderLoadingTags}
	}
	return deriveRegionTags(c.tags, c.tagFilter, c.tagSort)
}

func (c *Controller) resetRegionTagsLocked() {
	c.selection.RegionTag = ""
	c.tags, c.tagsErr = nil, nil
	c.tagFilter = ""
	c.detail, c.detailErr = nil, nil
}

// DisplayLanguage capitalizes the first letter of a language for display
func DisplayLanguage(language string) string {
	r, size := utf8.DecodeRuneInString(language)
	if r == utf8.RuneError {
		return language
	}
	return string(unicode.ToUpper(r)) + language[size:]
}
