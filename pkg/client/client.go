package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/evalboard/internal/models"
)

// Client is a Go SDK for the evalboard API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new evalboard client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// ServerConfig is the deployment diagnostics returned by /api/config
type ServerConfig struct {
	ProjectID    string `json:"projectId"`
	BigQueryView string `json:"bigqueryView"`
}

// Config retrieves the server's data source identity
func (c *Client) Config(ctx context.Context) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := c.getJSON(ctx, "/api/config", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Languages retrieves the language list
func (c *Client) Languages(ctx context.Context) ([]string, error) {
	var languages []string
	if err := c.getJSON(ctx, "/api/languages", nil, &languages); err != nil {
		return nil, err
	}
	return languages, nil
}

// ProductAreas retrieves the product areas of a language
func (c *Client) ProductAreas(ctx context.Context, language string) ([]models.ProductAreaSummary, error) {
	params := url.Values{"language": {language}}

	var areas []models.ProductAreaSummary
	if err := c.getJSON(ctx, "/api/product-areas", params, &areas); err != nil {
		return nil, err
	}
	return areas, nil
}

// RegionTags retrieves the region tags of a product area
func (c *Client) RegionTags(ctx context.Context, language, productName string) ([]models.RegionTagSummary, error) {
	params := url.Values{
		"language":     {language},
		"product_name": {productName},
	}

	var tags []models.RegionTagSummary
	if err := c.getJSON(ctx, "/api/region-tags", params, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// Details retrieves the latest evaluation of a region tag
func (c *Client) Details(ctx context.Context, language, productName, regionTag string) (*models.EvaluationDetail, error) {
	params := url.Values{
		"language":     {language},
		"product_name": {productName},
		"region_tag":   {regionTag},
	}

	var detail models.EvaluationDetail
	if err := c.getJSON(ctx, "/api/details", params, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FetchCode retrieves a source file through the server's code proxy
func (c *Client) FetchCode(ctx context.Context, link string) (string, error) {
	body, err := c.doRequest(ctx, "/api/fetch-code", url.Values{"url": {link}})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "/health", nil)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dst interface{}) error {
	body, err := c.doRequest(ctx, path, params)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// doRequest performs a GET request and returns the body of a 2xx response
func (c *Client) doRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

func decodeAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}

	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Details = payload.Details
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
