package codefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/terra-clan/evalboard/internal/metrics"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxBytes = 2 << 20
)

// ErrInvalidURL is returned when the requested link is not an absolute http(s) URL
var ErrInvalidURL = errors.New("url must be an absolute http or https URL")

// ErrTooLarge is returned when the upstream body exceeds the configured cap
var ErrTooLarge = errors.New("upstream file exceeds the size limit")

// StatusError reports a non-success status from the code host
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GitHub returned status: %d %s", e.StatusCode, reasonPhrase(e.StatusCode, e.Status))
}

// RawURL rewrites a browse-style code host link into its raw-content form:
// github.com becomes raw.githubusercontent.com and the first /blob/ segment
// is dropped
func RawURL(link string) string {
	raw := strings.Replace(link, "github.com", "raw.githubusercontent.com", 1)
	return strings.Replace(raw, "/blob/", "/", 1)
}

// Fetcher retrieves source files through the code host's raw endpoint
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// Option configures the fetcher
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithMaxBytes caps the size of a fetched file
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// New creates a fetcher with the given per-request timeout
func New(timeout time.Duration, opts ...Option) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	f := &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the file behind link and returns its body verbatim
func (f *Fetcher) Fetch(ctx context.Context, link string) (string, error) {
	rawURL := RawURL(strings.TrimSpace(link))

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.CodeFetchTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to fetch code: %w", err)
	}
	defer resp.Body.Close()

	metrics.CodeFetchTotal.WithLabelValues(statusClass(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("code host returned non-success status",
			"url", u.String(),
			"status", resp.StatusCode,
		)
		return "", &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return "", ErrTooLarge
	}

	return string(body), nil
}

// reasonPhrase extracts "Not Found" from a status line such as "404 Not Found"
func reasonPhrase(code int, status string) string {
	if reason, ok := strings.CutPrefix(status, strconv.Itoa(code)+" "); ok && reason != "" {
		return reason
	}
	return http.StatusText(code)
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
