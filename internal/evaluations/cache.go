package evaluations

import (
	"context"
	"net/url"
	"strings"
)

// Cache stores query results between requests. Implementations encode values
// themselves; a miss is (false, nil).
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

// NopCache never stores anything
type NopCache struct{}

func (NopCache) Get(ctx context.Context, key string, dst any) (bool, error) { return false, nil }

func (NopCache) Set(ctx context.Context, key string, value any) error { return nil }

// cacheKey builds "<op>:<arg>:<arg>" with each argument query-escaped so a
// colon inside a product name cannot collide with another selection
func cacheKey(op string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, op)
	for _, a := range args {
		parts = append(parts, url.QueryEscape(a))
	}
	return strings.Join(parts, ":")
}
