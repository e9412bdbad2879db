package services

import (
	"context"
)

// Checker is a dependency that can report whether it is available
type Checker interface {
	// HealthCheck returns nil when the dependency is reachable
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to the Checker interface
type CheckFunc func(ctx context.Context) error

// HealthCheck calls f
func (f CheckFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}
