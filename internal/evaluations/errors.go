package evaluations

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no record matches a detail selection
var ErrNotFound = errors.New("details not found for the given selection")

// ValidationError reports required parameters that were missing or blank
type ValidationError struct {
	Params []string
}

func (e *ValidationError) Error() string {
	switch len(e.Params) {
	case 0:
		return "invalid request"
	case 1:
		return e.Params[0] + " query parameter is required"
	default:
		head := strings.Join(e.Params[:len(e.Params)-1], ", ")
		return head + " and " + e.Params[len(e.Params)-1] + " query parameters are required"
	}
}

// Require returns a ValidationError naming every blank value, or nil.
// pairs alternates parameter name and value.
func Require(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Params: missing}
	}
	return nil
}

// UpstreamError wraps a data source failure. Op is kept for logs and metrics;
// callers should not branch on it.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream query failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}
