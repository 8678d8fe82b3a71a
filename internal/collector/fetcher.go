package collector

import (
	"context"
	"fmt"
)

// Request is one page fetch.
type Request struct {
	Source string
	URL    string
	// Render asks for script execution before the page is returned. Only
	// fetchers backed by a rendering service can honour it; others use it to
	// pick a longer timeout.
	Render bool
}

// Fetcher retrieves raw page bytes. Implementations bound every call by a
// timeout and report non-success statuses as errors.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
	Name() string
}

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}
