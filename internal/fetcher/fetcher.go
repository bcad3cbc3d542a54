// Package fetcher downloads listing pages and paper documents over HTTP
// with per-source politeness controls.
package fetcher

import (
	"context"
	"fmt"
	"time"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// FetchPage downloads an HTML page and returns its body decoded to UTF-8.
	FetchPage(ctx context.Context, url string) ([]byte, error)

	// FetchBinary downloads a document such as a PDF and returns the raw bytes.
	FetchBinary(ctx context.Context, url string) ([]byte, error)
}

// Profile controls how politely a host is crawled. Sources that tolerate
// steady traffic use a fixed delay; stricter ones get a randomized pause
// and rotating browser identities.
type Profile struct {
	// MinDelay is the pause before each request. When MaxDelay is larger,
	// the pause is drawn uniformly from [MinDelay, MaxDelay).
	MinDelay time.Duration
	MaxDelay time.Duration

	// UserAgents is rotated per request when set.
	UserAgents []string

	// BrowserHeaders sends the Accept headers a browser would.
	BrowserHeaders bool
}

// StatusError reports a non-2xx response. Status failures are permanent;
// the caller skips the page or document instead of retrying.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: status %d from %s", e.Code, e.URL)
}
