// Package datasource fetches company metadata records from market-data
// providers. Each source returns a models.Info keyed by Yahoo's canonical
// camelCase field names; missing keys are normal.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/seenimoa/stockbrief/pkg/models"
)

// InfoSource returns the metadata record for a ticker.
type InfoSource interface {
	// Name returns the human-readable name of this data source.
	Name() string

	// GetInfo returns the key/value record for ticker. A symbol the
	// provider does not know yields ErrTickerNotFound.
	GetInfo(ctx context.Context, ticker models.Ticker) (models.Info, error)
}

// --- Sentinel errors ---

// ErrTickerNotFound is returned when no data exists for a ticker.
var ErrTickerNotFound = errors.New("ticker not found")

// ErrRateLimited is returned when a source rate-limits the request.
var ErrRateLimited = errors.New("rate limited by data source")

// ErrNoCrumb is returned when a Yahoo session cannot be established.
var ErrNoCrumb = errors.New("yahoo session crumb unavailable")

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// statusOf returns the HTTP status carried by err, or 0.
func statusOf(err error) int {
	var he *ErrHTTP
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// DefaultTimeout bounds a single upstream round-trip.
const DefaultTimeout = 15 * time.Second

// doGet performs a GET request with the given URL and headers, returning the response body.
// The caller is responsible for closing the returned ReadCloser.
func doGet(ctx context.Context, client *http.Client, url string, headers map[string]string) (io.ReadCloser, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	// Set default headers.
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, text/html, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	// Override/add custom headers.
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resp.StatusCode, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return resp.Body, resp.StatusCode, nil
}
