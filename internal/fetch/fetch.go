// Package fetch retrieves the rendered HTML of monitored pages.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"linkwatch/internal/config"
)

// Fetcher downloads the rendered HTML of a single page. Implementations own
// the "wait until the page has settled" contract: a browser-backed fetcher
// waits for network idle, the plain HTTP fetcher honors a fixed ceiling.
type Fetcher interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// Error marks a fetch failure for one URL. Per-URL failures are isolated by
// the orchestrator, so the URL has to travel with the error.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPFetcher fetches pages over plain HTTP with retry and a settle delay.
type HTTPFetcher struct {
	client *http.Client
	retry  config.RetryPolicy
	settle time.Duration
}

// NewHTTPFetcher builds a fetcher from the fetch section of the config.
func NewHTTPFetcher(cfg config.FetchConfig) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: cfg.Timeout(),
		},
		retry:  cfg.Retry,
		settle: cfg.Settle(),
	}
}

// Render downloads the page, retrying transient failures with exponential
// backoff, then waits out the settle delay before handing the HTML back.
func (f *HTTPFetcher) Render(ctx context.Context, pageURL string) (string, error) {
	var lastErr error
	delay := f.retry.InitialDelay()

	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, delay); err != nil {
				return "", &Error{URL: pageURL, Err: err}
			}
			delay = time.Duration(float64(delay) * f.retry.BackoffMultiplier)
		}

		html, err := f.fetchOnce(ctx, pageURL)
		if err == nil {
			if err := sleep(ctx, f.settle); err != nil {
				return "", &Error{URL: pageURL, Err: err}
			}
			return html, nil
		}
		lastErr = err
	}

	return "", &Error{URL: pageURL, Err: lastErr}
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// sleep is a context-aware time.Sleep, so shutdown is not held hostage by the
// settle delay.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
