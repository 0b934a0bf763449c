// Package httpclient provides a profile-aware, retry-capable HTTP client
// for the scraping providers and extractor transports.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
)

// Profile selects the timeout and default headers used for a request.
type Profile string

const (
	ProfileHTML Profile = "html"
	ProfileAPI  Profile = "api"
	ProfileRSS  Profile = "rss"
)

// Sentinel errors returned by Get, per spec §4.2.
var (
	// ErrTransport wraps network/DNS failures.
	ErrTransport = errors.New("transport error")
	// ErrTimeout indicates the request's time budget was exceeded.
	ErrTimeout = errors.New("timeout")
)

// HTTPError is returned for a non-2xx response that survived retries.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}

// Doer is the interface for performing HTTP requests, satisfied by
// *http.Client and by test doubles.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	retryBaseDelay = 500 * time.Millisecond
	retryCapDelay  = 8 * time.Second
	maxAttempts    = 3
	minRetryAfter  = 1 * time.Second
	maxRetryAfter  = 30 * time.Second
)

var profileTimeouts = map[Profile]time.Duration{
	ProfileHTML: 30 * time.Second,
	ProfileAPI:  10 * time.Second,
	ProfileRSS:  20 * time.Second,
}

var profileHeaders = map[Profile]map[string]string{
	ProfileHTML: {
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	},
	ProfileAPI: {
		"User-Agent": "mediawatch-scraper/1.0",
		"Accept":     "application/json",
	},
	ProfileRSS: {
		"User-Agent":      "mediawatch-scraper/1.0 (+rss)",
		"Accept":          "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	},
}

// Client performs GET requests with per-profile headers, timeouts, and
// exponential-backoff-with-jitter retries on 429/5xx responses.
type Client struct {
	doer Doer
	// now is overridable in tests.
	now func() time.Time
}

// New creates a Client backed by the given Doer (typically *http.Client).
func New(doer Doer) *Client {
	return &Client{doer: doer, now: time.Now}
}

// Get performs a GET request against url with the given profile's headers,
// timeout, and retry policy.
func (c *Client) Get(ctx context.Context, url string, profile Profile) (*http.Response, []byte, error) {
	timeout, ok := profileTimeouts[profile]
	if !ok {
		timeout = profileTimeouts[ProfileHTML]
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := retry.NewExponential(retryBaseDelay)
	backoff = retry.WithMaxRetries(maxAttempts-1, backoff)
	backoff = retry.WithCappedDuration(retryCapDelay, backoff)
	backoff = retry.WithJitterPercent(50, backoff)

	var (
		resp *http.Response
		body []byte
	)

	err := retry.Do(reqCtx, backoff, func(attemptCtx context.Context) error {
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		for k, v := range profileHeaders[profile] {
			req.Header.Set(k, v)
		}

		r, err := c.doer.Do(req)
		if err != nil {
			if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrTransport, err))
		}
		defer r.Body.Close()

		b, readErr := io.ReadAll(r.Body)
		if readErr != nil {
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrTransport, readErr))
		}

		if r.StatusCode == http.StatusTooManyRequests || r.StatusCode == http.StatusServiceUnavailable {
			if wait := retryAfterDelay(r.Header.Get("Retry-After")); wait > 0 {
				select {
				case <-time.After(wait):
				case <-attemptCtx.Done():
					return fmt.Errorf("%w: %v", ErrTimeout, attemptCtx.Err())
				}
			}
			return retry.RetryableError(&HTTPError{StatusCode: r.StatusCode})
		}
		if r.StatusCode >= 500 {
			return retry.RetryableError(&HTTPError{StatusCode: r.StatusCode})
		}
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			return &HTTPError{StatusCode: r.StatusCode}
		}

		resp = r
		body = b
		return nil
	})
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, nil, err
	}

	return resp, body, nil
}

func retryAfterDelay(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		d := time.Duration(secs) * time.Second
		return clampDuration(d, minRetryAfter, maxRetryAfter)
	}
	if when, err := http.ParseTime(header); err == nil {
		d := time.Until(when)
		return clampDuration(d, minRetryAfter, maxRetryAfter)
	}
	return 0
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

// jitteredBackoff returns a standalone jittered delay for the given attempt,
// without the full retry loop.
func jitteredBackoff(attempt int) time.Duration {
	base := retryBaseDelay * time.Duration(1<<attempt)
	if base > retryCapDelay {
		base = retryCapDelay
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base/2 + jitter
}
