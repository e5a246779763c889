package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxFeedBytes = 10 << 20
)

type FetchErrorKind string

const (
	FetchTimeout     FetchErrorKind = "timeout"
	FetchUnreachable FetchErrorKind = "unreachable"
	FetchHTTPStatus  FetchErrorKind = "http_status"
	FetchTooLarge    FetchErrorKind = "too_large"
)

type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("fetch %s: HTTP error: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	case FetchTooLarge:
		return fmt.Sprintf("fetch %s: feed exceeds size limit", e.URL)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher downloads raw feed documents. It never retries; a failed feed is
// picked up again by the next cycle.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	maxBytes   int64
}

func NewFetcher(httpClient *http.Client, userAgent string, timeout time.Duration, maxBytes int64) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFeedBytes
	}

	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
		maxBytes:   maxBytes,
	}
}

func (f *Fetcher) Run(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchUnreachable, URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/atom+xml, application/rss+xml, application/xml, text/xml;q=0.9, */*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classifyTransportError(err), URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Kind: FetchHTTPStatus, URL: url, StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > f.maxBytes {
		return nil, &FetchError{Kind: FetchTooLarge, URL: url}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{Kind: classifyTransportError(err), URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &FetchError{Kind: FetchTooLarge, URL: url}
	}

	return data, nil
}

func classifyTransportError(err error) FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FetchTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FetchTimeout
	}
	return FetchUnreachable
}
