package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/clauseguard/internal/util"
	"github.com/ppiankov/clauseguard/internal/worker"
)

const fetchAttempts = 3

// fetchSleepFunc is swapped out by tests
var fetchSleepFunc = time.Sleep

// Fetcher retrieves contracts published at http(s) URLs
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker // Nil when robots.txt is ignored
	hosts      *worker.Limiter     // Per-host Crawl-delay budgets
	throttled  sync.Map            // Hosts whose Crawl-delay is already applied
}

// NewFetcher creates a new Fetcher. Proxy settings follow util.NewProxyFunc.
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, respectRobots bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(httpProxy, httpsProxy, noProxy)

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
		hosts:      worker.NewLimiter(0, 1),
	}
	if respectRobots {
		f.robots = util.NewRobotsChecker(userAgent, client)
	}
	return f
}

// FetchResult contains the fetched document and response metadata
type FetchResult struct {
	Body         string
	ContentType  string
	LastModified string
	Subject      string
	FinalURL     string
}

// IsHTML reports whether the body should go through visible-text extraction
func (r *FetchResult) IsHTML() bool {
	ct := strings.ToLower(r.ContentType)
	if strings.Contains(ct, "html") {
		return true
	}
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		trimmed := strings.ToLower(strings.TrimSpace(r.Body))
		return strings.HasPrefix(trimmed, "<!doctype html") || strings.HasPrefix(trimmed, "<html")
	}
	return false
}

// Fetch retrieves the document at rawURL once
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil {
		if err := f.robots.Check(ctx, rawURL); err != nil {
			return nil, err
		}
		if err := f.throttle(ctx, rawURL); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	ct := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/pdf") || strings.Contains(ct, "officedocument") {
		return nil, fmt.Errorf("unsupported content type %q: convert the contract to text first", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := resp.Request.URL.String()
	return &FetchResult{
		Body:         string(body),
		ContentType:  ct,
		LastModified: resp.Header.Get("Last-Modified"),
		Subject:      extractSubject(finalURL),
		FinalURL:     finalURL,
	}, nil
}

// throttle spaces requests to a host by its robots.txt Crawl-delay
func (f *Fetcher) throttle(ctx context.Context, rawURL string) error {
	delay := f.robots.CrawlDelay(ctx, rawURL)
	if delay <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	if _, seen := f.throttled.LoadOrStore(u.Host, true); !seen {
		f.hosts.SetRate(u.Host, 1/delay.Seconds(), 1)
	}
	return f.hosts.Wait(ctx, u.Host)
}

// FetchWithRetry retries transient failures (5xx, 429, connection errors)
// with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			slog.Debug("retrying contract fetch", "url", rawURL, "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			fetchSleepFunc(backoff)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func isRetryableFetchError(err error) bool {
	if err == nil || errors.Is(err, util.ErrDisallowed) {
		return false
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "fetch: ") {
		return true
	}
	for _, code := range []string{"429", "500", "502", "503", "504"} {
		if strings.HasPrefix(msg, "unexpected status: "+code) {
			return true
		}
	}
	return false
}

// IsURL reports whether location names an http(s) document
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// extractSubject derives a readable contract name from the URL
func extractSubject(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return parsed.Host
	}

	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]
	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}
	last = strings.ReplaceAll(last, "_", " ")
	last = strings.ReplaceAll(last, "-", " ")
	return last
}
