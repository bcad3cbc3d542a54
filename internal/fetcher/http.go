package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	Profile      Profile
	UserAgent    string // default agent when the profile has no rotation
	Timeout      time.Duration
	RateLimiters map[string]*rate.Limiter
}

// HTTPFetcher implements Fetcher using net/http with politeness pauses
// and per-host rate limiting. It performs a single attempt per call;
// retry policy belongs to the caller, which knows whether an empty parse
// should count as a failure.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiters map[string]*rate.Limiter
}

// DefaultRateLimiters returns the default per-host rate limiters.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"scholar.google.com": rate.NewLimiter(5, 5),
		"arxiv.org":          rate.NewLimiter(1, 2),
		"export.arxiv.org":   rate.NewLimiter(1, 2),
	}
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "paperline/1.0"
	}
	limiters := make(map[string]*rate.Limiter)
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: limiters,
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rate.NewLimiter(20, 20)
	}
	if lim, ok := f.limiters[u.Host]; ok {
		return lim
	}
	return rate.NewLimiter(20, 20)
}

// pause applies the profile's politeness delay.
func (f *HTTPFetcher) pause(ctx context.Context) error {
	d := f.opts.Profile.MinDelay
	if f.opts.Profile.MaxDelay > d {
		d += time.Duration(rand.Int64N(int64(f.opts.Profile.MaxDelay - d)))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "fetcher: politeness pause")
	case <-t.C:
		return nil
	}
}

func (f *HTTPFetcher) setHeaders(req *http.Request) {
	agent := f.opts.UserAgent
	if n := len(f.opts.Profile.UserAgents); n > 0 {
		agent = f.opts.Profile.UserAgents[rand.IntN(n)]
	}
	req.Header.Set("User-Agent", agent)
	if f.opts.Profile.BrowserHeaders {
		// Accept-Encoding stays unset so the transport negotiates gzip
		// and decompresses transparently.
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Connection", "keep-alive")
	}
}

func (f *HTTPFetcher) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := f.pause(ctx); err != nil {
		return nil, "", err
	}
	if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
		return nil, "", eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", eris.Wrapf(err, "fetcher: create request for %s", rawURL)
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", eris.Wrapf(err, "fetcher: read body from %s", rawURL)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// FetchPage downloads an HTML page and returns its body decoded to UTF-8.
func (f *HTTPFetcher) FetchPage(ctx context.Context, rawURL string) ([]byte, error) {
	data, contentType, err := f.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return decodeCharset(data, contentType)
}

// FetchBinary downloads a document such as a PDF and returns the raw bytes.
func (f *HTTPFetcher) FetchBinary(ctx context.Context, rawURL string) ([]byte, error) {
	data, _, err := f.fetch(ctx, rawURL)
	return data, err
}

// decodeCharset converts a body to UTF-8 based on the charset parameter
// of its Content-Type. Bodies without a declared charset pass through
// unchanged.
func decodeCharset(data []byte, contentType string) ([]byte, error) {
	if contentType == "" {
		return data, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return data, nil
	}
	name, ok := params["charset"]
	if !ok || strings.EqualFold(name, "utf-8") {
		return data, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: unsupported charset %q", name)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: decode %s body", name)
	}
	return decoded, nil
}
