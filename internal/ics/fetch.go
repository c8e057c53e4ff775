package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	appLog "dday/internal/log"
)

// Source is where an ICS payload came from: a subscribed URL or a local file.
type Source struct {
	// ID names the source in logs (file name or URL host).
	ID string
	// URL is the ICS endpoint; empty for files.
	URL string
}

// FetchResult contains the outcome of fetching a single ICS source.
type FetchResult struct {
	Source    Source
	Body      []byte // ICS payload (either freshly fetched or from cache)
	FromCache bool   // true if the cached body was reused
}

// cacheEntry holds HTTP cache metadata for a single ICS URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher fetches ICS subscriptions with conditional requests
// (ETag / Last-Modified) and a disk cache keyed by URL hash.
type Fetcher struct {
	client   *resty.Client
	cacheDir string

	// 네트워크 오류와 5xx 응답만 재시도한다. 4xx/304 는 그대로 처리.
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewFetcher creates a Fetcher caching under cacheDir, normally
// {data_dir}/ics-cache.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./ics-cache"
	}
	c := resty.New().
		SetTimeout(15*time.Second).
		SetHeader("Accept", "text/calendar, */*;q=0.5")
	return &Fetcher{
		client:      c,
		cacheDir:    cacheDir,
		maxAttempts: 3,
		baseBackoff: 500 * time.Millisecond,
		maxBackoff:  4 * time.Second,
	}
}

// IsURL reports whether location should be fetched rather than read from disk.
// webcal:// is the subscription scheme calendar apps hand out.
func IsURL(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "webcal://")
}

// Load reads an ICS payload from a file path or a URL.
func (f *Fetcher) Load(ctx context.Context, location string) (FetchResult, error) {
	if IsURL(location) {
		u := location
		if strings.HasPrefix(strings.ToLower(u), "webcal://") {
			u = "https://" + u[len("webcal://"):]
		}
		return f.FetchOne(ctx, Source{ID: redactURL(u), URL: u})
	}

	body, err := os.ReadFile(location)
	if err != nil {
		return FetchResult{}, fmt.Errorf("ics: read %s: %w", location, err)
	}
	return FetchResult{Source: Source{ID: filepath.Base(location)}, Body: body}, nil
}

// FetchOne fetches a single ICS source, honoring ETag and Last-Modified.
// On network errors or non-OK statuses a cached body is used if one exists.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	cachePath := f.cachePathForURL(src.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}
	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body.ics"))

	req := f.client.R().SetContext(ctx)
	if meta.ETag != "" {
		req.SetHeader("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.SetHeader("If-Modified-Since", meta.LastModified)
	}

	appLog.Info("ics fetch start", "id", src.ID, "url", redactURL(src.URL))
	resp, err := f.get(ctx, req, src)

	fromCache := func(reason string, cause error) (FetchResult, error) {
		appLog.Error("ics fetch failed, using cached body", cause, "id", src.ID, "url", redactURL(src.URL), "reason", reason)
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
	}

	if err != nil {
		if len(cachedBody) > 0 {
			return fromCache("network", err)
		}
		return FetchResult{}, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		body := resp.Body()
		newMeta := cacheEntry{
			URL:          src.URL,
			ETag:         resp.Header().Get("ETag"),
			LastModified: resp.Header().Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			// 캐시 저장 실패는 치명적이지 않다. 받은 본문은 그대로 쓴다.
			appLog.Error("ics cache save failed", err, "id", src.ID)
		}
		appLog.Info("ics fetch success", "id", src.ID, "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("ics fetch not modified; using cache", "id", src.ID)
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil

	default:
		statusErr := errors.New(resp.Status())
		if len(cachedBody) > 0 {
			return fromCache("status", statusErr)
		}
		return FetchResult{}, statusErr
	}
}

// get performs the request, retrying network errors and 5xx responses with
// exponential backoff up to maxAttempts.
func (f *Fetcher) get(ctx context.Context, req *resty.Request, src Source) (*resty.Response, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = f.baseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = f.maxBackoff
	exp.Reset()

	attempts := 0
	for {
		resp, err := req.Get(src.URL)
		if !retryable(resp, err) || attempts >= f.maxAttempts-1 {
			return resp, err
		}

		attempts++
		wait := exp.NextBackOff()
		appLog.Warn("ics fetch retry", "id", src.ID, "attempt", attempts, "wait", wait.String())
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return resp.StatusCode() >= http.StatusInternalServerError
}

func (f *Fetcher) cachePathForURL(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	// 앞 16 hex 자리만 디렉터리 이름으로 쓴다.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL hides sensitive parts of an ICS URL for logging purposes:
// private calendar links carry their secret in the path or query.
//
//	https://example.com/path/to/private.ics?token=abcd -> https://example.com/...(redacted)
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
