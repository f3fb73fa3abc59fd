package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrResourceUnavailable covers missing files, transport errors and
	// non-success HTTP statuses.
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrParseFailure covers malformed documents.
	ErrParseFailure = errors.New("parse failure")
)

// Fetcher retrieves a resource given as a file path, a file:// URL or an
// http(s) URL.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher builds a fetcher whose HTTP requests are bounded by timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json, text/csv, */*")
	return &Fetcher{client: client}
}

// IsRemote reports whether location is fetched over HTTP.
func IsRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// LocalPath returns the filesystem path for a local location.
func LocalPath(location string) (string, bool) {
	if IsRemote(location) {
		return "", false
	}
	if strings.HasPrefix(location, "file://") {
		u, err := url.Parse(location)
		if err != nil {
			return "", false
		}
		return u.Path, true
	}
	return location, true
}

// Fetch returns the body of the resource at location.
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("%w: no location configured", ErrResourceUnavailable)
	}
	if IsRemote(location) {
		return f.fetchHTTP(ctx, location)
	}
	path, ok := LocalPath(location)
	if !ok {
		return nil, fmt.Errorf("%w: bad location %q", ErrResourceUnavailable, location)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}
	return bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")), nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, location string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: HTTP status %d", ErrResourceUnavailable, resp.StatusCode())
	}
	return bytes.TrimPrefix(resp.Body(), []byte("\xef\xbb\xbf")), nil
}
