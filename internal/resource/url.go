package resource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// URLResource is a URL-addressed resource: it classifies into the
// "normal-<scheme>-resource" / "archive-<scheme>-resource" /
// "compressed-<scheme>-resource" family.
type URLResource struct {
	URL    string
	Client *retryablehttp.Client // nil => DefaultHTTPClient()
}

var defaultHTTPClient = func() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3 //nolint:mnd
	c.Logger = nil

	return c
}()

func (u URLResource) client() *retryablehttp.Client {
	if u.Client != nil {
		return u.Client
	}

	return defaultHTTPClient
}

func (u URLResource) Kind() Kind { return KindURL }

// Stat issues a HEAD request to learn size (if the server provides it)
// and last-modified without downloading the body.
func (u URLResource) Stat(ctx context.Context) (Info, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, u.URL, nil)
	if err != nil {
		return Info{}, fmt.Errorf("build HEAD request for %q: %w", u.URL, err)
	}

	resp, err := u.client().Do(req)
	if err != nil {
		return Info{}, fmt.Errorf("HEAD %q: %w", u.URL, err)
	}
	defer resp.Body.Close()

	info := Info{Size: -1}
	if resp.ContentLength >= 0 {
		info.Size = resp.ContentLength
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := time.Parse(http.TimeFormat, lm); err == nil {
			info.ModTime = t
			info.HasModTime = true
		}
	}

	return info, nil
}

// Open issues a GET request and returns its body as the resource's
// stream.
func (u URLResource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build GET request for %q: %w", u.URL, err)
	}

	resp, err := u.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %q: %w", u.URL, err)
	}

	return resp.Body, nil
}

// StreamResource wraps an already-open byte stream (an archive entry, a
// decompressed payload) as a [Resource]. It inherits metadata from its
// container rather than stat-ing anything itself.
type StreamResource struct {
	R       io.Reader
	Size    int64
	ModTime time.Time
}

func (s StreamResource) Kind() Kind { return KindStream }

func (s StreamResource) Stat(_ context.Context) (Info, error) {
	return Info{Size: s.Size, ModTime: s.ModTime, HasModTime: !s.ModTime.IsZero()}, nil
}

func (s StreamResource) Open(_ context.Context) (io.ReadCloser, error) {
	if rc, ok := s.R.(io.ReadCloser); ok {
		return rc, nil
	}

	return io.NopCloser(s.R), nil
}
