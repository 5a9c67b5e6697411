package headless

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/valyala/fasthttp"
)

// StyleLoader fetches a style document and checks that it is usable.
type StyleLoader interface {
	Load(ctx context.Context, url string) error
}

// HTTPStyleLoader downloads styles with fasthttp, retrying transient failures with
// exponential backoff. The body must be a JSON object carrying a "version" field; its
// layers are not interpreted.
type HTTPStyleLoader struct {
	client     *fasthttp.Client
	timeout    time.Duration
	maxRetries uint64
	log        *slog.Logger
}

// NewHTTPStyleLoader creates a loader. timeout bounds each attempt.
func NewHTTPStyleLoader(timeout time.Duration, maxRetries uint64, log *slog.Logger) *HTTPStyleLoader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPStyleLoader{
		client: &fasthttp.Client{
			Name:                "wavemap-headless",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		timeout:    timeout,
		maxRetries: maxRetries,
		log:        log,
	}
}

// Load fetches url. 4xx responses and malformed documents are not retried.
func (l *HTTPStyleLoader) Load(ctx context.Context, url string) error {
	op := func() error {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set("Accept", "application/json")

		if err := l.client.DoTimeout(req, resp, l.timeout); err != nil {
			return fmt.Errorf("fetch style: %w", err)
		}

		status := resp.StatusCode()
		switch {
		case status >= 500:
			return fmt.Errorf("fetch style: HTTP %d", status)
		case status != fasthttp.StatusOK:
			return backoff.Permanent(fmt.Errorf("fetch style: HTTP %d", status))
		}

		var doc struct {
			Version *int `json:"version"`
		}
		if err := json.Unmarshal(resp.Body(), &doc); err != nil {
			return backoff.Permanent(fmt.Errorf("decode style: %w", err))
		}
		if doc.Version == nil {
			return backoff.Permanent(fmt.Errorf("decode style: missing version"))
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), l.maxRetries), ctx)
	return backoff.RetryNotify(op, b, func(err error, d time.Duration) {
		l.log.Warn("style fetch failed, retrying", "url", url, "error", err, "retry_in", d)
	})
}

// StaticStyleLoader accepts every URL without I/O, or fails them all with Err.
type StaticStyleLoader struct {
	Err error
}

func (s StaticStyleLoader) Load(context.Context, string) error { return s.Err }
