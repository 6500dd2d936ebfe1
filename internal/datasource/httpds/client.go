// Package httpds downloads remote sources over HTTP(S) with retry/backoff and
// optional TLS verification skipping.
//
// Transport errors, 429 and 5xx responses are retried with exponential
// backoff; any other non-2xx status is final. Downloads land in a temporary
// sibling of the destination and are renamed into place only when complete,
// so a failed transfer never leaves a partial file behind.
package httpds

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"ingest/internal/errs"
)

// Config configures the client. Zero values get defaults:
//   - MaxRetries:     0 (only the initial attempt)
//   - InitialBackoff: 200ms
//   - MaxBackoff:     5s
type Config struct {
	// Timeout bounds a whole request including the body. Zero leaves the
	// bound to the caller's context.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts after the initial request.
	MaxRetries int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// BaseHeaders are added to every request.
	BaseHeaders http.Header

	// Transport overrides the default *http.Transport.
	Transport http.RoundTripper
}

// Client wraps an http.Client with retry and backoff behavior.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	baseHeaders    http.Header

	// sleep is injectable to make tests fast and deterministic.
	sleep func(time.Duration)
}

// NewClient constructs a Client from Config, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}

	transport := cfg.Transport
	if transport == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicitly configurable
		}
		transport = base
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		baseHeaders:    cfg.BaseHeaders.Clone(),
		sleep:          time.Sleep,
	}
}

// Get issues a GET with retries. A response is returned for any status that
// is not retryable (including 4xx); the caller must close its body.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	if url == "" {
		return nil, errs.New("httpds: url must not be empty")
	}

	attempts := c.maxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errs.Wrap(err, "httpds: build request")
		}
		for k, vs := range c.baseHeaders {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Set(k, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			if !isRetryableStatus(resp.StatusCode) {
				return resp, nil
			}
			_ = resp.Body.Close()
			lastErr = errs.Newf("httpds: retryable status %d from GET %s", resp.StatusCode, url)
		}

		if attempt+1 >= attempts {
			return nil, lastErr
		}
		if err := sleepWithContext(ctx, c.sleep, backoffDuration(c.initialBackoff, attempt, c.maxBackoff)); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// Fetch downloads url to dst. A non-2xx final status, a transfer error or an
// empty body is an errs.ErrDownload; context expiry additionally matches
// errs.ErrTimeout. dst only exists after a successful call.
func (c *Client) Fetch(ctx context.Context, url, dst string) (err error) {
	resp, err := c.Get(ctx, url, nil)
	if err != nil {
		return errs.WrapKind(errs.FromContext(err), errs.ErrDownload, "httpds: GET %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errs.Kindf(errs.ErrDownload, "httpds: GET %s: status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".part-*")
	if err != nil {
		return errs.WrapKind(err, errs.ErrDownload, "httpds: create temp file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		return errs.WrapKind(errs.FromContext(ctxErrOr(ctx, err)), errs.ErrDownload, "httpds: read body of %s", url)
	}
	if n == 0 {
		return errs.Kindf(errs.ErrDownload, "httpds: %s returned an empty body", url)
	}
	if err = tmp.Close(); err != nil {
		return errs.WrapKind(err, errs.ErrDownload, "httpds: flush %s", tmp.Name())
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return errs.WrapKind(err, errs.ErrDownload, "httpds: move download into place")
	}
	return nil
}

// ctxErrOr prefers the context error so a body read cut short by a deadline
// reports as a timeout rather than a generic read error.
func ctxErrOr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return errs.Wrap(cerr, err.Error())
	}
	return err
}

// isRetryableStatus reports whether code should trigger a retry: 5xx and 429
// are transient, everything else is final.
func isRetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// backoffDuration returns initial * 2^attempt, clamped to max.
func backoffDuration(initial time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt <= 0 {
		if initial > max {
			return max
		}
		return initial
	}
	d := initial << attempt
	if d > max || d <= 0 {
		return max
	}
	return d
}

// sleepWithContext waits d but aborts early if ctx is canceled.
func sleepWithContext(ctx context.Context, sleep func(time.Duration), d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		sleep(0)
		return nil
	}
}
