package httpds

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"ingest/internal/errs"
)

func fastClient(retries int) *Client {
	c := NewClient(Config{
		MaxRetries:     retries,
		Timeout:        2 * time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
	c.sleep = func(time.Duration) {}
	return c
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{InsecureSkipVerify: true})

	if c.maxRetries != 0 {
		t.Fatalf("expected default maxRetries=0, got %d", c.maxRetries)
	}
	if c.initialBackoff <= 0 || c.maxBackoff <= 0 {
		t.Fatalf("expected positive backoff defaults, got %v/%v", c.initialBackoff, c.maxBackoff)
	}
	if c.httpClient.Timeout != 0 {
		t.Fatalf("expected no client timeout for downloads, got %v", c.httpClient.Timeout)
	}
	tp, ok := c.httpClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", c.httpClient.Transport)
	}
	if tp.TLSClientConfig == nil || !tp.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("expected InsecureSkipVerify=true when configured")
	}
}

func TestCustomTransport(t *testing.T) {
	t.Parallel()

	custom := &http.Transport{TLSClientConfig: &tls.Config{}}
	c := NewClient(Config{Transport: custom, InsecureSkipVerify: true})
	if c.httpClient.Transport != custom {
		t.Fatalf("expected custom transport to be used")
	}
	if custom.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("custom transport must not be modified")
	}
}

// TestGet_RetryOn5xxThenSuccess covers 500, 500, then 200.
func TestGet_RetryOn5xxThenSuccess(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := fastClient(3)
	var sleeps int32
	c.sleep = func(time.Duration) { atomic.AddInt32(&sleeps, 1) }

	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if atomic.LoadInt32(&sleeps) == 0 {
		t.Fatalf("expected at least one backoff sleep")
	}
}

func TestGet_StopsAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	resp, err := fastClient(2).Get(context.Background(), srv.URL, nil)
	if err == nil {
		resp.Body.Close()
		t.Fatalf("expected error after exhausting retries")
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 attempts (1 initial + 2 retries), got %d", got)
	}
}

func TestGet_NonRetryableStatus(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	resp, err := fastClient(5).Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok.csv", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("id\n1\n"))
	})
	mux.HandleFunc("/empty.csv", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/missing.csv", http.NotFound)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"success", "/ok.csv", false},
		{"not found", "/missing.csv", true},
		{"empty body", "/empty.csv", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			dst := filepath.Join(dir, "out.csv")

			err := fastClient(0).Fetch(context.Background(), srv.URL+tt.path, dst)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Fetch error: %v", err)
				}
				b, _ := os.ReadFile(dst)
				if string(b) != "id\n1\n" {
					t.Fatalf("downloaded %q", b)
				}
				return
			}
			if !errs.Is(err, errs.ErrDownload) {
				t.Fatalf("expected download error, got %v", err)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Fatalf("expected no files left behind, found %d", len(entries))
			}
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := fastClient(0).Fetch(ctx, srv.URL, filepath.Join(t.TempDir(), "x.csv"))
	if !errs.Is(err, errs.ErrDownload) || !errs.Is(err, errs.ErrTimeout) {
		t.Fatalf("expected download timeout, got %v", err)
	}
}

func TestBackoffDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		initial time.Duration
		attempt int
		max     time.Duration
		want    time.Duration
	}{
		{100 * time.Millisecond, 0, time.Second, 100 * time.Millisecond},
		{100 * time.Millisecond, 1, time.Second, 200 * time.Millisecond},
		{100 * time.Millisecond, 2, time.Second, 400 * time.Millisecond},
		{600 * time.Millisecond, 1, time.Second, time.Second},
		{time.Second, 70, 5 * time.Second, 5 * time.Second},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.initial.String()+"/attempt="+strconv.Itoa(tt.attempt), func(t *testing.T) {
			t.Parallel()
			if got := backoffDuration(tt.initial, tt.attempt, tt.max); got != tt.want {
				t.Fatalf("backoffDuration(%v, %d, %v) = %v, want %v", tt.initial, tt.attempt, tt.max, got, tt.want)
			}
		})
	}
}

func TestIsRetryableStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{429, 500, 503} {
		if !isRetryableStatus(code) {
			t.Fatalf("expected status %d to be retryable", code)
		}
	}
	for _, code := range []int{200, 400, 404} {
		if isRetryableStatus(code) {
			t.Fatalf("expected status %d to be non-retryable", code)
		}
	}
}

func TestSleepWithContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sleepWithContext(ctx, func(time.Duration) {}, 100*time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
