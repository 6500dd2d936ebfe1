// Package datasource resolves a configured source to a readable local file.
//
// Local sources are checked and used in place. Remote sources are downloaded
// into a download directory under a deterministic name and reported as
// temporary so the caller can Release them when the run ends.
package datasource

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"ingest/internal/datasource/file"
	"ingest/internal/datasource/getter"
	"ingest/internal/datasource/httpds"
	"ingest/internal/errs"
)

// Kind distinguishes local paths from remote URLs.
type Kind int

const (
	KindLocal Kind = iota + 1
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	}
	return "unknown"
}

// Source is either a local path or a remote URL, never both.
type Source struct {
	Kind Kind
	Path string
	URL  string
}

// Local returns a local Source.
func Local(path string) Source { return Source{Kind: KindLocal, Path: path} }

// Remote returns a remote Source.
func Remote(rawURL string) Source { return Source{Kind: KindRemote, URL: rawURL} }

// Validate enforces that exactly the variant named by Kind is populated.
func (s Source) Validate() error {
	switch s.Kind {
	case KindLocal:
		if s.Path == "" || s.URL != "" {
			return errs.Kindf(errs.ErrConfig, "local source needs a path and no url")
		}
	case KindRemote:
		if s.URL == "" || s.Path != "" {
			return errs.Kindf(errs.ErrConfig, "remote source needs a url and no path")
		}
	default:
		return errs.Kindf(errs.ErrConfig, "source kind %d is not local or remote", s.Kind)
	}
	return nil
}

// String renders the source for logs, with URL credentials removed.
func (s Source) String() string {
	if s.Kind == KindRemote {
		return RedactURL(s.URL)
	}
	return s.Path
}

// Acquired is a local file ready for reading.
type Acquired struct {
	Path string
	// Temporary is set when the file was created by Acquire.
	Temporary bool
}

// Fetcher copies a remote resource to a local path. Implementations must
// leave no file at dst when they fail.
type Fetcher interface {
	Fetch(ctx context.Context, src, dst string) error
}

// Config configures an Acquirer.
type Config struct {
	// DownloadDir receives remote files; empty means os.TempDir().
	DownloadDir        string
	Timeout            time.Duration
	MaxRetries         int
	InsecureSkipVerify bool
}

// Acquirer implements source acquisition and release.
type Acquirer struct {
	dir     string
	timeout time.Duration
	// http serves http and https URLs; other serves every other scheme.
	http  Fetcher
	other Fetcher
	log   *zap.SugaredLogger
}

// NewAcquirer wires the HTTP client and the go-getter fetcher.
func NewAcquirer(cfg Config, log *zap.SugaredLogger) *Acquirer {
	return NewAcquirerWith(cfg,
		httpds.NewClient(httpds.Config{
			MaxRetries:         cfg.MaxRetries,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}),
		getter.New(cfg.InsecureSkipVerify),
		log,
	)
}

// NewAcquirerWith builds an Acquirer around explicit fetchers.
func NewAcquirerWith(cfg Config, httpFetcher, otherFetcher Fetcher, log *zap.SugaredLogger) *Acquirer {
	dir := cfg.DownloadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Acquirer{dir: dir, timeout: cfg.Timeout, http: httpFetcher, other: otherFetcher, log: log}
}

// Acquire makes src available as a local file. Local sources must exist, be
// regular files and be readable (errs.ErrSourceNotFound). Remote sources are
// downloaded (errs.ErrDownload, errs.ErrTimeout on expiry) and reported as
// temporary.
func (a *Acquirer) Acquire(ctx context.Context, src Source) (Acquired, error) {
	if err := src.Validate(); err != nil {
		return Acquired{}, err
	}

	if src.Kind == KindLocal {
		if err := file.NewLocal(src.Path).Check(); err != nil {
			return Acquired{}, err
		}
		return Acquired{Path: src.Path}, nil
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return Acquired{}, errs.WrapKind(err, errs.ErrDownload, "create download dir %s", a.dir)
	}
	dst := filepath.Join(a.dir, httpds.OutputFilename(src.URL))

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	a.log.Infow("datasource: download started", "url", src.String(), "dest", dst)
	if err := a.fetcherFor(src.URL).Fetch(ctx, src.URL, dst); err != nil {
		_ = os.Remove(dst)
		return Acquired{}, errs.Mark(errs.FromContext(err), errs.ErrDownload)
	}

	fi, err := os.Stat(dst)
	if err != nil || fi.Size() == 0 {
		_ = os.Remove(dst)
		return Acquired{}, errs.Kindf(errs.ErrDownload, "download of %s produced no data", src.String())
	}
	a.log.Infow("datasource: download finished",
		"dest", dst,
		"size", humanize.Bytes(uint64(fi.Size())),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return Acquired{Path: dst, Temporary: true}, nil
}

// Release deletes path when wasTemporary. Failures are logged, never returned.
func (a *Acquirer) Release(path string, wasTemporary bool) {
	if !wasTemporary || path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.log.Warnw("datasource: release failed", "path", path, "err", err)
		return
	}
	a.log.Debugw("datasource: released", "path", path)
}

func (a *Acquirer) fetcherFor(rawURL string) Fetcher {
	if strings.Contains(rawURL, "::") {
		return a.other
	}
	u, err := url.Parse(rawURL)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return a.http
	}
	return a.other
}

// RedactURL strips user info from rawURL. Unparseable input is returned as-is.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	return u.Redacted()
}
