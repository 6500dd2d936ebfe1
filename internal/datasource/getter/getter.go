// Package getter fetches remote sources that are not plain HTTP(S) URLs
// (s3::, gcs::, git::, file://, ...) with hashicorp/go-getter.
package getter

import (
	"context"
	"os"

	gogetter "github.com/hashicorp/go-getter"

	"ingest/internal/errs"
)

// Fetcher downloads a single file. Decompression is disabled: a .csv.gz
// source stays compressed on disk and the reader inflates it.
type Fetcher struct {
	// Pwd resolves relative sources. Defaults to the working directory.
	Pwd string
	// Insecure disables TLS verification where the getter supports it.
	Insecure bool
}

// New returns a Fetcher rooted at the current working directory.
func New(insecure bool) *Fetcher {
	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}
	return &Fetcher{Pwd: pwd, Insecure: insecure}
}

// Fetch copies src to dst. Failures are errs.ErrDownload; a context deadline
// also matches errs.ErrTimeout. dst is removed when the copy fails.
func (f *Fetcher) Fetch(ctx context.Context, src, dst string) error {
	client := &gogetter.Client{
		Ctx:           ctx,
		Src:           src,
		Dst:           dst,
		Pwd:           f.Pwd,
		Mode:          gogetter.ClientModeFile,
		Getters:       getters(),
		Decompressors: map[string]gogetter.Decompressor{},
		Insecure:      f.Insecure,
	}
	if err := client.Get(); err != nil {
		_ = os.Remove(dst)
		if errs.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errs.Mark(err, errs.ErrTimeout)
		}
		return errs.WrapKind(err, errs.ErrDownload, "getter: fetch %s", src)
	}
	fi, err := os.Stat(dst)
	if err != nil {
		return errs.WrapKind(err, errs.ErrDownload, "getter: %s produced no file", src)
	}
	if fi.Size() == 0 {
		_ = os.Remove(dst)
		return errs.Kindf(errs.ErrDownload, "getter: %s is empty", src)
	}
	return nil
}

// getters is go-getter's default set with file sources copied rather than
// symlinked, so releasing a download never reaches through to the original.
func getters() map[string]gogetter.Getter {
	out := make(map[string]gogetter.Getter, len(gogetter.Getters))
	for k, g := range gogetter.Getters {
		out[k] = g
	}
	out["file"] = &gogetter.FileGetter{Copy: true}
	return out
}
