// Package file implements the local filesystem side of source acquisition.
package file

import (
	"context"
	"os"

	"ingest/internal/errs"
)

// Local is a filesystem data source bound to one path.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Check verifies the path names a readable regular file. Every failure is
// marked errs.ErrSourceNotFound. It has no side effects.
func (l *Local) Check() error {
	fi, err := os.Stat(l.path)
	if err != nil {
		return errs.WrapKind(err, errs.ErrSourceNotFound, "stat %s", l.path)
	}
	if !fi.Mode().IsRegular() {
		return errs.Kindf(errs.ErrSourceNotFound, "%s is not a regular file (%s)", l.path, fi.Mode().Type())
	}
	f, err := os.Open(l.path)
	if err != nil {
		return errs.WrapKind(err, errs.ErrSourceNotFound, "open %s", l.path)
	}
	return f.Close()
}

// Open opens the path for a single sequential pass and advises the kernel
// accordingly. A context that is already done short-circuits the call.
func (l *Local) Open(ctx context.Context) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, errs.WrapKind(err, errs.ErrSourceNotFound, "open %s", l.path)
	}
	adviseSequential(f)
	return f, nil
}
