package storage

import (
	"context"
	"database/sql/driver"
	"io"
	"net"
	"syscall"

	"ingest/internal/errs"
)

// Classifier reports whether a backend-specific error is worth retrying.
type Classifier func(error) bool

// MarkTransient tags err with errs.ErrTransient when it is a connection-level
// failure or when any of the extra classifiers recognise it. Deadline expiry
// is tagged errs.ErrTimeout instead.
func MarkTransient(err error, extra ...Classifier) error {
	if err == nil {
		return nil
	}
	if errs.Is(err, context.DeadlineExceeded) {
		return errs.Mark(err, errs.ErrTimeout)
	}
	if isConnError(err) {
		return errs.Mark(err, errs.ErrTransient)
	}
	for _, c := range extra {
		if c != nil && c(err) {
			return errs.Mark(err, errs.ErrTransient)
		}
	}
	return err
}

func isConnError(err error) bool {
	if errs.Is(err, driver.ErrBadConn) ||
		errs.Is(err, io.ErrUnexpectedEOF) ||
		errs.Is(err, syscall.ECONNRESET) ||
		errs.Is(err, syscall.ECONNREFUSED) ||
		errs.Is(err, syscall.EPIPE) {
		return true
	}
	var ne net.Error
	return errs.As(err, &ne)
}
