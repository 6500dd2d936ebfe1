// Package errs defines the error taxonomy shared by every ingestion stage.
//
// Kinds are sentinel values attached to concrete errors with
// cockroachdb/errors marks, so callers test them with errs.Is regardless of
// how many times the error was wrapped on the way up:
//
//	if errs.Is(err, errs.ErrDownload) { ... }
//
// A single error may carry more than one kind (a write that timed out is both
// ErrWrite and ErrTimeout).
package errs

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrSourceNotFound: a local source path is missing or unreadable.
	ErrSourceNotFound = errors.New("source not found")
	// ErrDownload: a remote source could not be fetched to disk.
	ErrDownload = errors.New("download failed")
	// ErrConfig: invalid configuration (chunk size, policy, missing table, ...).
	ErrConfig = errors.New("invalid configuration")
	// ErrDecode: the source could not be decoded into records.
	ErrDecode = errors.New("decode failed")
	// ErrSchemaMismatch: an existing relation does not match the incoming columns.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrRelationExists: the destination exists and the policy forbids touching it.
	ErrRelationExists = errors.New("relation exists")
	// ErrWrite: a batch could not be committed.
	ErrWrite = errors.New("write failed")
	// ErrTimeout: a blocking operation exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrTransient marks failures worth retrying (connection resets, deadlocks).
	ErrTransient = errors.New("transient failure")
)

// kinds is ordered by precedence for KindOf: the stage-specific kinds win over
// ErrTimeout so a timed out download still reports as a DownloadError.
var kinds = []struct {
	err  error
	name string
}{
	{ErrSourceNotFound, "SourceNotFoundError"},
	{ErrDownload, "DownloadError"},
	{ErrConfig, "ConfigError"},
	{ErrDecode, "DecodeError"},
	{ErrSchemaMismatch, "SchemaMismatchError"},
	{ErrRelationExists, "RelationExistsError"},
	{ErrWrite, "WriteError"},
	{ErrTimeout, "TimeoutError"},
}

// Re-exported helpers so callers need a single errors import.
var (
	New    = errors.New
	Newf   = errors.Newf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Is     = errors.Is
	As     = errors.As
	Hint   = errors.WithHint
	Hintf  = errors.WithHintf
	Unwrap = errors.Unwrap
)

// Mark attaches kind to err. A nil err stays nil.
func Mark(err error, kind error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, kind)
}

// Kindf builds a new error of the given kind.
func Kindf(kind error, format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), kind)
}

// WrapKind wraps err with a message and marks it with kind.
func WrapKind(err error, kind error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), kind)
}

// KindOf names the most specific kind carried by err, or "UnknownError".
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "TimeoutError"
	}
	if errors.Is(err, context.Canceled) {
		return "CanceledError"
	}
	return "UnknownError"
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// FromContext maps a context error onto the taxonomy: deadline expiry becomes
// ErrTimeout; cancellation is returned unchanged.
func FromContext(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Mark(err, ErrTimeout)
	}
	return err
}
