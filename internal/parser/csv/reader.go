// Package csv decodes a delimited-text file into fixed-size record batches.
//
// The reader streams: memory is bounded by one batch regardless of file
// size. Gzip-compressed input is detected by its magic bytes and inflated on
// the fly, and a non-UTF-8 source charset can be decoded with the encoding
// option.
package csv

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"ingest/internal/config"
	"ingest/internal/datasource/file"
	"ingest/internal/errs"
	"ingest/internal/record"
)

// Options configures decoding. The zero value reads comma-separated UTF-8.
type Options struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// LazyQuotes tolerates quotes in unquoted fields.
	LazyQuotes bool
	// TrimSpace trims surrounding white space from every value.
	TrimSpace bool
	// NormalizeHeaders rewrites header cells as lowercase ASCII identifiers.
	NormalizeHeaders bool
	// Encoding names the source charset (e.g. "windows-1250"). Empty or
	// "utf-8" means no conversion; invalid UTF-8 is then a decode error.
	Encoding string
}

// OptionsFrom reads Options from the free-form reader.options block.
func OptionsFrom(o config.Options) Options {
	return Options{
		Comma:            o.Rune("comma", ','),
		LazyQuotes:       o.Bool("lazy_quotes", false),
		TrimSpace:        o.Bool("trim_space", false),
		NormalizeHeaders: o.Bool("normalize_headers", false),
		Encoding:         o.String("encoding", ""),
	}
}

const readBufferSize = 1 << 20

// Reader yields batches of at most chunkSize rows. It is not safe for
// concurrent use and cannot be restarted; open the file again to re-read it.
type Reader struct {
	path      string
	chunkSize int
	opt       Options
	checkUTF8 bool

	f       *os.File
	gz      *gzip.Reader
	cr      *csv.Reader
	columns []string

	index int
	rows  int64
	done  bool
}

// Open opens path and reads its header. chunkSize must be positive.
func Open(path string, chunkSize int, opt Options) (*Reader, error) {
	if chunkSize <= 0 {
		return nil, errs.Kindf(errs.ErrConfig, "csv: chunk size must be > 0, got %d", chunkSize)
	}

	f, err := file.NewLocal(path).Open(context.Background())
	if err != nil {
		return nil, err
	}
	r := &Reader{path: path, chunkSize: chunkSize, opt: opt, f: f}

	src, err := r.decodedStream()
	if err != nil {
		_ = r.Close()
		return nil, err
	}

	cr := csv.NewReader(src)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.ReuseRecord = true
	// The header fixes the width of every following row.
	cr.FieldsPerRecord = 0
	r.cr = cr

	hdr, err := cr.Read()
	if err == io.EOF {
		_ = r.Close()
		return nil, errs.Kindf(errs.ErrDecode, "csv: %s has no header row", path)
	}
	if err != nil {
		_ = r.Close()
		return nil, errs.WrapKind(err, errs.ErrDecode, "csv: read header of %s", path)
	}
	if r.checkUTF8 {
		for _, h := range hdr {
			if !utf8.ValidString(h) {
				_ = r.Close()
				return nil, errs.Kindf(errs.ErrDecode, "csv: %s line 1: invalid UTF-8 in header", path)
			}
		}
	}
	r.columns = prepareHeaders(append([]string(nil), hdr...), opt.NormalizeHeaders)
	return r, nil
}

// decodedStream layers gzip inflation and charset decoding over the file.
func (r *Reader) decodedStream() (io.Reader, error) {
	br := bufio.NewReaderSize(r.f, readBufferSize)
	var src io.Reader = br

	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errs.WrapKind(err, errs.ErrDecode, "csv: open gzip stream %s", r.path)
		}
		r.gz = gz
		src = bufio.NewReaderSize(gz, readBufferSize)
	}

	switch enc := strings.ToLower(strings.TrimSpace(r.opt.Encoding)); enc {
	case "", "utf-8", "utf8":
		r.checkUTF8 = true
	default:
		e, err := htmlindex.Get(enc)
		if err != nil {
			return nil, errs.WrapKind(err, errs.ErrConfig, "csv: unknown encoding %q", r.opt.Encoding)
		}
		src = transform.NewReader(src, e.NewDecoder())
	}
	return src, nil
}

// Columns returns the header-defined column names. It is available right
// after Open, even for a source without data rows.
func (r *Reader) Columns() []string { return append([]string(nil), r.columns...) }

// RowsRead returns the number of data rows decoded so far.
func (r *Reader) RowsRead() int64 { return r.rows }

// Next decodes the next batch. ok is false once the source is exhausted and
// stays false on every later call. Batches are numbered from 1; only the last
// batch may hold fewer than chunkSize rows. A malformed row fails the whole
// read with errs.ErrDecode.
func (r *Reader) Next(ctx context.Context) (record.Batch, bool, error) {
	if r.done {
		return record.Batch{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return record.Batch{}, false, errs.FromContext(err)
	}

	rows := make([]record.Row, 0, r.chunkSize)
	for len(rows) < r.chunkSize {
		rec, err := r.cr.Read()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			r.done = true
			return record.Batch{}, false, errs.WrapKind(err, errs.ErrDecode, "csv: %s", r.path)
		}
		line, _ := r.cr.FieldPos(0)

		row := make(record.Row, len(rec))
		for i, v := range rec {
			if r.checkUTF8 && !utf8.ValidString(v) {
				r.done = true
				return record.Batch{}, false, errs.Kindf(errs.ErrDecode, "csv: %s line %d: invalid UTF-8 in column %q", r.path, line, r.columns[i])
			}
			if r.opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				row[i] = nil
				continue
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return record.Batch{}, false, nil
	}
	r.index++
	r.rows += int64(len(rows))
	return record.Batch{Index: r.index, Columns: r.columns, Rows: rows}, true, nil
}

// Close releases the file. It is safe to call more than once.
func (r *Reader) Close() error {
	r.done = true
	if r.gz != nil {
		_ = r.gz.Close()
		r.gz = nil
	}
	if r.f == nil {
		return nil
	}
	err := file.CloseRead(r.f)
	r.f = nil
	return err
}
