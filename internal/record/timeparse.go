package record

import (
	"strings"
	"time"

	"ingest/internal/errs"
)

// DefaultTimeLayouts are tried in order when no layouts are configured. They
// cover the TLC trip exports ("2021-01-01 00:30:10") and the usual ISO forms.
var DefaultTimeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04",
	"2006-01-02",
}

// ParseTime parses s with the first matching layout. Times without a zone are
// read as UTC.
func ParseTime(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errs.New("empty timestamp")
	}
	if len(layouts) == 0 {
		layouts = DefaultTimeLayouts
	}
	for _, l := range layouts {
		if t, err := time.ParseInLocation(l, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errs.Newf("unrecognized timestamp %q", s)
}
