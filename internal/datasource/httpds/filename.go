package httpds

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/zeebo/xxh3"
)

// HashString returns a stable xxh3 hex digest of s.
func HashString(s string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(s))
}

// OutputSuffix picks the local suffix for a downloaded source: ".csv.gz" when
// the URL path ends in it, ".csv" otherwise. No decompression is implied.
func OutputSuffix(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	if strings.HasSuffix(strings.ToLower(p), ".csv.gz") {
		return ".csv.gz"
	}
	return ".csv"
}

// OutputFilename derives a deterministic local filename for rawURL.
func OutputFilename(rawURL string) string {
	return "downloaded_" + HashString(rawURL) + OutputSuffix(rawURL)
}
