package csv

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// maxIdentLen is PostgreSQL's identifier limit (NAMEDATALEN-1).
const maxIdentLen = 63

// prepareHeaders strips the BOM and surrounding spaces, names blank cells
// col_N, optionally normalizes, and makes every name unique.
func prepareHeaders(h []string, normalize bool) []string {
	out := make([]string, len(h))
	for i, c := range h {
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		c = strings.TrimSpace(c)
		if normalize {
			c = NormalizeHeader(c)
		}
		if c == "" {
			c = "col_" + strconv.Itoa(i)
		}
		out[i] = c
	}
	return dedupe(out)
}

// dedupe suffixes repeated names with _1, _2, ... in order of appearance.
// Comparison is case-insensitive because most stores fold identifiers.
func dedupe(names []string) []string {
	seen := make(map[string]int, len(names))
	for _, n := range names {
		seen[strings.ToLower(n)] = 0
	}
	counts := make(map[string]int, len(names))
	for i, n := range names {
		key := strings.ToLower(n)
		counts[key]++
		if counts[key] == 1 {
			continue
		}
		for {
			cand := n + "_" + strconv.Itoa(counts[key]-1)
			if _, taken := seen[strings.ToLower(cand)]; !taken {
				names[i] = cand
				seen[strings.ToLower(cand)] = 0
				break
			}
			counts[key]++
		}
	}
	return names
}

// NormalizeHeader converts a header cell to a SQL-safe identifier:
//  1. lowercase and trim
//  2. strip accents (NFD → remove Mn → NFC)
//  3. keep [a-z0-9_]; convert space/dash/dot to underscore; drop others
//  4. truncate to 63 bytes
func NormalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, _ := transform.String(t, s)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	name := strings.Trim(b.String(), "_")
	if len(name) > maxIdentLen {
		name = name[:maxIdentLen]
	}
	return name
}
