package httpds

import (
	"strings"
	"testing"
)

func TestHashString_Stable(t *testing.T) {
	t.Parallel()

	const input = "https://example.com/path?x=1&y=2"
	if a, b := HashString(input), HashString(input); a == "" || a != b {
		t.Fatalf("HashString(%q) not stable: %q vs %q", input, a, b)
	}
	if HashString("a") == HashString("b") {
		t.Fatalf("distinct inputs hashed equal")
	}
}

func TestOutputFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/DataTalksClub/nyc-tlc-data/releases/download/yellow/yellow_tripdata_2021-01.csv.gz", ".csv.gz"},
		{"https://example.com/data/TRIPS.CSV.GZ?sig=abc", ".csv.gz"},
		{"https://example.com/data/trips.csv", ".csv"},
		{"https://example.com/export?format=csv", ".csv"},
		{"https://example.com/archive.gz", ".csv"},
	}
	for _, tt := range tests {
		got := OutputFilename(tt.url)
		if !strings.HasPrefix(got, "downloaded_") || !strings.HasSuffix(got, tt.want) {
			t.Fatalf("OutputFilename(%q) = %q, want suffix %q", tt.url, got, tt.want)
		}
		if strings.HasSuffix(tt.want, ".csv") && strings.HasSuffix(got, ".gz") {
			t.Fatalf("OutputFilename(%q) = %q kept a gz suffix", tt.url, got)
		}
	}
}
