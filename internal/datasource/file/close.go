package file

import "os"

// CloseRead closes a file opened by Open, first releasing its cached pages:
// an ingested source is not read twice.
func CloseRead(f *os.File) error {
	adviseDontNeed(f)
	return f.Close()
}
