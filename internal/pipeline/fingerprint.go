package pipeline

import (
	"strconv"
	"time"

	"github.com/zeebo/xxh3"

	"ingest/internal/record"
)

// Fingerprint hashes the column names and values of b. Two batches with the
// same columns and values in the same order hash the same, whatever their
// Index.
func Fingerprint(b record.Batch) uint64 {
	h := xxh3.New()
	var buf []byte
	for _, c := range b.Columns {
		buf = append(buf[:0], c...)
		buf = append(buf, 0x1f)
		_, _ = h.Write(buf)
	}
	_, _ = h.Write([]byte{0x1e})
	for _, row := range b.Rows {
		buf = buf[:0]
		for _, v := range row {
			buf = appendValue(buf, v)
			buf = append(buf, 0x1f)
		}
		buf = append(buf, 0x1e)
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}

func appendValue(buf []byte, v any) []byte {
	switch x := v.(type) {
	case nil:
		return append(buf, 0x00)
	case string:
		return append(buf, x...)
	case int64:
		return strconv.AppendInt(buf, x, 10)
	case float64:
		return strconv.AppendFloat(buf, x, 'g', -1, 64)
	case time.Time:
		return x.UTC().AppendFormat(buf, time.RFC3339Nano)
	case bool:
		return strconv.AppendBool(buf, x)
	}
	return append(buf, '?')
}
