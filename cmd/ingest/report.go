package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"ingest/internal/pipeline"
)

const nullValue = "NULL"

// writeVerification prints the row count of the relation and its sample as a
// table.
func writeVerification(w io.Writer, v pipeline.Verification) error {
	if _, err := fmt.Fprintf(w, "Total rows in %s: %s\n", v.Relation, humanize.Comma(v.Rows)); err != nil {
		return err
	}
	if len(v.Sample.Rows) == 0 {
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	// Don't uppercase the header values.
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(v.Sample.Columns))
	for i, c := range v.Sample.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, r := range v.Sample.Rows {
		row := make(table.Row, len(r))
		for i, val := range r {
			row[i] = cell(val)
		}
		t.AppendRow(row)
	}
	t.Render()
	return nil
}

func cell(v any) any {
	switch x := v.(type) {
	case nil:
		return nullValue
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case []byte:
		return string(x)
	}
	return v
}
