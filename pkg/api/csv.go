package api

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/queryhub/nl2sql/pkg/dbadapter"
)

// streamCSV writes iter's full result set to w as CSV, flushing every
// chunkSize rows so the client sees data incrementally instead of
// waiting for the whole export to buffer (spec.md §6.3, CSV_CHUNK_SIZE).
func streamCSV(w http.ResponseWriter, iter dbadapter.RowIterator, chunkSize int) {
	writer := csv.NewWriter(w)
	flusher, canFlush := w.(http.Flusher)

	ctx := context.Background()
	n := 0
	headerWritten := false
	for iter.Next(ctx) {
		if !headerWritten {
			_ = writer.Write(iter.Columns())
			headerWritten = true
		}
		row := iter.Row()
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprint(v)
		}
		if err := writer.Write(record); err != nil {
			return
		}
		n++
		if chunkSize > 0 && n%chunkSize == 0 {
			writer.Flush()
			if canFlush {
				flusher.Flush()
			}
		}
	}
	if !headerWritten {
		_ = writer.Write(iter.Columns())
	}
	writer.Flush()
	if canFlush {
		flusher.Flush()
	}
}
