package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/papercomputeco/chronicle/pkg/record"
)

// exportPageSize is the scan page size used while streaming an export.
const exportPageSize = 200

// Export serializes the full record set of a ledger to w as a
// newline-delimited sequence of canonical JSON records, insertion order
// preserved. Returns the number of records written.
func Export(ctx context.Context, l Ledger, w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	written := 0
	cursor := ""

	for {
		page, err := l.Scan(ctx, ScanOptions{Limit: exportPageSize, Cursor: cursor})
		if err != nil {
			return written, fmt.Errorf("scanning ledger for export: %w", err)
		}

		for _, rec := range page.Records {
			line, err := record.CanonicalFull(rec)
			if err != nil {
				return written, fmt.Errorf("serializing record %s: %w", rec.Hash, err)
			}
			if _, err := bw.Write(line); err != nil {
				return written, fmt.Errorf("writing export: %w", err)
			}
			if err := bw.WriteByte('\n'); err != nil {
				return written, fmt.Errorf("writing export: %w", err)
			}
			written++
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("flushing export: %w", err)
	}
	return written, nil
}

// ImportSummary reports the outcome of an Import.
type ImportSummary struct {
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// Import reconstructs ledger contents from a newline-delimited sequence of
// JSON records. Every line goes through the same validation and duplicate
// detection path as Append: duplicates and invalid records are counted and
// skipped rather than aborting the stream.
func Import(ctx context.Context, l Ledger, r io.Reader) (*ImportSummary, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	summary := &ImportSummary{}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec record.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			summary.Invalid++
			continue
		}

		_, err := l.Append(ctx, &rec)
		switch {
		case err == nil:
			summary.Imported++
		case errors.As(err, &DuplicateError{}):
			summary.Duplicates++
		case errors.As(err, &ValidationError{}) || errors.As(err, &record.IntegrityError{}):
			summary.Invalid++
		default:
			return summary, fmt.Errorf("importing record: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("reading import stream: %w", err)
	}
	return summary, nil
}
