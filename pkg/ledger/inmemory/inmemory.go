// Package inmemory provides the volatile in-process ledger backend.
package inmemory

import (
	"context"
	"sync"

	"github.com/papercomputeco/chronicle/pkg/ledger"
	"github.com/papercomputeco/chronicle/pkg/record"
)

// Ledger implements ledger.Ledger using an insertion-ordered slice guarded
// by a read-write mutex. The write lock serializes the duplicate-check-then-
// write sequence so two concurrent appends can never both pass the check.
type Ledger struct {
	mu sync.RWMutex

	// records in insertion order; position+1 is the assigned identifier.
	records []*record.Record

	// seen tracks (trace_id, hash) pairs for duplicate detection.
	seen map[traceHash]struct{}
}

type traceHash struct {
	traceID string
	hash    string
}

// New creates an empty in-memory ledger.
func New() *Ledger {
	return &Ledger{
		seen: make(map[traceHash]struct{}),
	}
}

// Append validates and stores a record, returning its assigned identifier.
func (l *Ledger) Append(_ context.Context, rec *record.Record) (int64, error) {
	if err := ledger.Prepare(rec); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := traceHash{traceID: rec.TraceID, hash: rec.Hash}
	if _, ok := l.seen[key]; ok {
		return 0, ledger.DuplicateError{TraceID: rec.TraceID, Hash: rec.Hash}
	}

	l.seen[key] = struct{}{}
	l.records = append(l.records, rec)
	return int64(len(l.records)), nil
}

// Scan returns records in insertion order starting after the cursor.
func (l *Ledger) Scan(_ context.Context, opts ledger.ScanOptions) (*ledger.Page, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = ledger.DefaultScanLimit
	}

	filterHash := ledger.ScanFilterHash(opts)

	var after int64
	if opts.Cursor != "" {
		c, err := ledger.DecodeCursor(opts.Cursor, filterHash)
		if err != nil {
			return nil, err
		}
		after = c.Seq
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	page := &ledger.Page{}
	var lastSeq int64

	for i := int(after); i < len(l.records); i++ {
		rec := l.records[i]
		if opts.StatusFilter != "" && rec.Status.State != opts.StatusFilter {
			continue
		}
		if opts.TraceIDFilter != "" && rec.TraceID != opts.TraceIDFilter {
			continue
		}

		if len(page.Records) == limit {
			// One more match beyond the page means a next cursor exists.
			next, err := ledger.EncodeCursor(ledger.Cursor{Seq: lastSeq, FilterHash: filterHash})
			if err != nil {
				return nil, err
			}
			page.NextCursor = next
			return page, nil
		}

		page.Records = append(page.Records, rec)
		lastSeq = int64(i) + 1
	}

	return page, nil
}

// Query returns all records matching every supplied filter, in insertion order.
func (l *Ledger) Query(_ context.Context, filters ledger.Filters) ([]*record.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*record.Record
	for _, rec := range l.records {
		if filters.Matches(rec) {
			result = append(result, rec)
		}
	}
	return result, nil
}

// Stats returns full-scan aggregates.
func (l *Ledger) Stats(_ context.Context) (*ledger.Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := &ledger.Stats{
		Total:        len(l.records),
		ByEntityType: make(map[string]int),
		ByStatus:     make(map[string]int),
	}
	for _, rec := range l.records {
		stats.ByEntityType[rec.EntityType]++
		stats.ByStatus[string(rec.Status.State)]++
	}
	return stats, nil
}

// Count returns the number of records held.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Clear removes all records. Test-only: no deletion path exists in the
// ledger contract.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	l.seen = make(map[traceHash]struct{})
}

// Close is a no-op for the in-memory backend.
func (l *Ledger) Close() error {
	return nil
}

var _ ledger.Ledger = (*Ledger)(nil)
