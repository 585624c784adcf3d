// Package ledger defines the append-only record ledger contract shared by
// the volatile in-memory backend and the durable SQL backends.
package ledger

import (
	"context"

	"github.com/papercomputeco/chronicle/pkg/record"
)

// DefaultScanLimit is the page size used when ScanOptions.Limit is zero.
const DefaultScanLimit = 10

// Ledger is the capability set every backend implements. Backends must be
// externally indistinguishable except for persistence across restarts.
type Ledger interface {
	// Append validates and stores a record, computing its hash if absent,
	// and returns the opaque monotonically assigned identifier. A record
	// missing entity_type, this, or trace_id fails with ValidationError;
	// a record whose (trace_id, hash) pair already exists fails with
	// DuplicateError. Appends against one instance are serialized.
	Append(ctx context.Context, rec *record.Record) (int64, error)

	// Scan returns records in insertion order starting after the cursor.
	// NextCursor is set iff more records exist beyond the page.
	Scan(ctx context.Context, opts ScanOptions) (*Page, error)

	// Query returns all records matching every supplied filter.
	Query(ctx context.Context, filters Filters) ([]*record.Record, error)

	// Stats returns full-scan aggregates over the ledger.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases any resources held by the backend.
	Close() error
}

// ScanOptions control a paginated scan.
type ScanOptions struct {
	// Limit caps the page size. Defaults to DefaultScanLimit.
	Limit int

	// Cursor resumes a previous scan. Empty starts from the beginning.
	Cursor string

	// StatusFilter restricts results to records in the given state.
	StatusFilter record.State

	// TraceIDFilter restricts results to one trace.
	TraceIDFilter string
}

// Page is one page of scan results.
type Page struct {
	Records []*record.Record `json:"records"`

	// NextCursor resumes the scan after the last record of this page.
	// Empty when the scan is exhausted.
	NextCursor string `json:"next_cursor,omitempty"`
}

// Filters select records by exact field match. Zero-value fields are
// ignored; supplied fields combine with AND semantics.
type Filters struct {
	TraceID    string `json:"trace_id,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	OwnerID    string `json:"owner_id,omitempty"`
	TenantID   string `json:"tenant_id,omitempty"`
}

// Stats are full-scan aggregates over a ledger.
type Stats struct {
	Total        int            `json:"total"`
	ByEntityType map[string]int `json:"by_entity_type"`
	ByStatus     map[string]int `json:"by_status"`
}

// Matches reports whether a record satisfies every supplied filter.
func (f Filters) Matches(r *record.Record) bool {
	if f.TraceID != "" && r.TraceID != f.TraceID {
		return false
	}
	if f.EntityType != "" && r.EntityType != f.EntityType {
		return false
	}
	if f.OwnerID != "" && r.Metadata.OwnerID != f.OwnerID {
		return false
	}
	if f.TenantID != "" && r.Metadata.TenantID != f.TenantID {
		return false
	}
	return true
}

// Prepare validates a record for append and ensures its content hash is set.
// A record that arrives with a hash is checked against the recomputed hash so
// a tampered record can never enter the ledger.
//
// Both backends funnel every append, including imports, through Prepare.
func Prepare(rec *record.Record) error {
	if rec == nil {
		return ValidationError{Field: "record"}
	}
	if rec.EntityType == "" {
		return ValidationError{Field: "entity_type"}
	}
	if rec.This == "" {
		return ValidationError{Field: "this"}
	}
	if rec.TraceID == "" {
		return ValidationError{Field: "trace_id"}
	}

	computed, err := record.ComputeHash(rec)
	if err != nil {
		return err
	}

	if rec.Hash == "" {
		rec.Hash = computed
		return nil
	}
	if rec.Hash != computed {
		return record.IntegrityError{Stored: rec.Hash, Computed: computed}
	}
	return nil
}
