// Package sqlite provides the durable SQLite-backed ledger.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/chronicle/pkg/ledger"
	"github.com/papercomputeco/chronicle/pkg/record"
)

// Ledger implements ledger.Ledger on a single SQLite database. Records are
// keyed by an auto-assigned rowid with secondary indexes on entity_type,
// trace_id, and started_at so filtered queries avoid a full scan.
type Ledger struct {
	db *sql.DB

	// appendMu serializes the duplicate-check-then-write sequence.
	// The UNIQUE(trace_id, hash) constraint is the backstop; the mutex
	// keeps the error path deterministic under concurrent appends.
	appendMu sync.Mutex
}

// New opens (or creates) a SQLite-backed ledger at dbPath.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func New(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return l, nil
}

// migrate creates the records table and its secondary indexes.
func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hash TEXT NOT NULL,
		trace_id TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		owner_id TEXT NOT NULL DEFAULT '',
		tenant_id TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(trace_id, hash)
	);

	CREATE INDEX IF NOT EXISTS idx_records_entity_type ON records(entity_type);
	CREATE INDEX IF NOT EXISTS idx_records_trace_id ON records(trace_id);
	CREATE INDEX IF NOT EXISTS idx_records_started_at ON records(started_at);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Append validates and stores a record, returning its assigned identifier.
func (l *Ledger) Append(ctx context.Context, rec *record.Record) (int64, error) {
	if err := ledger.Prepare(rec); err != nil {
		return 0, err
	}

	body, err := record.CanonicalFull(rec)
	if err != nil {
		return 0, fmt.Errorf("serializing record body: %w", err)
	}

	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	var exists int
	err = l.db.QueryRowContext(ctx,
		`SELECT 1 FROM records WHERE trace_id = ? AND hash = ? LIMIT 1`,
		rec.TraceID, rec.Hash,
	).Scan(&exists)
	switch {
	case err == nil:
		return 0, ledger.DuplicateError{TraceID: rec.TraceID, Hash: rec.Hash}
	case err != sql.ErrNoRows:
		return 0, fmt.Errorf("checking for duplicate: %w", err)
	}

	result, err := l.db.ExecContext(ctx, `
		INSERT INTO records (hash, trace_id, entity_type, owner_id, tenant_id, state, started_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Hash,
		rec.TraceID,
		rec.EntityType,
		rec.Metadata.OwnerID,
		rec.Metadata.TenantID,
		string(rec.Status.State),
		rec.When.StartedAt.UTC().Format(time.RFC3339Nano),
		string(body),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading assigned id: %w", err)
	}
	return id, nil
}

// Scan returns records in insertion order starting after the cursor.
func (l *Ledger) Scan(ctx context.Context, opts ledger.ScanOptions) (*ledger.Page, error) {
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

	where := []string{"id > ?"}
	args := []any{after}
	if opts.StatusFilter != "" {
		where = append(where, "state = ?")
		args = append(args, string(opts.StatusFilter))
	}
	if opts.TraceIDFilter != "" {
		where = append(where, "trace_id = ?")
		args = append(args, opts.TraceIDFilter)
	}
	args = append(args, limit+1)

	query := fmt.Sprintf(
		`SELECT id, body FROM records WHERE %s ORDER BY id LIMIT ?`,
		strings.Join(where, " AND "),
	)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scanning records: %w", err)
	}
	defer rows.Close()

	page := &ledger.Page{}
	var lastID int64
	more := false

	for rows.Next() {
		var id int64
		var body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		// The extra row beyond the limit only signals that more exist.
		if len(page.Records) == limit {
			more = true
			break
		}

		rec, err := unmarshalBody(body)
		if err != nil {
			return nil, err
		}
		page.Records = append(page.Records, rec)
		lastID = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if more {
		next, err := ledger.EncodeCursor(ledger.Cursor{Seq: lastID, FilterHash: filterHash})
		if err != nil {
			return nil, err
		}
		page.NextCursor = next
	}

	return page, nil
}

// Query returns all records matching every supplied filter, insertion ordered.
func (l *Ledger) Query(ctx context.Context, filters ledger.Filters) ([]*record.Record, error) {
	where := []string{"1=1"}
	var args []any

	if filters.TraceID != "" {
		where = append(where, "trace_id = ?")
		args = append(args, filters.TraceID)
	}
	if filters.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, filters.EntityType)
	}
	if filters.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filters.OwnerID)
	}
	if filters.TenantID != "" {
		where = append(where, "tenant_id = ?")
		args = append(args, filters.TenantID)
	}

	query := fmt.Sprintf(
		`SELECT body FROM records WHERE %s ORDER BY id`,
		strings.Join(where, " AND "),
	)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []*record.Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rec, err := unmarshalBody(body)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return records, nil
}

// Stats returns full-scan aggregates.
func (l *Ledger) Stats(ctx context.Context) (*ledger.Stats, error) {
	stats := &ledger.Stats{
		ByEntityType: make(map[string]int),
		ByStatus:     make(map[string]int),
	}

	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records`,
	).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}

	if err := l.aggregate(ctx, `SELECT entity_type, COUNT(*) FROM records GROUP BY entity_type`, stats.ByEntityType); err != nil {
		return nil, err
	}
	if err := l.aggregate(ctx, `SELECT state, COUNT(*) FROM records GROUP BY state`, stats.ByStatus); err != nil {
		return nil, err
	}

	return stats, nil
}

// aggregate runs a two-column (key, count) query into dest.
func (l *Ledger) aggregate(ctx context.Context, query string, dest map[string]int) error {
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("aggregating records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scanning aggregate row: %w", err)
		}
		dest[key] = count
	}
	return rows.Err()
}

// unmarshalBody decodes a stored record body.
func unmarshalBody(body string) (*record.Record, error) {
	var rec record.Record
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling record body: %w", err)
	}
	return &rec, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

var _ ledger.Ledger = (*Ledger)(nil)
