package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chronicle/pkg/record"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRecordAppended is emitted after a record is appended to the
	// ledger.
	EventTypeRecordAppended = "chronicle.record.appended"
)

// RecordAppendedEvent is a transport-neutral event payload for an appended
// record.
type RecordAppendedEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	Source        EventSource   `json:"source"`
	LedgerID      int64         `json:"ledger_id"`
	Record        record.Record `json:"record"`
}

// EventSource identifies where the append originated.
type EventSource struct {
	Service string `json:"service"`
	Backend string `json:"backend,omitempty"`
}

// NewRecordAppended builds an event for a freshly appended record.
func NewRecordAppended(source EventSource, ledgerID int64, rec *record.Record) *RecordAppendedEvent {
	return &RecordAppendedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeRecordAppended,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		LedgerID:      ledgerID,
		Record:        *rec,
	}
}
