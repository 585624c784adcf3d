// Package record defines the Atomic record: the immutable, content-addressed,
// optionally signed unit of truth in the chronicle ledger.
package record

import (
	"time"
)

// State is the lifecycle state of a record's action.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Result is the judged outcome of a completed action.
type Result string

const (
	ResultOK    Result = "ok"
	ResultDoubt Result = "doubt"
	ResultNot   Result = "not"
	ResultError Result = "error"
)

// Record is a single immutable action record. Once Hash is computed the
// record must never be mutated; any change requires producing a new record.
type Record struct {
	// EntityType tags the kind of action (e.g. "battle", "training",
	// "evolution", "narrative").
	EntityType string `json:"entity_type"`

	// TraceID groups records belonging to one causal session.
	TraceID string `json:"trace_id"`

	// This is the free-text description/subject of the record.
	This string `json:"this"`

	// Prev optionally links to the hash of a causally preceding record.
	Prev string `json:"prev,omitempty"`

	// Hash is the content hash of the record, computed over every field
	// except Hash and Signature.
	Hash string `json:"hash,omitempty"`

	// Signature, when present, signs Hash (not the raw record).
	Signature *Signature `json:"signature,omitempty"`

	// Did captures who did what.
	Did Did `json:"did"`

	// Input, Output, and Payload hold free-form structured data specific
	// to the entity type.
	Input   map[string]any `json:"input,omitempty"`
	Output  map[string]any `json:"output,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`

	// When holds the action timestamps.
	When When `json:"when"`

	// Status holds the lifecycle state and outcome.
	Status Status `json:"status"`

	// Metadata holds ownership and bookkeeping fields.
	Metadata Metadata `json:"metadata"`
}

// Did identifies the actor and action behind a record.
type Did struct {
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// When holds the start and optional completion timestamps of an action.
type When struct {
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Status holds the lifecycle state, outcome, and optional message.
type Status struct {
	State   State  `json:"state"`
	Result  Result `json:"result,omitempty"`
	Message string `json:"message,omitempty"`
}

// Metadata holds ownership and bookkeeping fields that travel with a record.
type Metadata struct {
	OwnerID   string    `json:"owner_id,omitempty"`
	TenantID  string    `json:"tenant_id,omitempty"`
	ParentID  string    `json:"parent_id,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Version   int       `json:"version,omitempty"`
}

// Signature is an asymmetric signature over a record's Hash.
type Signature struct {
	// Algorithm names the signing scheme. Only "ed25519" is produced.
	Algorithm string `json:"algorithm"`

	// PublicKey is the hex-encoded public key of the signer.
	PublicKey string `json:"public_key"`

	// Bytes is the hex-encoded signature over the record hash.
	Bytes string `json:"signature"`

	// SignedAt is when the signature was produced.
	SignedAt time.Time `json:"signed_at"`
}

// IndexText returns the textual context of a record used for embedding.
// It concatenates the fields that carry semantic content.
func (r *Record) IndexText() string {
	text := r.This
	if r.Did.Actor != "" {
		text += " " + r.Did.Actor
	}
	if r.Did.Action != "" {
		text += " " + r.Did.Action
	}
	if r.Did.Reason != "" {
		text += " " + r.Did.Reason
	}
	if r.Status.Message != "" {
		text += " " + r.Status.Message
	}
	return text
}

// Clone returns a shallow copy of the record. Maps and slices are shared;
// callers that mutate them must deep-copy first.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}
