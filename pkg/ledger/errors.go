package ledger

import "fmt"

// ValidationError indicates a record missing a required field.
type ValidationError struct {
	Field string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "invalid record"
	}
	return "invalid record: missing required field " + e.Field
}

// DuplicateError indicates an append whose (trace_id, hash) pair already
// exists in the ledger.
type DuplicateError struct {
	TraceID string
	Hash    string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("duplicate record in trace %s: %s", e.TraceID, e.Hash)
}

// NotFoundError indicates an unknown record hash.
type NotFoundError struct {
	Hash string
}

func (e NotFoundError) Error() string {
	if e.Hash == "" {
		return "record not found"
	}
	return "record not found: " + e.Hash
}
