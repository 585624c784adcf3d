package record

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
)

// domainTag is the domain-separation prefix mixed into every record hash so
// that chronicle hashes can never collide with an unrelated use of SHA-256
// over similar bytes.
const domainTag = "chronicle:record:v1\n"

// Canonical serializes a record into its canonical byte form: RFC 8785
// canonical JSON with the hash and signature fields stripped. Two records
// with identical content produce byte-identical output regardless of how
// their maps were populated.
//
// This, as of Go 1.25.x, requires "GOEXPERIMENT=jsonv2" for the json v2 and
// jsontext packages.
func Canonical(r *Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot canonicalize nil record")
	}

	// Hash and Signature are excluded from the hashable content.
	stripped := r.Clone()
	stripped.Hash = ""
	stripped.Signature = nil

	data, err := json.Marshal(stripped)
	if err != nil {
		return nil, fmt.Errorf("marshaling record for canonicalization: %w", err)
	}

	j := jsontext.Value(data)
	if err := j.Canonicalize(); err != nil {
		return nil, fmt.Errorf("canonicalizing record JSON: %w", err)
	}

	return j, nil
}

// CanonicalFull serializes the complete record, hash and signature included,
// as canonical JSON. Used by the ledger export path where the stored identity
// must survive the round trip.
func CanonicalFull(r *Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot canonicalize nil record")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}

	j := jsontext.Value(data)
	if err := j.Canonicalize(); err != nil {
		return nil, fmt.Errorf("canonicalizing record JSON: %w", err)
	}

	return j, nil
}

// ComputeHash calculates the content-addressed hash for a record: SHA-256
// over the domain tag plus the canonical bytes, hex-encoded. Deterministic;
// re-hashing the same content always yields the same digest.
func ComputeHash(r *Record) (string, error) {
	canonical, err := Canonical(r)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(domainTag))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IntegrityError indicates a record whose stored hash disagrees with the
// hash recomputed from its content.
type IntegrityError struct {
	Stored   string
	Computed string
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("record hash mismatch: stored %s, computed %s", e.Stored, e.Computed)
}
