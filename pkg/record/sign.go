package record

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// AlgorithmEd25519 is the only signature algorithm chronicle produces.
const AlgorithmEd25519 = "ed25519"

// GenerateKeyPair produces a fresh Ed25519 key pair with no relationship to
// any previous key.
func GenerateKeyPair() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating key pair: %w", err)
	}
	return priv, pub, nil
}

// Sign computes the record's content hash and, when a private key is
// supplied, signs the hash (not the raw record). A nil key is valid:
// signing is optional and the hash is returned unsigned.
func Sign(r *Record, priv ed25519.PrivateKey) (string, *Signature, error) {
	hash, err := ComputeHash(r)
	if err != nil {
		return "", nil, err
	}

	if priv == nil {
		return hash, nil, nil
	}

	if len(priv) != ed25519.PrivateKeySize {
		return "", nil, fmt.Errorf("invalid ed25519 private key length %d", len(priv))
	}

	sig := ed25519.Sign(priv, []byte(hash))
	pub := priv.Public().(ed25519.PublicKey)

	return hash, &Signature{
		Algorithm: AlgorithmEd25519,
		PublicKey: hex.EncodeToString(pub),
		Bytes:     hex.EncodeToString(sig),
		SignedAt:  time.Now().UTC(),
	}, nil
}

// Verify checks a record's integrity and signature. It recomputes the hash
// from the record's current content and rejects any disagreement with the
// stored hash, rejects unexpected algorithms, and cryptographically verifies
// the signature bytes against the hash using the caller-supplied public key
// or, when pub is nil, the key embedded in the signature.
//
// Verify is a predicate used in hot paths: it returns false for any
// malformed or mismatched input and never returns an error.
func Verify(r *Record, pub ed25519.PublicKey) bool {
	if r == nil || r.Hash == "" || r.Signature == nil {
		return false
	}

	computed, err := ComputeHash(r)
	if err != nil || computed != r.Hash {
		return false
	}

	if r.Signature.Algorithm != AlgorithmEd25519 {
		return false
	}

	key := pub
	if key == nil {
		decoded, err := hex.DecodeString(r.Signature.PublicKey)
		if err != nil {
			return false
		}
		key = ed25519.PublicKey(decoded)
	}
	if len(key) != ed25519.PublicKeySize {
		return false
	}

	sig, err := hex.DecodeString(r.Signature.Bytes)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(key, []byte(r.Hash), sig)
}
