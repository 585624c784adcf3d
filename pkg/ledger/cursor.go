package ledger

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Cursor is the internal state of an opaque scan cursor: the sequence
// number to resume after, plus a hash of the active filters so a token
// minted under one filter set cannot silently resume under another.
// Backends share this encoding so cursors behave identically everywhere.
type Cursor struct {
	Seq        int64  `json:"seq"`
	FilterHash string `json:"filter_hash,omitempty"`
}

// EncodeCursor encodes cursor state into an opaque base64 token.
func EncodeCursor(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// DecodeCursor decodes an opaque token and validates it against the
// filter hash of the current scan options.
func DecodeCursor(token, filterHash string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty cursor token")
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}

	if c.FilterHash != filterHash {
		return Cursor{}, fmt.Errorf("scan filters changed since cursor was created")
	}

	return c, nil
}

// ScanFilterHash computes a short hash over the scan filters for cursor
// validation. Empty filters hash to the empty string.
func ScanFilterHash(opts ScanOptions) string {
	if opts.StatusFilter == "" && opts.TraceIDFilter == "" {
		return ""
	}
	h := sha256.Sum256([]byte(string(opts.StatusFilter) + "\x00" + opts.TraceIDFilter))
	return hex.EncodeToString(h[:8])
}
