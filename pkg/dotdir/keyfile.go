package dotdir

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	keyFile = "key.json"
)

// KeyState is the persisted signing key pair. The private key never leaves
// the .chronicle/ directory; records carry only the public key.
type KeyState struct {
	// Algorithm identifies the key type. Always "ed25519".
	Algorithm string `json:"algorithm"`

	// PrivateKey is the hex-encoded Ed25519 private key.
	PrivateKey string `json:"private_key"`

	// PublicKey is the hex-encoded Ed25519 public key.
	PublicKey string `json:"public_key"`

	// CreatedAt is when the key pair was generated.
	CreatedAt time.Time `json:"created_at"`
}

// Keys decodes the key pair from the persisted state.
func (s *KeyState) Keys() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	priv, err := hex.DecodeString(s.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding private key: %w", err)
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("invalid private key length %d", len(priv))
	}

	pub, err := hex.DecodeString(s.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("invalid public key length %d", len(pub))
	}

	return ed25519.PrivateKey(priv), ed25519.PublicKey(pub), nil
}

// NewKeyState encodes a key pair for persistence.
func NewKeyState(priv ed25519.PrivateKey, pub ed25519.PublicKey) *KeyState {
	return &KeyState{
		Algorithm:  "ed25519",
		PrivateKey: hex.EncodeToString(priv),
		PublicKey:  hex.EncodeToString(pub),
		CreatedAt:  time.Now().UTC(),
	}
}

// LoadKeyState loads the signing key from a target .chronicle/key.json.
// Returns nil, nil if no key exists (unsigned appends).
// If overrideDir is non-empty, it is used instead of the default ~/.chronicle/ location.
func (m *Manager) LoadKeyState(overrideDir string) (*KeyState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, keyFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading key state: %w", err)
	}

	state := &KeyState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing key state: %w", err)
	}

	return state, nil
}

// SaveKeyState persists the signing key to a target .chronicle/key.json.
// The file is written 0600 since it holds the private key.
func (m *Manager) SaveKeyState(state *KeyState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil key state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling key state: %w", err)
	}

	path := filepath.Join(dir, keyFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing key state: %w", err)
	}

	return nil
}

// ClearKeyState removes the signing key file. Subsequent appends are unsigned
// until a new key is generated. Returns nil if the file doesn't exist.
func (m *Manager) ClearKeyState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, keyFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing key state: %w", err)
	}

	return nil
}
