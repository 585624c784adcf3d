// Package sqlitepath resolves the on-disk location of the chronicle SQLite
// ledger for commands that read or create it.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/chronicle/pkg/dotdir"
)

// DefaultFileName is the ledger database file created under .chronicle/.
const DefaultFileName = "chronicle.sqlite"

// Resolve returns the path to an existing chronicle SQLite ledger.
// Order: explicit override, CHRONICLE_SQLITE env, then well-known candidates.
func Resolve(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("CHRONICLE_SQLITE")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range candidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("could not find chronicle SQLite ledger; pass --sqlite")
}

// ResolveOrDefault resolves an existing ledger path, falling back to the
// default location inside the resolved .chronicle/ directory. Used by
// commands that may create the database.
func ResolveOrDefault(override, configDir string) (string, error) {
	if path, err := Resolve(override); err == nil {
		return path, nil
	}

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(target, DefaultFileName), nil
}

func candidates() []string {
	out := []string{
		"chronicle.db",
		DefaultFileName,
		filepath.Join(".chronicle", "chronicle.db"),
		filepath.Join(".chronicle", DefaultFileName),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		out = append([]string{
			filepath.Join(home, ".chronicle", "chronicle.db"),
			filepath.Join(home, ".chronicle", DefaultFileName),
		}, out...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		out = append([]string{
			filepath.Join(xdgHome, "chronicle", "chronicle.db"),
			filepath.Join(xdgHome, "chronicle", DefaultFileName),
		}, out...)
	}

	return out
}
