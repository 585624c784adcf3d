package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent chronicle configuration stored as
// config.toml in the .chronicle/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Storage StorageConfig `toml:"storage"`
	API     APIConfig     `toml:"api"`
	Client  ClientConfig  `toml:"client"`
	Index   IndexConfig   `toml:"index"`
	Signing SigningConfig `toml:"signing"`
	Events  EventsConfig  `toml:"events"`
}

// StorageConfig holds ledger storage settings.
type StorageConfig struct {
	// Backend selects the ledger backend: "memory", "sqlite", or "postgres".
	Backend string `toml:"backend,omitempty"`

	// SQLitePath is the path to the SQLite ledger database.
	SQLitePath string `toml:"sqlite_path,omitempty"`

	// PostgresURL is the connection string for the postgres backend.
	PostgresURL string `toml:"postgres_url,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// chronicle server (e.g. chronicle predict, chronicle stats).
// Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// IndexConfig holds similarity index construction settings.
type IndexConfig struct {
	M              uint `toml:"m,omitempty"`
	EfConstruction uint `toml:"ef_construction,omitempty"`
	EfSearch       uint `toml:"ef_search,omitempty"`
}

// SigningConfig holds record signing settings. The key pair itself lives in
// .chronicle/key.json, not in the config file.
type SigningConfig struct {
	Enabled bool `toml:"enabled,omitempty"`
}

// EventsConfig holds event stream settings for append notifications.
type EventsConfig struct {
	Enabled bool   `toml:"enabled,omitempty"`
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.backend": {
		get: func(c *Config) string { return c.Storage.Backend },
		set: func(c *Config, v string) error { c.Storage.Backend = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_url": {
		get: func(c *Config) string { return c.Storage.PostgresURL },
		set: func(c *Config, v string) error { c.Storage.PostgresURL = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"index.m": {
		get: func(c *Config) string { return formatUint(c.Index.M) },
		set: func(c *Config, v string) error {
			n, err := parseUint("index.m", v)
			if err != nil {
				return err
			}
			c.Index.M = n
			return nil
		},
	},
	"index.ef_construction": {
		get: func(c *Config) string { return formatUint(c.Index.EfConstruction) },
		set: func(c *Config, v string) error {
			n, err := parseUint("index.ef_construction", v)
			if err != nil {
				return err
			}
			c.Index.EfConstruction = n
			return nil
		},
	},
	"index.ef_search": {
		get: func(c *Config) string { return formatUint(c.Index.EfSearch) },
		set: func(c *Config, v string) error {
			n, err := parseUint("index.ef_search", v)
			if err != nil {
				return err
			}
			c.Index.EfSearch = n
			return nil
		},
	},
	"signing.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Signing.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for signing.enabled: %w", err)
			}
			c.Signing.Enabled = b
			return nil
		},
	},
	"events.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Events.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for events.enabled: %w", err)
			}
			c.Events.Enabled = b
			return nil
		},
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func parseUint(key, v string) (uint, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return uint(n), nil
}
