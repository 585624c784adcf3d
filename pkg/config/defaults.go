package config

const (
	defaultStorageBackend = "sqlite"
	defaultAPIListen      = ":8081"

	defaultClientAPITarget = "http://localhost:8081"

	defaultIndexM              = 16
	defaultIndexEfConstruction = 200
	defaultIndexEfSearch       = 50

	defaultEventsTopic = "chronicle.records"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Backend: defaultStorageBackend,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Index: IndexConfig{
			M:              defaultIndexM,
			EfConstruction: defaultIndexEfConstruction,
			EfSearch:       defaultIndexEfSearch,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}
