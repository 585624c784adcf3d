// Package servecmder provides the serve command for running the chronicle
// API server with a configured ledger backend and similarity index.
package servecmder

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chronicle/api"
	"github.com/papercomputeco/chronicle/cmd/chronicle/sqlitepath"
	"github.com/papercomputeco/chronicle/pkg/config"
	"github.com/papercomputeco/chronicle/pkg/dotdir"
	"github.com/papercomputeco/chronicle/pkg/eventstream"
	"github.com/papercomputeco/chronicle/pkg/eventstream/kafka"
	"github.com/papercomputeco/chronicle/pkg/ledger"
	"github.com/papercomputeco/chronicle/pkg/ledger/inmemory"
	"github.com/papercomputeco/chronicle/pkg/ledger/postgres"
	"github.com/papercomputeco/chronicle/pkg/ledger/sqlite"
	"github.com/papercomputeco/chronicle/pkg/logger"
	"github.com/papercomputeco/chronicle/pkg/vector/hnsw"
	"github.com/papercomputeco/chronicle/pkg/worker"
)

// serveFlags is the flag registry for the serve command.
var serveFlags = config.FlagSet{
	config.FlagAPIListen:      {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for API server to listen on"},
	config.FlagBackend:        {Name: "backend", ViperKey: "storage.backend", Description: "Ledger backend (memory, sqlite, postgres)"},
	config.FlagSQLite:         {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite ledger database"},
	config.FlagPostgres:       {Name: "postgres", ViperKey: "storage.postgres_url", Description: "Postgres connection URL"},
	config.FlagIndexM:         {Name: "index-m", ViperKey: "index.m", Description: "Neighbors per index layer"},
	config.FlagEfConstruction: {Name: "ef-construction", ViperKey: "index.ef_construction", Description: "Index construction beam width"},
	config.FlagEfSearch:       {Name: "ef-search", ViperKey: "index.ef_search", Description: "Index search beam width"},
	config.FlagEventsBrokers:  {Name: "events-brokers", ViperKey: "events.brokers", Description: "Comma-separated Kafka brokers for append events"},
	config.FlagEventsTopic:    {Name: "events-topic", ViperKey: "events.topic", Description: "Kafka topic for append events"},
}

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagBackend,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagIndexM,
	config.FlagEfConstruction,
	config.FlagEfSearch,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

type serveCommander struct {
	listen         string
	backend        string
	sqlitePath     string
	postgresURL    string
	indexM         uint
	efConstruction uint
	efSearch       uint
	eventsBrokers  string
	eventsTopic    string

	configDir string
	debug     bool
	v         *viper.Viper
	logger    *slog.Logger
}

const serveLongDesc string = `Run the chronicle API server.

Appends, scans, queries, verification, similarity search, and outcome
prediction are all served over HTTP. The similarity index is built from
the ledger at startup and rebuilt whenever an external writer modifies
the SQLite ledger file.`

const serveShortDesc string = "Run the chronicle API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			cmder.v, err = config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(cmder.v, cmd, serveFlags, serveFlagKeys)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagBackend, &cmder.backend)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagPostgres, &cmder.postgresURL)
	config.AddUintFlag(cmd, serveFlags, config.FlagIndexM, &cmder.indexM)
	config.AddUintFlag(cmd, serveFlags, config.FlagEfConstruction, &cmder.efConstruction)
	config.AddUintFlag(cmd, serveFlags, config.FlagEfSearch, &cmder.efSearch)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsTopic, &cmder.eventsTopic)

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	ctx := context.Background()

	led, sqlitePath, err := c.newLedger(ctx)
	if err != nil {
		return err
	}
	defer led.Close()

	indexCfg := hnsw.Config{
		M:              int(c.v.GetUint("index.m")),
		EfConstruction: int(c.v.GetUint("index.ef_construction")),
		EfSearch:       int(c.v.GetUint("index.ef_search")),
	}

	opts := []api.Option{
		api.WithIndexConfig(indexCfg),
	}

	if key, err := c.loadSigningKey(); err != nil {
		return err
	} else if key != nil {
		c.logger.Info("signing enabled for unsigned appends")
		opts = append(opts, api.WithSigningKey(key))
	}

	pool, err := c.newWorkerPool()
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		opts = append(opts, api.WithWorkerPool(pool))
	}

	server := api.NewServer(api.Config{ListenAddr: c.v.GetString("api.listen")}, led, c.logger, opts...)

	if err := server.Reindex(ctx); err != nil {
		return fmt.Errorf("building similarity index: %w", err)
	}

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	if sqlitePath != "" {
		go func() {
			if err := watchLedgerFile(watchCtx, sqlitePath, server, c.logger); err != nil && watchCtx.Err() == nil {
				errChan <- fmt.Errorf("ledger watcher error: %w", err)
			}
		}()
	}

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// newLedger builds the configured ledger backend. The returned path is
// non-empty only for the sqlite backend, where it feeds the file watcher.
func (c *serveCommander) newLedger(ctx context.Context) (ledger.Ledger, string, error) {
	switch backend := c.v.GetString("storage.backend"); backend {
	case "memory":
		c.logger.Info("using in-memory ledger")
		return inmemory.New(), "", nil

	case "sqlite":
		path, err := sqlitepath.ResolveOrDefault(c.v.GetString("storage.sqlite_path"), c.configDir)
		if err != nil {
			return nil, "", err
		}

		led, err := sqlite.New(path)
		if err != nil {
			return nil, "", fmt.Errorf("opening sqlite ledger: %w", err)
		}
		c.logger.Info("using sqlite ledger", "path", path)
		return led, path, nil

	case "postgres":
		url := c.v.GetString("storage.postgres_url")
		if url == "" {
			return nil, "", fmt.Errorf("postgres backend requires storage.postgres_url")
		}

		led, err := postgres.New(ctx, url)
		if err != nil {
			return nil, "", fmt.Errorf("connecting to postgres ledger: %w", err)
		}
		c.logger.Info("using postgres ledger")
		return led, "", nil

	default:
		return nil, "", fmt.Errorf("unknown storage backend %q (available: memory, sqlite, postgres)", backend)
	}
}

// loadSigningKey loads the persisted signing key when signing is enabled.
func (c *serveCommander) loadSigningKey() (ed25519.PrivateKey, error) {
	if !c.v.GetBool("signing.enabled") {
		return nil, nil
	}

	state, err := dotdir.NewManager().LoadKeyState(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading signing key: %w", err)
	}
	if state == nil {
		return nil, fmt.Errorf("signing.enabled is set but no key exists; run 'chronicle keygen' first")
	}

	priv, _, err := state.Keys()
	if err != nil {
		return nil, fmt.Errorf("decoding signing key: %w", err)
	}
	return priv, nil
}

// newWorkerPool builds the post-append event pipeline when events are enabled.
func (c *serveCommander) newWorkerPool() (*worker.Pool, error) {
	if !c.v.GetBool("events.enabled") {
		return nil, nil
	}

	brokers := splitBrokers(c.v.GetString("events.brokers"))
	if len(brokers) == 0 {
		return nil, fmt.Errorf("events.enabled is set but events.brokers is empty")
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   c.v.GetString("events.topic"),
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	return worker.NewPool(&worker.Config{
		Publisher: publisher,
		Source: eventstream.EventSource{
			Service: "chronicle",
			Backend: c.v.GetString("storage.backend"),
		},
		Logger: c.logger,
	})
}

func splitBrokers(s string) []string {
	out := []string{}
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// reindexDebounce coalesces bursts of file events into one rebuild.
const reindexDebounce = 500 * time.Millisecond

// watchLedgerFile rebuilds the similarity index when an external writer
// (e.g. a CLI import) modifies the SQLite ledger file.
func watchLedgerFile(ctx context.Context, path string, server *api.Server, log *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating ledger watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: sqlite writes can replace the file inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching ledger dir: %w", err)
	}

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reindexDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			log.Debug("ledger file changed, rebuilding index", "path", path)
			if err := server.Reindex(ctx); err != nil {
				log.Warn("reindex failed", "error", err)
			}

		case err := <-watcher.Errors:
			return fmt.Errorf("ledger watcher error: %w", err)
		}
	}
}
