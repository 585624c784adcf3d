package api

import (
	"context"
	"crypto/ed25519"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chronicle/pkg/ledger"
	"github.com/papercomputeco/chronicle/pkg/trajectory"
	"github.com/papercomputeco/chronicle/pkg/vector/hnsw"
	"github.com/papercomputeco/chronicle/pkg/worker"
)

// Server is the API server over a chronicle ledger.
type Server struct {
	config Config
	led    ledger.Ledger
	logger *slog.Logger
	app    *fiber.App

	// signingKey, when set, signs records that arrive unsigned.
	signingKey ed25519.PrivateKey

	// pool, when set, runs post-append embedding and event publishing.
	pool *worker.Pool

	// indexCfg is used when rebuilding the predictor after an import.
	indexCfg hnsw.Config

	mu        sync.RWMutex
	predictor *trajectory.Predictor
}

// Option configures optional server components.
type Option func(*Server)

// WithSigningKey makes the server sign unsigned appends with the given key.
func WithSigningKey(priv ed25519.PrivateKey) Option {
	return func(s *Server) { s.signingKey = priv }
}

// WithWorkerPool attaches a post-append worker pool.
func WithWorkerPool(pool *worker.Pool) Option {
	return func(s *Server) { s.pool = pool }
}

// WithPredictor attaches a prebuilt predictor for /search and /predict.
func WithPredictor(p *trajectory.Predictor) Option {
	return func(s *Server) { s.predictor = p }
}

// WithIndexConfig sets the index tunables used for predictor rebuilds.
func WithIndexConfig(cfg hnsw.Config) Option {
	return func(s *Server) { s.indexCfg = cfg }
}

// NewServer creates a new API server. The ledger is injected to allow
// sharing with other components (e.g. a CLI import running in-process).
func NewServer(config Config, led ledger.Ledger, logger *slog.Logger, opts ...Option) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		led:      led,
		logger:   logger,
		app:      app,
		indexCfg: hnsw.DefaultConfig(),
	}

	for _, opt := range opts {
		opt(s)
	}

	app.Get("/ping", s.handlePing)
	app.Post("/records", s.handleAppendRecord)
	app.Get("/records", s.handleScanRecords)
	app.Get("/records/query", s.handleQueryRecords)
	app.Get("/records/:hash", s.handleGetRecord)
	app.Post("/records/:hash/verify", s.handleVerifyRecord)
	app.Get("/records/:hash/quality", s.handleQualityScore)
	app.Get("/stats", s.handleStats)
	app.Post("/search", s.handleSearch)
	app.Post("/predict", s.handlePredict)
	app.Get("/export", s.handleExport)
	app.Post("/import", s.handleImport)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Reindex rebuilds the predictor from the current ledger contents.
// Called after imports and by the serve command's file watcher.
func (s *Server) Reindex(ctx context.Context) error {
	p, err := trajectory.Build(ctx, s.led, s.indexCfg, s.logger)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.predictor = p
	s.mu.Unlock()

	s.logger.Info("rebuilt similarity index", "records", p.Len())
	return nil
}

// currentPredictor returns the predictor under a read lock, or nil when
// prediction is not wired.
func (s *Server) currentPredictor() *trajectory.Predictor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.predictor
}
