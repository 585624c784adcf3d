// Package worker provides an asynchronous worker pool for post-append
// processing of ledger records: generating embeddings via the provided
// embeddings.Embedder, storing them through a vector.Driver, and emitting
// record events through an eventstream.Publisher.
//
// The pool decouples this work from the append hot path so that callers see
// only the ledger's own latency.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/chronicle/pkg/embeddings"
	"github.com/papercomputeco/chronicle/pkg/eventstream"
	"github.com/papercomputeco/chronicle/pkg/record"
	"github.com/papercomputeco/chronicle/pkg/vector"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// ID is the ledger-assigned identifier of the appended record.
	ID int64

	// Record is the appended record, hash already computed.
	Record *record.Record
}

// Config is the configuration options for the worker pool.
type Config struct {
	// VectorDriver is the optional vector store driver for embeddings.
	VectorDriver vector.Driver

	// Embedder generates optional text embeddings.
	// A configured Embedder is required if VectorDriver is set.
	Embedder embeddings.Embedder

	// Publisher is the optional event stream for append notifications.
	Publisher eventstream.Publisher

	// Source identifies this instance in published events.
	Source eventstream.EventSource

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided slog logger.
	Logger *slog.Logger
}

// Pool processes post-append jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.VectorDriver != nil && c.Embedder == nil {
		return nil, fmt.Errorf("an Embedder is required when VectorDriver is set")
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"ledger_id", job.ID,
			"hash", job.Record.Hash,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"ledger_id", job.ID,
			"hash", job.Record.Hash,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the API server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob embeds and indexes the record, then publishes the append event.
// Errors are logged but not propagated: the record is already durable in the
// ledger, and this pipeline is advisory.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if p.config.VectorDriver != nil && p.config.Embedder != nil {
		p.storeEmbedding(ctx, job.Record)
	}

	if p.config.Publisher != nil {
		event := eventstream.NewRecordAppended(p.config.Source, job.ID, job.Record)
		if err := p.config.Publisher.PublishRecord(ctx, event); err != nil {
			p.logger.Warn("failed to publish record event",
				"hash", job.Record.Hash,
				"error", err,
			)
			return
		}

		p.logger.Debug("published record event",
			"event_id", event.EventID,
			"hash", job.Record.Hash,
		)
	}
}

// storeEmbedding generates and stores the embedding for one record.
func (p *Pool) storeEmbedding(ctx context.Context, rec *record.Record) {
	text := rec.IndexText()
	if text == "" {
		p.logger.Debug("skipping embedding for record with no text content",
			"hash", rec.Hash,
		)
		return
	}

	embedding, err := p.config.Embedder.Embed(ctx, text)
	if err != nil {
		p.logger.Warn("failed to generate embedding",
			"hash", rec.Hash,
			"error", err,
		)
		return
	}

	doc := vector.Document{
		ID:        rec.Hash,
		TraceID:   rec.TraceID,
		Embedding: embedding,
	}

	if err := p.config.VectorDriver.Add(ctx, []vector.Document{doc}); err != nil {
		p.logger.Warn("failed to store embedding",
			"hash", rec.Hash,
			"error", err,
		)
		return
	}

	p.logger.Debug("stored embedding",
		"hash", rec.Hash,
		"embedding_dim", len(embedding),
	)
}
