package api

import (
	"bytes"
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chronicle/pkg/ledger"
	"github.com/papercomputeco/chronicle/pkg/quality"
	"github.com/papercomputeco/chronicle/pkg/record"
	"github.com/papercomputeco/chronicle/pkg/trajectory"
	"github.com/papercomputeco/chronicle/pkg/worker"
)

// AppendResponse is returned by POST /records.
type AppendResponse struct {
	// ID is the ledger-assigned identifier.
	ID int64 `json:"id"`

	// Record is the stored record with hash (and signature) populated.
	Record *record.Record `json:"record"`
}

// VerifyResponse is returned by POST /records/:hash/verify.
type VerifyResponse struct {
	Hash  string `json:"hash"`
	Valid bool   `json:"valid"`
}

// QualityResponse is returned by GET /records/:hash/quality.
type QualityResponse struct {
	Hash    string        `json:"hash"`
	Quality quality.Score `json:"quality"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Text string `json:"text"`
	K    int    `json:"k,omitempty"`
}

// SearchResult is one entry of a POST /search response.
type SearchResult struct {
	Hash       string  `json:"hash"`
	TraceID    string  `json:"trace_id"`
	This       string  `json:"this"`
	Result     string  `json:"result,omitempty"`
	Similarity float64 `json:"similarity"`
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Context trajectory.Context `json:"context"`
	Text    string             `json:"text,omitempty"`
	K       int                `json:"k,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleAppendRecord validates, optionally signs, and appends one record.
func (s *Server) handleAppendRecord(c *fiber.Ctx) error {
	rec := &record.Record{}
	if err := c.BodyParser(rec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed record body"})
	}

	if s.signingKey != nil && rec.Signature == nil {
		hash, sig, err := record.Sign(rec, s.signingKey)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		rec.Hash = hash
		rec.Signature = sig
	}

	id, err := s.led.Append(c.Context(), rec)
	if err != nil {
		switch {
		case errors.As(err, &ledger.ValidationError{}), errors.As(err, &record.IntegrityError{}):
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		case errors.As(err, &ledger.DuplicateError{}):
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
		default:
			s.logger.Error("append failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to append record"})
		}
	}

	if s.pool != nil {
		s.pool.Enqueue(worker.Job{ID: id, Record: rec})
	}

	return c.Status(fiber.StatusCreated).JSON(AppendResponse{ID: id, Record: rec})
}

// handleScanRecords returns one page of records in insertion order.
func (s *Server) handleScanRecords(c *fiber.Ctx) error {
	opts := ledger.ScanOptions{
		Cursor:        c.Query("cursor"),
		StatusFilter:  record.State(c.Query("status")),
		TraceIDFilter: c.Query("trace_id"),
	}

	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid limit"})
		}
		opts.Limit = n
	}

	page, err := s.led.Scan(c.Context(), opts)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(page)
}

// handleQueryRecords returns all records matching the supplied filters.
func (s *Server) handleQueryRecords(c *fiber.Ctx) error {
	filters := ledger.Filters{
		TraceID:    c.Query("trace_id"),
		EntityType: c.Query("entity_type"),
		OwnerID:    c.Query("owner_id"),
		TenantID:   c.Query("tenant_id"),
	}

	records, err := s.led.Query(c.Context(), filters)
	if err != nil {
		s.logger.Error("query failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to query records"})
	}

	return c.JSON(map[string]any{
		"count":   len(records),
		"records": records,
	})
}

// handleGetRecord returns a single record by its hash.
func (s *Server) handleGetRecord(c *fiber.Ctx) error {
	hash := c.Params("hash")
	if hash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "hash parameter required"})
	}

	rec, err := s.findByHash(c.Context(), hash)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "record not found"})
	}

	return c.JSON(rec)
}

// handleVerifyRecord checks the integrity and signature of a stored record.
func (s *Server) handleVerifyRecord(c *fiber.Ctx) error {
	hash := c.Params("hash")
	if hash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "hash parameter required"})
	}

	rec, err := s.findByHash(c.Context(), hash)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "record not found"})
	}

	return c.JSON(VerifyResponse{
		Hash:  hash,
		Valid: record.Verify(rec, nil),
	})
}

// handleQualityScore rates a stored record against the current ledger
// contents. Scoring is advisory and never fails on sparse records.
func (s *Server) handleQualityScore(c *fiber.Ctx) error {
	hash := c.Params("hash")
	if hash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "hash parameter required"})
	}

	rec, err := s.findByHash(c.Context(), hash)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "record not found"})
	}

	snapshot, err := s.led.Query(c.Context(), ledger.Filters{})
	if err != nil {
		s.logger.Error("quality snapshot failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to score record"})
	}

	return c.JSON(QualityResponse{
		Hash:    hash,
		Quality: quality.NewDefaultScorer().Score(rec, snapshot),
	})
}

// handleStats returns full-scan aggregates over the ledger.
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.led.Stats(c.Context())
	if err != nil {
		s.logger.Error("stats failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to compute stats"})
	}

	return c.JSON(stats)
}

// handleSearch returns records semantically similar to the query text.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	p := s.currentPredictor()
	if p == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "similarity index not available"})
	}

	req := SearchRequest{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed search body"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}

	matches, err := p.Search(c.Context(), req.Text, req.K)
	if err != nil {
		s.logger.Error("search failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "search failed"})
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, SearchResult{
			Hash:       m.Record.Hash,
			TraceID:    m.Record.TraceID,
			This:       m.Record.This,
			Result:     string(m.Record.Status.Result),
			Similarity: m.Similarity,
		})
	}

	return c.JSON(map[string]any{
		"count":   len(results),
		"results": results,
	})
}

// handlePredict synthesizes a predicted outcome for a new action context.
func (s *Server) handlePredict(c *fiber.Ctx) error {
	p := s.currentPredictor()
	if p == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "similarity index not available"})
	}

	req := PredictRequest{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed predict body"})
	}

	outcome, err := p.Predict(c.Context(), req.Context, req.Text, req.K)
	if err != nil {
		s.logger.Error("predict failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "prediction failed"})
	}

	return c.JSON(outcome)
}

// handleExport streams the full ledger as newline-delimited canonical JSON.
func (s *Server) handleExport(c *fiber.Ctx) error {
	var buf bytes.Buffer
	n, err := ledger.Export(c.Context(), s.led, &buf)
	if err != nil {
		s.logger.Error("export failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "export failed"})
	}

	s.logger.Debug("exported records", "count", n)
	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	return c.Send(buf.Bytes())
}

// handleImport appends a newline-delimited JSON stream through the normal
// validation path, then rebuilds the similarity index.
func (s *Server) handleImport(c *fiber.Ctx) error {
	summary, err := ledger.Import(c.Context(), s.led, bytes.NewReader(c.Body()))
	if err != nil {
		s.logger.Error("import failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "import failed"})
	}

	if s.currentPredictor() != nil {
		if err := s.Reindex(c.Context()); err != nil {
			s.logger.Warn("reindex after import failed", "error", err)
		}
	}

	return c.JSON(summary)
}

// findByHash walks the ledger in insertion order looking for a record hash.
func (s *Server) findByHash(ctx context.Context, hash string) (*record.Record, error) {
	cursor := ""
	for {
		page, err := s.led.Scan(ctx, ledger.ScanOptions{Limit: 200, Cursor: cursor})
		if err != nil {
			return nil, err
		}

		for _, rec := range page.Records {
			if rec.Hash == hash {
				return rec, nil
			}
		}

		if page.NextCursor == "" {
			return nil, ledger.NotFoundError{Hash: hash}
		}
		cursor = page.NextCursor
	}
}
