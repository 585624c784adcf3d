package trajectory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/chronicle/pkg/embeddings/tfidf"
	"github.com/papercomputeco/chronicle/pkg/ledger"
	"github.com/papercomputeco/chronicle/pkg/record"
	"github.com/papercomputeco/chronicle/pkg/vector"
	"github.com/papercomputeco/chronicle/pkg/vector/hnsw"
)

// DefaultCandidates is how many nearest neighbors a prediction considers.
const DefaultCandidates = 10

// Predictor answers outcome queries over a ledger snapshot. It owns a
// corpus-relative embedder and a proximity index built from every record's
// index text; rebuild it whenever the ledger grows, since IDF weights are
// corpus-relative.
type Predictor struct {
	embedder *tfidf.Embedder
	index    *hnsw.Index
	byHash   map[string]*record.Record
	logger   *slog.Logger
}

// Build constructs a predictor from the full contents of a ledger.
func Build(ctx context.Context, led ledger.Ledger, cfg hnsw.Config, logger *slog.Logger) (*Predictor, error) {
	records, err := led.Query(ctx, ledger.Filters{})
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	return BuildFromRecords(ctx, records, cfg, logger)
}

// BuildFromRecords constructs a predictor over an explicit record set.
func BuildFromRecords(ctx context.Context, records []*record.Record, cfg hnsw.Config, logger *slog.Logger) (*Predictor, error) {
	docs := make([]string, 0, len(records))
	for _, rec := range records {
		docs = append(docs, rec.IndexText())
	}

	corpus := tfidf.NewCorpus(docs)
	embedder, err := tfidf.NewEmbedder(corpus)
	if err != nil {
		return nil, fmt.Errorf("building embedder: %w", err)
	}

	index, err := hnsw.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}

	byHash := make(map[string]*record.Record, len(records))
	for _, rec := range records {
		if rec.Hash == "" {
			continue
		}
		byHash[rec.Hash] = rec

		vec, err := embedder.Embed(ctx, rec.IndexText())
		if err != nil {
			return nil, fmt.Errorf("embedding %s: %w", rec.Hash, err)
		}
		if err := index.Add(ctx, []vector.Document{
			{ID: rec.Hash, TraceID: rec.TraceID, Embedding: vec},
		}); err != nil {
			return nil, fmt.Errorf("indexing %s: %w", rec.Hash, err)
		}
	}

	logger.Debug("predictor built",
		"records", len(byHash),
		"dimensions", corpus.Dimensions(),
	)

	return &Predictor{
		embedder: embedder,
		index:    index,
		byHash:   byHash,
		logger:   logger,
	}, nil
}

// Len returns the number of indexed records.
func (p *Predictor) Len() int {
	return p.index.Len()
}

// Search returns the records nearest to the query text with their vector
// similarities.
func (p *Predictor) Search(ctx context.Context, text string, k int) ([]Match, error) {
	if p.index.Len() == 0 {
		return nil, nil
	}

	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := p.index.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		rec, ok := p.byHash[r.ID]
		if !ok {
			continue
		}
		matches = append(matches, Match{
			Record:          rec,
			Similarity:      float64(r.Similarity),
			VectorComponent: float64(r.Similarity),
		})
	}
	return matches, nil
}

// Predict embeds the query text, gathers nearest trajectories, re-ranks
// them against the structured context, and synthesizes a calibrated
// outcome. Sparse ledgers degrade to low-confidence doubt rather than
// failing.
func (p *Predictor) Predict(ctx context.Context, query Context, text string, k int) (Outcome, error) {
	if k <= 0 {
		k = DefaultCandidates
	}

	if text == "" {
		text = queryText(query)
	}

	candidates, sims, err := p.nearest(ctx, text, k)
	if err != nil {
		return Outcome{}, err
	}

	matches := MatchRecords(query, candidates, sims)
	outcome := SynthesizeMajority(matches)
	outcome.Confidence = Calibrate(outcome, matches)

	p.logger.Debug("prediction synthesized",
		"result", outcome.Result,
		"confidence", outcome.Confidence,
		"candidates", len(candidates),
		"matched", len(matches),
	)

	return outcome, nil
}

func (p *Predictor) nearest(ctx context.Context, text string, k int) ([]*record.Record, map[string]float64, error) {
	if p.index.Len() == 0 {
		return nil, nil, nil
	}

	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := p.index.Search(vec, k)
	if err != nil {
		return nil, nil, fmt.Errorf("searching index: %w", err)
	}

	candidates := make([]*record.Record, 0, len(results))
	sims := make(map[string]float64, len(results))
	for _, r := range results {
		rec, ok := p.byHash[r.ID]
		if !ok {
			continue
		}
		candidates = append(candidates, rec)
		sims[rec.Hash] = float64(r.Similarity)
	}
	return candidates, sims, nil
}

// queryText flattens a structured context into embeddable text when the
// caller supplies no free-text query.
func queryText(query Context) string {
	text := query.Environment
	for _, part := range []string{
		query.EmotionalState, query.Stakes, query.EntityType, query.Intent,
	} {
		if part != "" {
			text += " " + part
		}
	}
	for _, action := range query.PreviousActions {
		text += " " + action
	}
	return text
}
