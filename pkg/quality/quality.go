// Package quality scores records along five advisory dimensions.
//
// Scoring is a pure read over a record and a ledger snapshot. It never
// fails: malformed or sparse records degrade to low scores instead of
// errors, since quality is advisory rather than authoritative.
package quality

import (
	"fmt"
	"math"

	"github.com/papercomputeco/chronicle/pkg/record"
)

// Score holds the five dimensions plus their weighted overall, each in [0, 1].
type Score struct {
	Completeness float64 `json:"completeness"`
	Provenance   float64 `json:"provenance"`
	Impact       float64 `json:"impact"`
	Uniqueness   float64 `json:"uniqueness"`
	Coherence    float64 `json:"coherence"`
	Overall      float64 `json:"overall"`
}

// Weights controls how the five dimensions combine into the overall score.
// They must sum to 1.
type Weights struct {
	Completeness float64
	Provenance   float64
	Impact       float64
	Uniqueness   float64
	Coherence    float64
}

// DefaultWeights weighs impact highest, then provenance, then the rest
// equally.
func DefaultWeights() Weights {
	return Weights{
		Impact:       0.30,
		Provenance:   0.20,
		Completeness: 1.0 / 6,
		Uniqueness:   1.0 / 6,
		Coherence:    1.0 / 6,
	}
}

func (w Weights) sum() float64 {
	return w.Completeness + w.Provenance + w.Impact + w.Uniqueness + w.Coherence
}

const (
	// requiredFieldWeight is the completeness share of each required field
	// group: entity_type, this, trace_id, did, when.started_at.
	requiredFieldWeight = 0.16

	// optionalFieldBonus is the smaller share for input, output, and status.
	optionalFieldBonus = 0.2 / 3

	// baselineImpact covers every (entity_type, result) pair without an
	// explicit table entry.
	baselineImpact = 0.4

	// coherencePenalty is subtracted per violated coherence check.
	coherencePenalty = 0.5
)

// Scorer computes quality scores. The impact table and overall weights are
// policy, not protocol, so both are injectable.
type Scorer struct {
	weights Weights

	// impact maps "entity_type/result" (falling back to "entity_type/state"
	// and bare "entity_type") to a score.
	impact map[string]float64
}

// DefaultImpactTable rewards decisive outcomes: a won battle and a finished
// evolution score highest, a lost battle lowest.
func DefaultImpactTable() map[string]float64 {
	return map[string]float64{
		"battle/ok":    1.0,
		"battle/not":   0.2,
		"battle/error": 0.2,
		"evolution":    0.95,
	}
}

// NewScorer builds a scorer with the supplied weights and impact table.
// A nil table selects DefaultImpactTable.
func NewScorer(weights Weights, impact map[string]float64) (*Scorer, error) {
	if math.Abs(weights.sum()-1) > 1e-9 {
		return nil, fmt.Errorf("quality weights must sum to 1, got %v", weights.sum())
	}
	if impact == nil {
		impact = DefaultImpactTable()
	}
	return &Scorer{weights: weights, impact: impact}, nil
}

// NewDefaultScorer builds a scorer with default weights and impact table.
func NewDefaultScorer() *Scorer {
	s, err := NewScorer(DefaultWeights(), nil)
	if err != nil {
		panic(err)
	}
	return s
}

// Score rates one record against a ledger snapshot. The snapshot is
// expected to contain the record itself; its own copy does not count as a
// duplicate.
func (s *Scorer) Score(rec *record.Record, snapshot []*record.Record) Score {
	if rec == nil {
		return Score{}
	}

	out := Score{
		Completeness: completeness(rec),
		Provenance:   provenance(rec),
		Impact:       s.impactFor(rec),
		Uniqueness:   uniqueness(rec, snapshot),
		Coherence:    coherence(rec, snapshot),
	}
	out.Overall = clamp(out.Completeness*s.weights.Completeness +
		out.Provenance*s.weights.Provenance +
		out.Impact*s.weights.Impact +
		out.Uniqueness*s.weights.Uniqueness +
		out.Coherence*s.weights.Coherence)
	return out
}

func completeness(rec *record.Record) float64 {
	var total float64

	if rec.EntityType != "" {
		total += requiredFieldWeight
	}
	if rec.This != "" {
		total += requiredFieldWeight
	}
	if rec.TraceID != "" {
		total += requiredFieldWeight
	}
	if rec.Did.Actor != "" && rec.Did.Action != "" {
		total += requiredFieldWeight
	}
	if !rec.When.StartedAt.IsZero() {
		total += requiredFieldWeight
	}

	if len(rec.Input) > 0 {
		total += optionalFieldBonus
	}
	if len(rec.Output) > 0 {
		total += optionalFieldBonus
	}
	if rec.Status.State != "" {
		total += optionalFieldBonus
	}

	return clamp(total)
}

// provenance awards half for a content hash and half for a well-formed
// signature. Cryptographic validity is checked elsewhere, not here.
func provenance(rec *record.Record) float64 {
	var total float64
	if rec.Hash != "" {
		total += 0.5
	}
	if sig := rec.Signature; sig != nil &&
		sig.Algorithm != "" && sig.PublicKey != "" && sig.Bytes != "" {
		total += 0.5
	}
	return total
}

func (s *Scorer) impactFor(rec *record.Record) float64 {
	if v, ok := s.impact[rec.EntityType+"/"+string(rec.Status.Result)]; ok {
		return v
	}
	if v, ok := s.impact[rec.EntityType+"/"+string(rec.Status.State)]; ok {
		return v
	}
	if v, ok := s.impact[rec.EntityType]; ok {
		return v
	}
	return baselineImpact
}

func uniqueness(rec *record.Record, snapshot []*record.Record) float64 {
	if rec.Hash == "" {
		return 1.0
	}

	matches := 0
	for _, other := range snapshot {
		if other != nil && other.Hash == rec.Hash {
			matches++
		}
	}

	others := matches
	if matches > 0 {
		others = matches - 1
	}

	switch {
	case others == 0:
		return 1.0
	case others == 1:
		return 0.8
	default:
		return 0.2
	}
}

// coherence checks the record's causal claims against the snapshot: a prev
// hash must resolve, and records within the trace must not move backwards
// in time.
func coherence(rec *record.Record, snapshot []*record.Record) float64 {
	total := 1.0

	if rec.Prev != "" {
		found := false
		for _, other := range snapshot {
			if other != nil && other.Hash == rec.Prev {
				found = true
				break
			}
		}
		if !found {
			total -= coherencePenalty
		}
	}

	if rec.TraceID != "" && !traceOrdered(rec.TraceID, snapshot) {
		total -= coherencePenalty
	}

	return clamp(total)
}

// traceOrdered reports whether started_at never decreases across the
// trace's records in insertion order. Equal timestamps are tolerated.
func traceOrdered(traceID string, snapshot []*record.Record) bool {
	var last *record.Record
	for _, other := range snapshot {
		if other == nil || other.TraceID != traceID {
			continue
		}
		if last != nil && other.When.StartedAt.Before(last.When.StartedAt) {
			return false
		}
		last = other
	}
	return true
}

func clamp(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
