package trajectory

import (
	"sort"

	"github.com/papercomputeco/chronicle/pkg/record"
)

const (
	// contextBlend and vectorBlend split the final ranking similarity
	// between structured-context agreement and vector-space similarity.
	contextBlend = 0.6
	vectorBlend  = 0.4

	// matchThreshold discards candidates whose blended similarity is too
	// weak to inform a prediction.
	matchThreshold = 0.3
)

// Match is one ranked candidate with its similarity breakdown.
type Match struct {
	// Record is the historical record the query matched.
	Record *record.Record

	// Similarity is the blended ranking score.
	Similarity float64

	// ContextComponent is the structured-context agreement.
	ContextComponent float64

	// VectorComponent is the supplied vector-space similarity.
	VectorComponent float64
}

// MatchRecords ranks candidate records against a query context. Vector
// similarities are keyed by record hash; a nil map ranks on context alone,
// while a candidate merely missing from a supplied map scores 0 on the
// vector component. Candidates below the combined threshold are dropped
// and the rest are sorted descending by similarity.
func MatchRecords(query Context, candidates []*record.Record, vectorSims map[string]float64) []Match {
	matches := make([]Match, 0, len(candidates))

	for _, rec := range candidates {
		if rec == nil {
			continue
		}

		m := Match{
			Record:           rec,
			ContextComponent: Compare(query, ContextFromRecord(rec)),
		}

		if vectorSims == nil {
			m.Similarity = m.ContextComponent
		} else {
			m.VectorComponent = vectorSims[rec.Hash]
			m.Similarity = contextBlend*m.ContextComponent + vectorBlend*m.VectorComponent
		}

		if m.Similarity < matchThreshold {
			continue
		}
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches
}
