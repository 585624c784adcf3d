package trajectory

import (
	"fmt"
	"math"

	"github.com/papercomputeco/chronicle/pkg/record"
)

// Outcome is the prediction produced from a set of matched trajectories.
// It is ephemeral; callers wanting to keep one append it as a new
// narrative record.
type Outcome struct {
	// Result is the predicted outcome.
	Result record.Result `json:"result"`

	// Confidence is the calibrated confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Reasoning is a human-readable summary of the vote.
	Reasoning string `json:"reasoning"`

	// MatchedIDs lists the hashes of the records that voted.
	MatchedIDs []string `json:"matched_ids,omitempty"`
}

// SynthesizeMajority turns ranked matches into an outcome by similarity-
// weighted vote over each candidate's stored result. An empty candidate
// set yields doubt, not an error.
func SynthesizeMajority(matches []Match) Outcome {
	if len(matches) == 0 {
		return Outcome{
			Result:     record.ResultDoubt,
			Confidence: 0,
			Reasoning:  "no similar trajectories found",
		}
	}

	votes := make(map[record.Result]float64)
	var total float64
	ids := make([]string, 0, len(matches))

	for _, m := range matches {
		result := m.Record.Status.Result
		if result == "" {
			result = record.ResultDoubt
		}
		votes[result] += m.Similarity
		total += m.Similarity
		ids = append(ids, m.Record.Hash)
	}

	if total == 0 {
		return Outcome{
			Result:     record.ResultDoubt,
			Confidence: 0,
			Reasoning:  "matched trajectories carried no weight",
			MatchedIDs: ids,
		}
	}

	var winner record.Result
	var winning float64
	for result, weight := range votes {
		if weight > winning || (weight == winning && result < winner) {
			winner, winning = result, weight
		}
	}

	return Outcome{
		Result:     winner,
		Confidence: winning / total,
		Reasoning: fmt.Sprintf("%d of %d weighted votes favor %q across %d similar trajectories",
			int(math.Round(100*winning/total)), 100, winner, len(matches)),
		MatchedIDs: ids,
	}
}

// Calibrate scales an outcome's raw confidence by how much evidence backed
// it: candidate volume, mean similarity, vote consistency, and a flat
// penalty when fewer than 3 candidates were available. The result is
// clamped to [0, 1].
func Calibrate(outcome Outcome, matches []Match) float64 {
	confidence := outcome.Confidence

	confidence *= countFactor(len(matches))
	confidence *= meanSimilarity(matches)
	confidence *= consistency(matches)

	if len(matches) < 3 {
		confidence *= 0.7
	}

	return math.Min(1, math.Max(0, confidence))
}

// countFactor ramps from 0.5 with no candidates to 1.0 at ten or more.
func countFactor(n int) float64 {
	if n >= 10 {
		return 1.0
	}
	return 0.5 + 0.5*float64(n)/10
}

func meanSimilarity(matches []Match) float64 {
	if len(matches) == 0 {
		return 0
	}
	var sum float64
	for _, m := range matches {
		sum += m.Similarity
	}
	return sum / float64(len(matches))
}

// consistency derives agreement from the Shannon entropy of the vote
// distribution, normalized by the maximum entropy for the observed number
// of distinct results. Unanimous votes score 1.
func consistency(matches []Match) float64 {
	votes := make(map[record.Result]float64)
	var total float64
	for _, m := range matches {
		result := m.Record.Status.Result
		if result == "" {
			result = record.ResultDoubt
		}
		votes[result] += m.Similarity
		total += m.Similarity
	}

	if len(votes) <= 1 {
		return 1
	}
	if total == 0 {
		return 0
	}

	var entropy float64
	for _, weight := range votes {
		p := weight / total
		if p > 0 {
			entropy -= p * math.Log(p)
		}
	}

	return 1 - entropy/math.Log(float64(len(votes)))
}
