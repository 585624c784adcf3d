package trajectory_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chronicle/pkg/record"
	"github.com/papercomputeco/chronicle/pkg/trajectory"
)

func match(hash string, result record.Result, similarity float64) trajectory.Match {
	return trajectory.Match{
		Record:     contextRecord(hash, result, "arena"),
		Similarity: similarity,
	}
}

var _ = Describe("SynthesizeMajority", func() {
	It("yields doubt for an empty candidate set", func() {
		outcome := trajectory.SynthesizeMajority(nil)
		Expect(outcome.Result).To(Equal(record.ResultDoubt))
		Expect(outcome.Confidence).To(BeZero())
		Expect(outcome.Reasoning).NotTo(BeEmpty())
	})

	It("picks the result with the heaviest weighted vote", func() {
		matches := []trajectory.Match{
			match("h1", record.ResultOK, 0.9),
			match("h2", record.ResultOK, 0.8),
			match("h3", record.ResultNot, 0.4),
		}

		outcome := trajectory.SynthesizeMajority(matches)
		Expect(outcome.Result).To(Equal(record.ResultOK))
		Expect(outcome.Confidence).To(BeNumerically("~", 1.7/2.1, 1e-9))
		Expect(outcome.MatchedIDs).To(Equal([]string{"h1", "h2", "h3"}))
	})

	It("lets one strong vote outweigh several weak ones", func() {
		matches := []trajectory.Match{
			match("h1", record.ResultError, 0.95),
			match("h2", record.ResultOK, 0.3),
			match("h3", record.ResultOK, 0.3),
		}

		Expect(trajectory.SynthesizeMajority(matches).Result).To(Equal(record.ResultError))
	})

	It("treats a missing result as doubt", func() {
		matches := []trajectory.Match{match("h1", "", 0.8)}
		Expect(trajectory.SynthesizeMajority(matches).Result).To(Equal(record.ResultDoubt))
	})
})

var _ = Describe("Calibrate", func() {
	// unanimous builds n matches that fully agree at a fixed similarity.
	unanimous := func(n int, similarity float64) []trajectory.Match {
		matches := make([]trajectory.Match, 0, n)
		for i := range n {
			matches = append(matches, match(string(rune('a'+i)), record.ResultOK, similarity))
		}
		return matches
	}

	It("never exceeds 1", func() {
		matches := unanimous(20, 1.0)
		outcome := trajectory.SynthesizeMajority(matches)
		Expect(trajectory.Calibrate(outcome, matches)).To(BeNumerically("<=", 1.0))
	})

	It("strictly increases with candidate count up to ten", func() {
		prev := -1.0
		for n := 0; n <= 10; n++ {
			matches := unanimous(n, 0.9)
			outcome := trajectory.SynthesizeMajority(matches)
			confidence := trajectory.Calibrate(outcome, matches)
			Expect(confidence).To(BeNumerically(">", prev),
				"confidence must grow at n=%d", n)
			prev = confidence
		}
	})

	It("penalizes fewer than three candidates", func() {
		two := unanimous(2, 0.9)
		three := unanimous(3, 0.9)

		confTwo := trajectory.Calibrate(trajectory.SynthesizeMajority(two), two)
		confThree := trajectory.Calibrate(trajectory.SynthesizeMajority(three), three)
		// The step from 2 to 3 removes the 0.7 penalty, so the jump is
		// larger than the count ramp alone explains.
		Expect(confThree).To(BeNumerically(">", confTwo/0.7*0.9))
	})

	It("rewards unanimous votes over split ones", func() {
		agreed := unanimous(6, 0.8)
		split := []trajectory.Match{
			match("a", record.ResultOK, 0.8),
			match("b", record.ResultOK, 0.8),
			match("c", record.ResultOK, 0.8),
			match("d", record.ResultNot, 0.8),
			match("e", record.ResultNot, 0.8),
			match("f", record.ResultError, 0.8),
		}

		confAgreed := trajectory.Calibrate(trajectory.SynthesizeMajority(agreed), agreed)
		confSplit := trajectory.Calibrate(trajectory.SynthesizeMajority(split), split)
		Expect(confAgreed).To(BeNumerically(">", confSplit))
	})

	It("scales with mean similarity", func() {
		strong := unanimous(5, 0.9)
		weak := unanimous(5, 0.5)

		confStrong := trajectory.Calibrate(trajectory.SynthesizeMajority(strong), strong)
		confWeak := trajectory.Calibrate(trajectory.SynthesizeMajority(weak), weak)
		Expect(confStrong).To(BeNumerically(">", confWeak))
	})
})
