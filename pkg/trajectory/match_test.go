package trajectory_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chronicle/pkg/record"
	"github.com/papercomputeco/chronicle/pkg/trajectory"
)

func contextRecord(hash string, result record.Result, env string) *record.Record {
	return &record.Record{
		EntityType: "battle",
		TraceID:    "t1",
		This:       "a battle",
		Hash:       hash,
		Status:     record.Status{State: record.StateCompleted, Result: result},
		Payload: map[string]any{
			"context": map[string]any{"environment": env},
		},
	}
}

var _ = Describe("MatchRecords", func() {
	query := trajectory.Context{EntityType: "battle", Environment: "arena"}

	It("blends context and vector similarity 60/40", func() {
		rec := contextRecord("h1", record.ResultOK, "arena")
		sims := map[string]float64{"h1": 0.5}

		matches := trajectory.MatchRecords(query, []*record.Record{rec}, sims)
		Expect(matches).To(HaveLen(1))
		Expect(matches[0].ContextComponent).To(BeNumerically("~", 1.0, 1e-9))
		Expect(matches[0].VectorComponent).To(Equal(0.5))
		Expect(matches[0].Similarity).To(BeNumerically("~", 0.6*1.0+0.4*0.5, 1e-9))
	})

	It("ranks on context alone when no similarities are supplied", func() {
		rec := contextRecord("h1", record.ResultOK, "arena")

		matches := trajectory.MatchRecords(query, []*record.Record{rec}, nil)
		Expect(matches).To(HaveLen(1))
		Expect(matches[0].Similarity).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("discards candidates below the combined threshold", func() {
		stranger := contextRecord("h2", record.ResultNot, "swamp")
		stranger.EntityType = "training"
		sims := map[string]float64{"h2": 0.1}

		matches := trajectory.MatchRecords(query, []*record.Record{stranger}, sims)
		Expect(matches).To(BeEmpty())
	})

	It("sorts matches descending by blended similarity", func() {
		strong := contextRecord("h1", record.ResultOK, "arena")
		weak := contextRecord("h2", record.ResultOK, "gym")
		sims := map[string]float64{"h1": 0.9, "h2": 0.9}

		matches := trajectory.MatchRecords(query, []*record.Record{weak, strong}, sims)
		Expect(matches).To(HaveLen(2))
		Expect(matches[0].Record.Hash).To(Equal("h1"))
		Expect(matches[0].Similarity).To(BeNumerically(">=", matches[1].Similarity))
	})

	It("skips nil candidates", func() {
		matches := trajectory.MatchRecords(query, []*record.Record{nil}, nil)
		Expect(matches).To(BeEmpty())
	})
})
