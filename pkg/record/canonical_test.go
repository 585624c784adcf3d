package record_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chronicle/pkg/record"
)

// battleRecord builds a representative battle record for tests.
func battleRecord() *record.Record {
	return &record.Record{
		EntityType: "battle",
		TraceID:    "t1",
		This:       "c1 challenges c2 in the ember arena",
		Did: record.Did{
			Actor:  "c1",
			Action: "battle_vs_c2",
		},
		Input: map[string]any{
			"arena":    "ember",
			"opponent": "c2",
		},
		When: record.When{
			StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Status: record.Status{
			State:  record.StateCompleted,
			Result: record.ResultOK,
		},
		Metadata: record.Metadata{
			OwnerID:   "owner-1",
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC),
		},
	}
}

var _ = Describe("Canonical", func() {
	It("is independent of map insertion order", func() {
		a := battleRecord()
		a.Input = map[string]any{}
		a.Input["arena"] = "ember"
		a.Input["opponent"] = "c2"
		a.Input["round"] = 3

		b := battleRecord()
		b.Input = map[string]any{}
		b.Input["round"] = 3
		b.Input["opponent"] = "c2"
		b.Input["arena"] = "ember"

		ca, err := record.Canonical(a)
		Expect(err).NotTo(HaveOccurred())
		cb, err := record.Canonical(b)
		Expect(err).NotTo(HaveOccurred())

		Expect(ca).To(Equal(cb))
	})

	It("excludes hash and signature from the canonical form", func() {
		a := battleRecord()
		ca, err := record.Canonical(a)
		Expect(err).NotTo(HaveOccurred())

		b := battleRecord()
		b.Hash = "deadbeef"
		b.Signature = &record.Signature{Algorithm: "ed25519"}
		cb, err := record.Canonical(b)
		Expect(err).NotTo(HaveOccurred())

		Expect(ca).To(Equal(cb))
	})

	It("produces different bytes for different content", func() {
		a := battleRecord()
		b := battleRecord()
		b.This = "c1 flees the ember arena"

		ca, err := record.Canonical(a)
		Expect(err).NotTo(HaveOccurred())
		cb, err := record.Canonical(b)
		Expect(err).NotTo(HaveOccurred())

		Expect(ca).NotTo(Equal(cb))
	})

	It("fails loudly on unserializable values", func() {
		a := battleRecord()
		a.Payload = map[string]any{"ch": make(chan int)}

		_, err := record.Canonical(a)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a nil record", func() {
		_, err := record.Canonical(nil)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ComputeHash", func() {
	It("is deterministic", func() {
		a := battleRecord()

		h1, err := record.ComputeHash(a)
		Expect(err).NotTo(HaveOccurred())
		h2, err := record.ComputeHash(a)
		Expect(err).NotTo(HaveOccurred())

		Expect(h1).To(Equal(h2))
		Expect(h1).To(HaveLen(64))
	})

	It("changes when any content field changes", func() {
		a := battleRecord()
		base, err := record.ComputeHash(a)
		Expect(err).NotTo(HaveOccurred())

		mutations := []func(*record.Record){
			func(r *record.Record) { r.This = "different" },
			func(r *record.Record) { r.EntityType = "training" },
			func(r *record.Record) { r.TraceID = "t2" },
			func(r *record.Record) { r.Did.Actor = "c9" },
			func(r *record.Record) { r.Status.Result = record.ResultNot },
			func(r *record.Record) { r.Prev = "abc123" },
		}

		for _, mutate := range mutations {
			m := battleRecord()
			mutate(m)
			h, err := record.ComputeHash(m)
			Expect(err).NotTo(HaveOccurred())
			Expect(h).NotTo(Equal(base))
		}
	})

	It("is unaffected by the hash and signature fields", func() {
		a := battleRecord()
		base, err := record.ComputeHash(a)
		Expect(err).NotTo(HaveOccurred())

		a.Hash = base
		a.Signature = &record.Signature{Algorithm: "ed25519", PublicKey: "00", Bytes: "00"}

		again, err := record.ComputeHash(a)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal(base))
	})
})
