package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chronicle/pkg/ledger"
	"github.com/papercomputeco/chronicle/pkg/ledger/sqlite"
	"github.com/papercomputeco/chronicle/pkg/record"
)

func sqliteTestRecord(traceID, this string) *record.Record {
	return &record.Record{
		EntityType: "battle",
		TraceID:    traceID,
		This:       this,
		Did: record.Did{
			Actor:  "c1",
			Action: "battle_vs_c2",
		},
		When: record.When{
			StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Status: record.Status{
			State:  record.StateCompleted,
			Result: record.ResultOK,
		},
	}
}

var _ = Describe("Ledger", func() {
	var (
		led *sqlite.Ledger
		ctx context.Context
	)

	BeforeEach(func() {
		var err error
		led, err = sqlite.New(":memory:")
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		if led != nil {
			led.Close()
		}
	})

	Describe("Append", func() {
		It("stores a record and returns its assigned id", func() {
			rec := sqliteTestRecord("t1", "first clash")

			id, err := led.Append(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(int64(1)))
			Expect(rec.Hash).To(HaveLen(64))
		})

		It("rejects duplicates within a trace", func() {
			_, err := led.Append(ctx, sqliteTestRecord("t1", "same"))
			Expect(err).NotTo(HaveOccurred())

			_, err = led.Append(ctx, sqliteTestRecord("t1", "same"))
			var derr ledger.DuplicateError
			Expect(err).To(BeAssignableToTypeOf(derr))
		})

		It("accepts the same content under a different trace", func() {
			_, err := led.Append(ctx, sqliteTestRecord("t1", "same"))
			Expect(err).NotTo(HaveOccurred())

			_, err = led.Append(ctx, sqliteTestRecord("t2", "same"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects records missing required fields", func() {
			_, err := led.Append(ctx, &record.Record{EntityType: "battle", TraceID: "t1"})
			var verr ledger.ValidationError
			Expect(err).To(BeAssignableToTypeOf(verr))
		})
	})

	Describe("Scan", func() {
		BeforeEach(func() {
			for i := range 12 {
				_, err := led.Append(ctx, sqliteTestRecord("t1", fmt.Sprintf("event %02d", i)))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("paginates completely without overlap", func() {
			seen := map[string]bool{}
			cursor := ""

			for {
				page, err := led.Scan(ctx, ledger.ScanOptions{Limit: 5, Cursor: cursor})
				Expect(err).NotTo(HaveOccurred())

				for _, rec := range page.Records {
					Expect(seen[rec.Hash]).To(BeFalse())
					seen[rec.Hash] = true
				}

				if page.NextCursor == "" {
					break
				}
				cursor = page.NextCursor
			}

			Expect(seen).To(HaveLen(12))
		})

		It("returns records in insertion order", func() {
			page, err := led.Scan(ctx, ledger.ScanOptions{Limit: 12})
			Expect(err).NotTo(HaveOccurred())

			for i, rec := range page.Records {
				Expect(rec.This).To(Equal(fmt.Sprintf("event %02d", i)))
			}
		})
	})

	Describe("Query", func() {
		It("filters on AND semantics across indexed columns", func() {
			owned := sqliteTestRecord("t3", "alice's battle")
			owned.Metadata.OwnerID = "alice"
			_, err := led.Append(ctx, owned)
			Expect(err).NotTo(HaveOccurred())

			training := sqliteTestRecord("t3", "bob's drill")
			training.EntityType = "training"
			training.Metadata.OwnerID = "bob"
			_, err = led.Append(ctx, training)
			Expect(err).NotTo(HaveOccurred())

			records, err := led.Query(ctx, ledger.Filters{TraceID: "t3", OwnerID: "alice"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].This).To(Equal("alice's battle"))
		})
	})

	Describe("Stats", func() {
		It("aggregates totals by entity type and state", func() {
			_, err := led.Append(ctx, sqliteTestRecord("t1", "one"))
			Expect(err).NotTo(HaveOccurred())

			evo := sqliteTestRecord("t1", "two")
			evo.EntityType = "evolution"
			_, err = led.Append(ctx, evo)
			Expect(err).NotTo(HaveOccurred())

			stats, err := led.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Total).To(Equal(2))
			Expect(stats.ByEntityType).To(HaveKeyWithValue("battle", 1))
			Expect(stats.ByEntityType).To(HaveKeyWithValue("evolution", 1))
		})
	})

	Describe("persistence", func() {
		It("retains records and hashes across close and reopen", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "chronicle.db")

			first, err := sqlite.New(dbPath)
			Expect(err).NotTo(HaveOccurred())

			rec := sqliteTestRecord("t1", "durable clash")
			_, err = first.Append(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Close()).To(Succeed())

			second, err := sqlite.New(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer second.Close()

			records, err := second.Query(ctx, ledger.Filters{TraceID: "t1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Hash).To(Equal(rec.Hash))
			Expect(records[0].This).To(Equal("durable clash"))

			// Duplicate detection survives the restart too.
			_, err = second.Append(ctx, sqliteTestRecord("t1", "durable clash"))
			var derr ledger.DuplicateError
			Expect(err).To(BeAssignableToTypeOf(derr))
		})
	})
})
