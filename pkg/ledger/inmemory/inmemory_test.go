package inmemory_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chronicle/pkg/ledger"
	"github.com/papercomputeco/chronicle/pkg/ledger/inmemory"
	"github.com/papercomputeco/chronicle/pkg/record"
)

// testRecord builds a minimal valid record for the given trace and subject.
func testRecord(traceID, this string) *record.Record {
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
		led *inmemory.Ledger
		ctx context.Context
	)

	BeforeEach(func() {
		led = inmemory.New()
		ctx = context.Background()
	})

	Describe("Append", func() {
		It("stores a valid record and populates its hash", func() {
			rec := testRecord("t1", "first clash")

			id, err := led.Append(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(int64(1)))
			Expect(rec.Hash).To(HaveLen(64))
		})

		It("assigns monotonically increasing identifiers", func() {
			for i := 1; i <= 3; i++ {
				id, err := led.Append(ctx, testRecord("t1", fmt.Sprintf("clash %d", i)))
				Expect(err).NotTo(HaveOccurred())
				Expect(id).To(Equal(int64(i)))
			}
		})

		It("rejects records missing required fields", func() {
			missing := []*record.Record{
				{TraceID: "t1", This: "x"},
				{EntityType: "battle", This: "x"},
				{EntityType: "battle", TraceID: "t1"},
			}

			for _, rec := range missing {
				_, err := led.Append(ctx, rec)
				var verr ledger.ValidationError
				Expect(err).To(BeAssignableToTypeOf(verr))
			}
		})

		It("rejects a second append with the same trace and content", func() {
			_, err := led.Append(ctx, testRecord("t1", "same"))
			Expect(err).NotTo(HaveOccurred())

			_, err = led.Append(ctx, testRecord("t1", "same"))
			var derr ledger.DuplicateError
			Expect(err).To(BeAssignableToTypeOf(derr))
		})

		It("accepts the same content under a different trace", func() {
			_, err := led.Append(ctx, testRecord("t1", "same"))
			Expect(err).NotTo(HaveOccurred())

			_, err = led.Append(ctx, testRecord("t2", "same"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects a record whose stored hash disagrees with its content", func() {
			rec := testRecord("t1", "tampered")
			rec.Hash = "0000000000000000000000000000000000000000000000000000000000000000"

			_, err := led.Append(ctx, rec)
			var ierr record.IntegrityError
			Expect(err).To(BeAssignableToTypeOf(ierr))
		})

		It("accepts a record whose hash matches its content", func() {
			rec := testRecord("t1", "prehashed")
			hash, err := record.ComputeHash(rec)
			Expect(err).NotTo(HaveOccurred())
			rec.Hash = hash

			_, err = led.Append(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Scan", func() {
		BeforeEach(func() {
			for i := range 25 {
				_, err := led.Append(ctx, testRecord("t1", fmt.Sprintf("event %02d", i)))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("defaults to a page size of 10", func() {
			page, err := led.Scan(ctx, ledger.ScanOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Records).To(HaveLen(10))
			Expect(page.NextCursor).NotTo(BeEmpty())
		})

		It("yields the full non-overlapping set when the cursor is followed", func() {
			seen := map[string]bool{}
			cursor := ""
			pages := 0

			for {
				page, err := led.Scan(ctx, ledger.ScanOptions{Limit: 7, Cursor: cursor})
				Expect(err).NotTo(HaveOccurred())

				for _, rec := range page.Records {
					Expect(seen[rec.Hash]).To(BeFalse(), "record %s returned twice", rec.Hash)
					seen[rec.Hash] = true
				}

				pages++
				if page.NextCursor == "" {
					break
				}
				cursor = page.NextCursor
			}

			Expect(seen).To(HaveLen(25))
			Expect(pages).To(Equal(4))
		})

		It("preserves insertion order", func() {
			page, err := led.Scan(ctx, ledger.ScanOptions{Limit: 5})
			Expect(err).NotTo(HaveOccurred())

			for i, rec := range page.Records {
				Expect(rec.This).To(Equal(fmt.Sprintf("event %02d", i)))
			}
		})

		It("omits the next cursor on the final exact page", func() {
			page, err := led.Scan(ctx, ledger.ScanOptions{Limit: 25})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Records).To(HaveLen(25))
			Expect(page.NextCursor).To(BeEmpty())
		})

		It("filters by status", func() {
			failed := testRecord("t9", "a failed one")
			failed.Status.State = record.StateFailed
			_, err := led.Append(ctx, failed)
			Expect(err).NotTo(HaveOccurred())

			page, err := led.Scan(ctx, ledger.ScanOptions{StatusFilter: record.StateFailed})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Records).To(HaveLen(1))
			Expect(page.Records[0].This).To(Equal("a failed one"))
		})

		It("rejects a cursor minted under different filters", func() {
			page, err := led.Scan(ctx, ledger.ScanOptions{Limit: 5})
			Expect(err).NotTo(HaveOccurred())

			_, err = led.Scan(ctx, ledger.ScanOptions{
				Cursor:        page.NextCursor,
				TraceIDFilter: "t1",
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Query", func() {
		BeforeEach(func() {
			battle := testRecord("t1", "a battle")
			battle.Metadata.OwnerID = "alice"

			training := testRecord("t1", "a drill")
			training.EntityType = "training"
			training.Metadata.OwnerID = "bob"

			other := testRecord("t2", "another battle")
			other.Metadata.OwnerID = "alice"

			for _, rec := range []*record.Record{battle, training, other} {
				_, err := led.Append(ctx, rec)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("combines filters with AND semantics", func() {
			records, err := led.Query(ctx, ledger.Filters{
				TraceID: "t1",
				OwnerID: "alice",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].This).To(Equal("a battle"))
		})

		It("returns all records for empty filters", func() {
			records, err := led.Query(ctx, ledger.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
		})

		It("filters by entity type", func() {
			records, err := led.Query(ctx, ledger.Filters{EntityType: "training"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].This).To(Equal("a drill"))
		})
	})

	Describe("Stats", func() {
		It("aggregates by entity type and status", func() {
			battle := testRecord("t1", "a battle")
			failed := testRecord("t1", "a failed drill")
			failed.EntityType = "training"
			failed.Status.State = record.StateFailed

			for _, rec := range []*record.Record{battle, failed} {
				_, err := led.Append(ctx, rec)
				Expect(err).NotTo(HaveOccurred())
			}

			stats, err := led.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Total).To(Equal(2))
			Expect(stats.ByEntityType).To(HaveKeyWithValue("battle", 1))
			Expect(stats.ByEntityType).To(HaveKeyWithValue("training", 1))
			Expect(stats.ByStatus).To(HaveKeyWithValue("completed", 1))
			Expect(stats.ByStatus).To(HaveKeyWithValue("failed", 1))
		})
	})

	Describe("Clear", func() {
		It("empties the ledger", func() {
			_, err := led.Append(ctx, testRecord("t1", "gone soon"))
			Expect(err).NotTo(HaveOccurred())

			led.Clear()
			Expect(led.Count()).To(Equal(0))

			_, err = led.Append(ctx, testRecord("t1", "gone soon"))
			Expect(err).NotTo(HaveOccurred(), "cleared content is appendable again")
		})
	})
})
