package hnsw_test

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chronicle/pkg/vector"
	"github.com/papercomputeco/chronicle/pkg/vector/hnsw"
)

// unitVec builds a deterministic unit vector in dims dimensions from a
// seeded generator.
func unitVec(rng *rand.Rand, dims int) []float32 {
	vec := make([]float32, dims)
	var sum float64
	for i := range vec {
		vec[i] = rng.Float32()
		sum += float64(vec[i]) * float64(vec[i])
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

var _ = Describe("Config", func() {
	It("rejects m below 2", func() {
		_, err := hnsw.New(hnsw.Config{M: 1, EfConstruction: 200, EfSearch: 50})
		Expect(err).To(MatchError(vector.ErrConfiguration))
	})

	It("rejects efConstruction below m", func() {
		_, err := hnsw.New(hnsw.Config{M: 16, EfConstruction: 8, EfSearch: 50})
		Expect(err).To(MatchError(vector.ErrConfiguration))
	})

	It("rejects non-positive efSearch", func() {
		_, err := hnsw.New(hnsw.Config{M: 16, EfConstruction: 200, EfSearch: 0})
		Expect(err).To(MatchError(vector.ErrConfiguration))
	})

	It("accepts the defaults", func() {
		ix, err := hnsw.New(hnsw.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(ix.Len()).To(BeZero())
	})
})

var _ = Describe("Index", func() {
	var ix *hnsw.Index

	BeforeEach(func() {
		var err error
		ix, err = hnsw.New(hnsw.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Insert", func() {
		It("stores vectors and tracks dimensionality", func() {
			Expect(ix.Insert("a", []float32{1, 0, 0})).To(Succeed())
			Expect(ix.Len()).To(Equal(1))
			Expect(ix.Dimensions()).To(Equal(3))
		})

		It("rejects empty ids and empty vectors", func() {
			Expect(ix.Insert("", []float32{1})).To(MatchError(vector.ErrConfiguration))
			Expect(ix.Insert("a", nil)).To(MatchError(vector.ErrDimension))
		})

		It("rejects vectors of mismatched dimension", func() {
			Expect(ix.Insert("a", []float32{1, 0})).To(Succeed())
			Expect(ix.Insert("b", []float32{1, 0, 0})).To(MatchError(vector.ErrDimension))
		})

		It("replaces the vector when the id already exists", func() {
			Expect(ix.Insert("a", []float32{1, 0})).To(Succeed())
			Expect(ix.Insert("b", []float32{0, 1})).To(Succeed())
			Expect(ix.Insert("a", []float32{0, 1})).To(Succeed())
			Expect(ix.Len()).To(Equal(2))

			matches, err := ix.Search([]float32{0, 1}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches[0].Distance).To(BeNumerically("~", 0, 1e-5))
		})
	})

	Describe("Search", func() {
		It("returns nothing from an empty index", func() {
			matches, err := ix.Search([]float32{1, 0}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeEmpty())
		})

		It("rejects non-positive k", func() {
			_, err := ix.Search([]float32{1, 0}, 0)
			Expect(err).To(MatchError(vector.ErrConfiguration))
		})

		It("rejects queries of mismatched dimension", func() {
			Expect(ix.Insert("a", []float32{1, 0})).To(Succeed())
			_, err := ix.Search([]float32{1, 0, 0}, 1)
			Expect(err).To(MatchError(vector.ErrDimension))
		})

		It("recalls every stored vector as its own nearest neighbor", func() {
			rng := rand.New(rand.NewSource(7))
			vecs := make(map[string][]float32, 40)
			for i := range 40 {
				id := fmt.Sprintf("rec-%02d", i)
				vecs[id] = unitVec(rng, 16)
				Expect(ix.Insert(id, vecs[id])).To(Succeed())
			}

			for id, vec := range vecs {
				matches, err := ix.Search(vec, 1)
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).To(HaveLen(1))
				Expect(matches[0].ID).To(Equal(id))
				Expect(matches[0].Similarity).To(BeNumerically("~", 1.0, 1e-4))
			}
		})

		It("orders matches by ascending distance", func() {
			Expect(ix.Insert("east", []float32{1, 0})).To(Succeed())
			Expect(ix.Insert("north", []float32{0, 1})).To(Succeed())
			Expect(ix.Insert("northeast", []float32{1, 1})).To(Succeed())

			matches, err := ix.Search([]float32{1, 0.1}, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(3))
			Expect(matches[0].ID).To(Equal("east"))
			Expect(matches[1].ID).To(Equal("northeast"))
			Expect(matches[2].ID).To(Equal("north"))
			Expect(matches[0].Distance).To(BeNumerically("<=", matches[1].Distance))
			Expect(matches[1].Distance).To(BeNumerically("<=", matches[2].Distance))
		})

		It("caps results at the index size when k is larger", func() {
			Expect(ix.Insert("a", []float32{1, 0})).To(Succeed())
			Expect(ix.Insert("b", []float32{0, 1})).To(Succeed())

			matches, err := ix.Search([]float32{1, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
		})

		It("treats zero vectors as maximally distant", func() {
			Expect(ix.Insert("a", []float32{1, 0})).To(Succeed())

			matches, err := ix.Search([]float32{0, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].Distance).To(BeNumerically("~", 1.0, 1e-5))
		})
	})

	Describe("determinism", func() {
		It("builds identical results for identical seeds", func() {
			build := func() []hnsw.Result {
				idx, err := hnsw.New(hnsw.Config{M: 4, EfConstruction: 8, EfSearch: 8, Seed: 99})
				Expect(err).NotTo(HaveOccurred())

				rng := rand.New(rand.NewSource(3))
				for i := range 30 {
					Expect(idx.Insert(fmt.Sprintf("n%d", i), unitVec(rng, 8))).To(Succeed())
				}

				query := unitVec(rand.New(rand.NewSource(4)), 8)
				matches, err := idx.Search(query, 5)
				Expect(err).NotTo(HaveOccurred())
				return matches
			}

			Expect(build()).To(Equal(build()))
		})
	})
})

var _ = Describe("Driver", func() {
	var (
		ix  *hnsw.Index
		ctx context.Context
	)

	BeforeEach(func() {
		var err error
		ix, err = hnsw.New(hnsw.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	It("adds and queries documents with trace metadata", func() {
		err := ix.Add(ctx, []vector.Document{
			{ID: "h1", TraceID: "t1", Embedding: []float32{1, 0}},
			{ID: "h2", TraceID: "t2", Embedding: []float32{0, 1}},
		})
		Expect(err).NotTo(HaveOccurred())

		results, err := ix.Query(ctx, []float32{1, 0}, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].ID).To(Equal("h1"))
		Expect(results[0].TraceID).To(Equal("t1"))
		Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-5))
	})

	It("gets stored documents with their embeddings", func() {
		err := ix.Add(ctx, []vector.Document{
			{ID: "h1", TraceID: "t1", Embedding: []float32{1, 0}},
		})
		Expect(err).NotTo(HaveOccurred())

		docs, err := ix.Get(ctx, []string{"h1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(HaveLen(1))
		Expect(docs[0].Embedding).To(Equal([]float32{1, 0}))
	})

	It("reports missing documents", func() {
		_, err := ix.Get(ctx, []string{"absent"})
		Expect(err).To(MatchError(vector.ErrNotFound))
	})

	It("refuses deletion", func() {
		Expect(ix.Delete(ctx, []string{"h1"})).To(MatchError(vector.ErrUnsupported))
	})
})
