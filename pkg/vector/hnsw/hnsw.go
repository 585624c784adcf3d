// Package hnsw implements an in-memory hierarchical navigable small world
// index for approximate nearest neighbor search over cosine distance.
//
// The index keeps every vector in a flat arena and builds a layered graph on
// top: each node is assigned a random level, appears in every layer up to
// that level, and holds per-layer adjacency lists. Queries descend greedily
// from the top layer to layer 1, then run a beam search over layer 0.
package hnsw

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/papercomputeco/chronicle/pkg/vector"
)

const (
	// DefaultM is the default number of bidirectional links per node.
	DefaultM = 16

	// DefaultEfConstruction is the default beam width during insertion.
	DefaultEfConstruction = 200

	// DefaultEfSearch is the default beam width during queries.
	DefaultEfSearch = 50

	// maxLevelCap bounds random level assignment.
	maxLevelCap = 32
)

// Config holds the tunable parameters of an index.
type Config struct {
	// M is the maximum number of neighbors per node on layers above 0.
	// Layer 0 allows 2*M neighbors.
	M int

	// EfConstruction is the candidate beam width used while inserting.
	EfConstruction int

	// EfSearch is the candidate beam width used while querying. Queries
	// asking for more than EfSearch results widen the beam to k.
	EfSearch int

	// Seed feeds the level generator. Zero selects a fixed default so
	// index builds are reproducible.
	Seed int64
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return Config{
		M:              DefaultM,
		EfConstruction: DefaultEfConstruction,
		EfSearch:       DefaultEfSearch,
	}
}

func (c Config) validate() error {
	if c.M < 2 {
		return fmt.Errorf("%w: m must be at least 2, got %d", vector.ErrConfiguration, c.M)
	}
	if c.EfConstruction < c.M {
		return fmt.Errorf("%w: efConstruction %d must be at least m %d",
			vector.ErrConfiguration, c.EfConstruction, c.M)
	}
	if c.EfSearch < 1 {
		return fmt.Errorf("%w: efSearch must be positive, got %d", vector.ErrConfiguration, c.EfSearch)
	}
	return nil
}

// Result is a single nearest-neighbor match.
type Result struct {
	// ID identifies the matched document.
	ID string

	// Distance is the cosine distance to the query, in [0, 2].
	Distance float32

	// Similarity is 1 - Distance.
	Similarity float32
}

// node is one entry in the arena. A node at level L appears in layers 0..L
// and keeps one adjacency list per layer, holding arena indices.
type node struct {
	id        string
	traceID   string
	vec       []float32
	level     int
	neighbors [][]int
}

// Index is an HNSW graph. All methods are safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	cfg    Config
	rng    *rand.Rand
	nodes  []*node
	byID   map[string]int
	entry  int
	top    int
	dims   int
}

// New creates an empty index with the given configuration.
func New(cfg Config) (*Index, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}

	return &Index{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		byID:  make(map[string]int),
		entry: -1,
		top:   -1,
	}, nil
}

// Len returns the number of stored vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.nodes)
}

// Dimensions returns the dimensionality of stored vectors, or 0 when empty.
func (ix *Index) Dimensions() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dims
}

// Insert adds a vector under the given id. Inserting an id that already
// exists replaces its vector in place; the graph edges built for the old
// vector are kept.
func (ix *Index) Insert(id string, vec []float32) error {
	return ix.insert(id, "", vec)
}

func (ix *Index) insert(id, traceID string, vec []float32) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", vector.ErrConfiguration)
	}
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector for %q", vector.ErrDimension, id)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dims != 0 && len(vec) != ix.dims {
		return fmt.Errorf("%w: got %d dimensions, index has %d",
			vector.ErrDimension, len(vec), ix.dims)
	}

	if at, ok := ix.byID[id]; ok {
		existing := ix.nodes[at]
		existing.vec = append(existing.vec[:0], vec...)
		if traceID != "" {
			existing.traceID = traceID
		}
		return nil
	}

	level := ix.randomLevel()
	n := &node{
		id:        id,
		traceID:   traceID,
		vec:       append([]float32(nil), vec...),
		level:     level,
		neighbors: make([][]int, level+1),
	}

	at := len(ix.nodes)
	ix.nodes = append(ix.nodes, n)
	ix.byID[id] = at
	if ix.dims == 0 {
		ix.dims = len(vec)
	}

	// First node becomes the entry point with no edges to build.
	if ix.entry < 0 {
		ix.entry = at
		ix.top = level
		return nil
	}

	ep := ix.entry

	// Greedy descent through layers above the new node's level.
	for layer := ix.top; layer > level; layer-- {
		ep = ix.greedyClosest(vec, ep, layer)
	}

	// From the node's top layer down, beam-search candidates and link.
	for layer := min(level, ix.top); layer >= 0; layer-- {
		candidates := ix.searchLayer(vec, ep, ix.cfg.EfConstruction, layer)
		limit := ix.layerLimit(layer)

		chosen := candidates
		if len(chosen) > limit {
			chosen = chosen[:limit]
		}

		for _, c := range chosen {
			n.neighbors[layer] = append(n.neighbors[layer], c.idx)
			peer := ix.nodes[c.idx]
			peer.neighbors[layer] = append(peer.neighbors[layer], at)
			if len(peer.neighbors[layer]) > ix.layerLimit(layer) {
				ix.shrinkNeighbors(peer, layer)
			}
		}

		if len(candidates) > 0 {
			ep = candidates[0].idx
		}
	}

	if level > ix.top {
		ix.entry = at
		ix.top = level
	}

	return nil
}

// Search returns up to k nearest neighbors of the query vector, closest
// first. An empty index yields an empty result.
func (ix *Index) Search(query []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", vector.ErrConfiguration, k)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.entry < 0 {
		return nil, nil
	}
	if len(query) != ix.dims {
		return nil, fmt.Errorf("%w: got %d dimensions, index has %d",
			vector.ErrDimension, len(query), ix.dims)
	}

	ep := ix.entry
	for layer := ix.top; layer > 0; layer-- {
		ep = ix.greedyClosest(query, ep, layer)
	}

	ef := ix.cfg.EfSearch
	if k > ef {
		ef = k
	}

	candidates := ix.searchLayer(query, ep, ef, 0)
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		n := ix.nodes[c.idx]
		results = append(results, Result{
			ID:         n.id,
			Distance:   c.dist,
			Similarity: 1 - c.dist,
		})
	}
	return results, nil
}

// randomLevel draws floor(-ln(U) / ln 2) with U uniform on (0, 1].
func (ix *Index) randomLevel() int {
	u := ix.rng.Float64()
	for u == 0 {
		u = ix.rng.Float64()
	}
	level := int(math.Floor(-math.Log(u) / math.Ln2))
	if level > maxLevelCap {
		level = maxLevelCap
	}
	return level
}

func (ix *Index) layerLimit(layer int) int {
	if layer == 0 {
		return 2 * ix.cfg.M
	}
	return ix.cfg.M
}

// greedyClosest walks layer edges toward the query until no neighbor
// improves on the current node.
func (ix *Index) greedyClosest(query []float32, start, layer int) int {
	cur := start
	curDist := distance(query, ix.nodes[cur].vec)

	for {
		improved := false
		for _, next := range ix.nodes[cur].neighborsAt(layer) {
			if d := distance(query, ix.nodes[next].vec); d < curDist {
				cur, curDist = next, d
				improved = true
			}
		}
		if !improved {
			return cur
		}
	}
}

type scored struct {
	idx  int
	dist float32
}

// searchLayer runs a beam search of width ef over one layer, returning up
// to ef candidates sorted closest first.
func (ix *Index) searchLayer(query []float32, entry, ef, layer int) []scored {
	entryDist := distance(query, ix.nodes[entry].vec)

	visited := map[int]bool{entry: true}
	frontier := &minHeap{{entry, entryDist}}
	found := &maxHeap{{entry, entryDist}}

	for frontier.Len() > 0 {
		cur := heap.Pop(frontier).(scored)
		if cur.dist > (*found)[0].dist && found.Len() >= ef {
			break
		}

		for _, next := range ix.nodes[cur.idx].neighborsAt(layer) {
			if visited[next] {
				continue
			}
			visited[next] = true

			d := distance(query, ix.nodes[next].vec)
			if found.Len() < ef || d < (*found)[0].dist {
				heap.Push(frontier, scored{next, d})
				heap.Push(found, scored{next, d})
				if found.Len() > ef {
					heap.Pop(found)
				}
			}
		}
	}

	out := make([]scored, found.Len())
	copy(out, *found)
	sort.Slice(out, func(i, j int) bool { return out[i].dist < out[j].dist })
	return out
}

// shrinkNeighbors trims a node's layer adjacency back to the layer limit,
// keeping the closest peers.
func (ix *Index) shrinkNeighbors(n *node, layer int) {
	peers := n.neighbors[layer]
	sort.Slice(peers, func(i, j int) bool {
		return distance(n.vec, ix.nodes[peers[i]].vec) < distance(n.vec, ix.nodes[peers[j]].vec)
	})
	n.neighbors[layer] = peers[:ix.layerLimit(layer)]
}

func (n *node) neighborsAt(layer int) []int {
	if layer > n.level {
		return nil
	}
	return n.neighbors[layer]
}

// distance is cosine distance: 1 minus the cosine of the angle between the
// vectors. Zero vectors are maximally distant from everything.
func distance(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

type minHeap []scored

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(scored)) }
func (h *minHeap) Pop() any           { old := *h; n := len(old); x := old[n-1]; *h = old[:n-1]; return x }

type maxHeap []scored

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)         { *h = append(*h, x.(scored)) }
func (h *maxHeap) Pop() any           { old := *h; n := len(old); x := old[n-1]; *h = old[:n-1]; return x }
