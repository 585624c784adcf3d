// Package tfidf provides a deterministic, corpus-relative TF-IDF embedder.
//
// Unlike a trained embedding model, the vector space here is defined entirely
// by the corpus: one dimension per distinct token observed anywhere in the
// corpus, ordered lexicographically so vectors from repeated calls against
// the same corpus are directly comparable. Whenever the corpus changes, IDF
// weights shift and every stored vector must be re-embedded.
package tfidf

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
)

// Corpus is an immutable snapshot of the document set an embedder is
// relative to. Build it once, pass it explicitly; never ambient state.
type Corpus struct {
	// vocab holds every distinct token, sorted lexicographically.
	// The position of a token is its vector dimension.
	vocab []string

	// index maps token to its dimension.
	index map[string]int

	// df holds the document frequency per dimension.
	df []int

	// docs is the number of documents the corpus was built from.
	docs int
}

// NewCorpus builds a corpus from a set of documents.
func NewCorpus(documents []string) *Corpus {
	df := make(map[string]int)
	for _, doc := range documents {
		seen := make(map[string]bool)
		for _, token := range Tokenize(doc) {
			if !seen[token] {
				seen[token] = true
				df[token]++
			}
		}
	}

	vocab := make([]string, 0, len(df))
	for token := range df {
		vocab = append(vocab, token)
	}
	sort.Strings(vocab)

	c := &Corpus{
		vocab: vocab,
		index: make(map[string]int, len(vocab)),
		df:    make([]int, len(vocab)),
		docs:  len(documents),
	}
	for i, token := range vocab {
		c.index[token] = i
		c.df[i] = df[token]
	}
	return c
}

// Dimensions returns the vector dimensionality (= vocabulary size).
func (c *Corpus) Dimensions() int {
	return len(c.vocab)
}

// Documents returns the number of documents the corpus was built from.
func (c *Corpus) Documents() int {
	return c.docs
}

// idf returns the smoothed inverse document frequency for dimension i.
func (c *Corpus) idf(i int) float64 {
	return math.Log(float64(1+c.docs)/float64(1+c.df[i])) + 1
}

// Embedder embeds text relative to a fixed corpus.
type Embedder struct {
	corpus *Corpus
}

// NewEmbedder creates an embedder over the given corpus.
func NewEmbedder(corpus *Corpus) (*Embedder, error) {
	if corpus == nil {
		return nil, fmt.Errorf("corpus is required")
	}
	return &Embedder{corpus: corpus}, nil
}

// Embed converts text into its TF-IDF vector: term frequency of each token
// in the text times the inverse document frequency of that token across the
// corpus. Tokens outside the corpus vocabulary contribute nothing.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.corpus.Dimensions() == 0 {
		return nil, fmt.Errorf("cannot embed against an empty corpus")
	}

	tokens := Tokenize(text)
	vec := make([]float32, e.corpus.Dimensions())
	if len(tokens) == 0 {
		return vec, nil
	}

	counts := make(map[int]int)
	for _, token := range tokens {
		if i, ok := e.corpus.index[token]; ok {
			counts[i]++
		}
	}

	total := float64(len(tokens))
	for i, count := range counts {
		tf := float64(count) / total
		vec[i] = float32(tf * e.corpus.idf(i))
	}

	return Normalize(vec), nil
}

// Close is a no-op; the embedder holds no external resources.
func (e *Embedder) Close() error {
	return nil
}

// Normalize divides a vector by its Euclidean norm, producing a unit vector.
// A zero vector is returned unchanged to avoid division by zero.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// Tokenize lowercases text and splits it on any non-letter, non-digit rune.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
