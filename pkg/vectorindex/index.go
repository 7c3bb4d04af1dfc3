// Package vectorindex holds knowledge-base chunks with their embeddings and
// answers nearest-neighbour queries with maximal-marginal-relevance re-ranking.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrEmptyIndex  = errors.New("vectorindex: index is empty")
	ErrNotReady    = errors.New("vectorindex: no index loaded")
	ErrDimMismatch = errors.New("vectorindex: vector dimension mismatch")
)

type Metadata struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Source   string `json:"source"`
}

type Chunk struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Result is one retrieved chunk. Score is cosine similarity to the query and
// Rank is the position in the similarity ordering before re-ranking.
type Result struct {
	Chunk
	Score  float64   `json:"score"`
	Rank   int       `json:"rank"`
	Vector []float32 `json:"-"`
}

type Params struct {
	K          int
	FetchK     int
	LambdaMult float64
	// Boost, when set, is added to a candidate's relevance during MMR only.
	// Returned scores stay plain cosine similarity.
	Boost func(Chunk) float64
}

func DefaultParams() Params {
	return Params{K: 4, FetchK: 20, LambdaMult: 0.7}
}

func (p Params) Normalized() Params {
	d := DefaultParams()
	if p.K <= 0 {
		p.K = d.K
	}
	if p.FetchK <= 0 {
		p.FetchK = d.FetchK
	}
	if p.FetchK < p.K {
		p.FetchK = p.K
	}
	if p.LambdaMult < 0 {
		p.LambdaMult = 0
	}
	if p.LambdaMult > 1 {
		p.LambdaMult = 1
	}
	return p
}

// Embedder is the subset of the embedding cache the index needs to build itself.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is immutable once constructed and safe for concurrent reads.
type Index struct {
	dim     int
	chunks  []Chunk
	vectors [][]float32
	norms   []float64
}

func New(chunks []Chunk, vectors [][]float32) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("vectorindex: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyIndex
	}
	dim := len(vectors[0])
	norms := make([]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d, want %d", ErrDimMismatch, i, len(v), dim)
		}
		norms[i] = norm(v)
	}
	return &Index{dim: dim, chunks: chunks, vectors: vectors, norms: norms}, nil
}

func Build(ctx context.Context, chunks []Chunk, emb Embedder) (*Index, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	return New(chunks, vectors)
}

func (ix *Index) Len() int { return len(ix.chunks) }
func (ix *Index) Dim() int { return ix.dim }

// Search returns the fetchK most similar chunks, most similar first.
// Equal scores keep corpus order.
func (ix *Index) Search(query []float32, fetchK int) ([]Result, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimMismatch, len(query), ix.dim)
	}
	qn := norm(query)
	results := make([]Result, len(ix.chunks))
	for i := range ix.chunks {
		results[i] = Result{
			Chunk:  ix.chunks[i],
			Score:  cosine(query, qn, ix.vectors[i], ix.norms[i]),
			Vector: ix.vectors[i],
		}
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].Score > results[b].Score })
	if fetchK < len(results) {
		results = results[:fetchK]
	}
	for i := range results {
		results[i].Rank = i
	}
	return results, nil
}

func (ix *Index) Retrieve(query []float32, p Params) ([]Result, error) {
	p = p.Normalized()
	candidates, err := ix.Search(query, p.FetchK)
	if err != nil {
		return nil, err
	}
	return Rerank(candidates, p), nil
}

// Rerank applies p.Boost, if any, and MMR to rank-ordered candidates.
func Rerank(candidates []Result, p Params) []Result {
	if p.Boost == nil {
		return MMR(candidates, p.K, p.LambdaMult)
	}
	boosted := make([]Result, len(candidates))
	for i, c := range candidates {
		c.Score += p.Boost(c.Chunk)
		boosted[i] = c
	}
	picked := MMR(boosted, p.K, p.LambdaMult)
	for i := range picked {
		picked[i].Score = candidates[picked[i].Rank].Score
	}
	return picked
}

// MMR greedily picks k candidates maximising
// lambda*relevance - (1-lambda)*max similarity to anything already picked.
// Candidates must be ordered by rank; ties go to the lower rank.
func MMR(candidates []Result, k int, lambda float64) []Result {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	norms := make([]float64, len(candidates))
	for i, c := range candidates {
		norms[i] = norm(c.Vector)
	}

	selected := make([]int, 0, k)
	used := make([]bool, len(candidates))
	// maxSim[i] tracks the highest similarity of candidate i to the selected set.
	maxSim := make([]float64, len(candidates))

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if used[i] {
				continue
			}
			score := c.Score
			if len(selected) > 0 {
				score = lambda*c.Score - (1-lambda)*maxSim[i]
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		selected = append(selected, best)
		for i, c := range candidates {
			if used[i] {
				continue
			}
			s := cosine(c.Vector, norms[i], candidates[best].Vector, norms[best])
			if len(selected) == 1 || s > maxSim[i] {
				maxSim[i] = s
			}
		}
	}

	out := make([]Result, len(selected))
	for i, idx := range selected {
		out[i] = candidates[idx]
	}
	return out
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
