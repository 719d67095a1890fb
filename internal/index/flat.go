package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"pdf-qa/internal/config"
	"pdf-qa/internal/models"
)

// FlatIndex scores every stored vector on each search. Scores are cosine
// similarity, or the negated euclidean distance for l2, so higher is
// always better.
type FlatIndex struct {
	mu     sync.RWMutex
	metric string
	dims   int
	docs   []models.ChunkEmbedding
}

func NewFlatIndex(metric string) (*FlatIndex, error) {
	switch metric {
	case config.MetricCosine, config.MetricL2:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMetric, metric)
	}
	return &FlatIndex{metric: metric}, nil
}

func (s *FlatIndex) Add(ctx context.Context, docs []models.ChunkEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		if s.dims == 0 {
			s.dims = len(doc.Embedding)
		}
		if len(doc.Embedding) != s.dims {
			return fmt.Errorf("%w: chunk %s has %d, expected %d", ErrDimensionMismatch, doc.ID, len(doc.Embedding), s.dims)
		}
	}
	s.docs = append(s.docs, docs...)
	return nil
}

func (s *FlatIndex) Search(ctx context.Context, query []float32, topK int) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}
	if len(s.docs) > 0 && len(query) != s.dims {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), s.dims)
	}

	results := make([]models.SearchResult, 0, len(s.docs))
	for _, doc := range s.docs {
		results = append(results, models.SearchResult{
			Chunk: doc.Chunk,
			Score: s.score(query, doc.Embedding),
		})
	}

	// stable keeps insertion order among ties
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK < 0 {
		topK = 0
	}
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (s *FlatIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Close is a no-op; the vectors go once the last searcher drops the index.
func (s *FlatIndex) Close() error {
	return nil
}

func (s *FlatIndex) score(a, b []float32) float64 {
	if s.metric == config.MetricL2 {
		return -euclidean(a, b)
	}
	return cosine(a, b)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
