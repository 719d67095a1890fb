package index

import (
	"context"
	"errors"
	"fmt"

	"pdf-qa/internal/config"
	"pdf-qa/internal/models"
)

var (
	ErrUnsupportedMetric = errors.New("unsupported similarity metric")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Index is an in-memory nearest-neighbour index over chunk embeddings.
// Search returns at most topK results, best first. A closed index keeps
// answering searches that already hold it.
type Index interface {
	Add(ctx context.Context, docs []models.ChunkEmbedding) error
	Search(ctx context.Context, query []float32, topK int) ([]models.SearchResult, error)
	Count() int
	Close() error
}

// New builds an empty index for the configured backend and metric.
func New(cfg *config.RAGConfig) (Index, error) {
	switch cfg.Backend {
	case config.BackendChromem:
		if cfg.Similarity != config.MetricCosine {
			return nil, fmt.Errorf("%w: %s backend only supports %s", ErrUnsupportedMetric, cfg.Backend, config.MetricCosine)
		}
		return NewChromemIndex()
	case config.BackendFlat:
		return NewFlatIndex(cfg.Similarity)
	default:
		return nil, fmt.Errorf("unsupported index backend: %q", cfg.Backend)
	}
}
