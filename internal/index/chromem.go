package index

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-qa/internal/models"
)

const (
	collectionName = "document"

	metaSource     = "source"
	metaPageNumber = "page_number"
	metaChunkID    = "chunk_id"
)

// ChromemIndex keeps one document in its own in-memory chromem database.
// chromem normalises vectors, so similarity is cosine.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
}

func NewChromemIndex() (*ChromemIndex, error) {
	db := chromem.NewDB()
	c, err := db.CreateCollection(collectionName, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %v", err)
	}
	return &ChromemIndex{db: db, collection: c}, nil
}

// noEmbedding is handed to chromem so that it never reaches for its default
// OpenAI embedder; every document and query arrives with a vector.
func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("chromem index expects precomputed embeddings")
}

// Add stores the chunk embeddings
func (m *ChromemIndex) Add(ctx context.Context, docs []models.ChunkEmbedding) error {
	if len(docs) == 0 {
		return nil
	}
	dims := len(docs[0].Embedding)

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		if len(doc.Embedding) != dims {
			return fmt.Errorf("%w: chunk %s has %d, expected %d", ErrDimensionMismatch, doc.ID, len(doc.Embedding), dims)
		}
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  createMetadata(doc.Chunk),
			Embedding: doc.Embedding,
		}
	}

	if err := m.collection.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	return nil
}

// Search performs a similarity search by embedding
func (m *ChromemIndex) Search(ctx context.Context, query []float32, topK int) ([]models.SearchResult, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}
	// chromem rejects nResults above the collection size
	n := min(topK, m.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	out := make([]models.SearchResult, len(results))
	for i, r := range results {
		out[i] = models.SearchResult{
			Chunk: chunkFromResult(r),
			Score: float64(r.Similarity),
		}
	}
	return out, nil
}

func (m *ChromemIndex) Count() int {
	return m.collection.Count()
}

// Close drops the collection so its vectors can be collected.
func (m *ChromemIndex) Close() error {
	if err := m.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	log.Debug().Str("collection", collectionName).Msg("Dropped collection")
	return nil
}

func createMetadata(c models.Chunk) map[string]string {
	return map[string]string{
		metaSource:     c.Source,
		metaPageNumber: strconv.Itoa(c.PageNumber),
		metaChunkID:    strconv.Itoa(c.ChunkID),
	}
}

func chunkFromResult(r chromem.Result) models.Chunk {
	page, _ := strconv.Atoi(r.Metadata[metaPageNumber])
	chunkID, _ := strconv.Atoi(r.Metadata[metaChunkID])
	return models.Chunk{
		ID:         r.ID,
		Content:    r.Content,
		Source:     r.Metadata[metaSource],
		PageNumber: page,
		ChunkID:    chunkID,
	}
}
