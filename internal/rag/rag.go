package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"pdf-qa/internal/config"
	"pdf-qa/internal/embedding"
	"pdf-qa/internal/index"
	"pdf-qa/internal/llmservice"
	"pdf-qa/internal/models"
	"pdf-qa/internal/parser"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrIndexNotReady    = errors.New("index not ready: no document has been processed")
	ErrEmptyDocument    = errors.New("no text could be extracted from the document")
)

// RAG ingests one document at a time and answers questions against it.
// A successful Process replaces the previous index; a failed one leaves it
// in place.
type RAG struct {
	embedder embeddings.Embedder
	llm      llms.Model
	cfg      *config.Config
	prompt   prompts.PromptTemplate
	newIndex func() (index.Index, error)

	mu          sync.RWMutex
	current     index.Index
	currentPath string
}

func NewRAG(embedder embeddings.Embedder, llm llms.Model, cfg *config.Config) *RAG {
	return &RAG{
		embedder: embedder,
		llm:      llm,
		cfg:      cfg,
		prompt:   prompts.NewPromptTemplate(models.AnswerPromptTemplate, []string{"context", "question"}),
		newIndex: func() (index.Index, error) { return index.New(&cfg.RAG) },
	}
}

type processOptions struct {
	chunkSize    int
	chunkOverlap int
}

type ProcessOption func(*processOptions)

func WithChunkSize(n int) ProcessOption {
	return func(o *processOptions) { o.chunkSize = n }
}

func WithChunkOverlap(n int) ProcessOption {
	return func(o *processOptions) { o.chunkOverlap = n }
}

// Process loads, splits and embeds the document at path into a fresh index
// and returns the number of chunks produced.
func (r *RAG) Process(ctx context.Context, path string, opts ...ProcessOption) (int, error) {
	o := processOptions{
		chunkSize:    r.cfg.RAG.ChunkSize,
		chunkOverlap: r.cfg.RAG.ChunkOverlap,
	}
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
	}

	start := time.Now()
	chunks, err := parser.ParseDocument(path, o.chunkSize, o.chunkOverlap)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyDocument, path)
	}
	log.Info().Str("path", path).Int("chunks", len(chunks)).Msg("Parsed document")

	chunkEmbeddings, err := embedding.GenerateEmbedding(ctx, r.embedder, chunks)
	if err != nil {
		return 0, err
	}

	idx, err := r.newIndex()
	if err != nil {
		return 0, err
	}
	if err := idx.Add(ctx, chunkEmbeddings); err != nil {
		_ = idx.Close()
		return 0, err
	}

	r.mu.Lock()
	previous := r.current
	r.current = idx
	r.currentPath = path
	r.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing previous index")
		}
	}

	log.Info().Str("path", path).Int("chunks", len(chunks)).Dur("took", time.Since(start)).Msg("Indexed document")
	return len(chunks), nil
}

// Retrieve returns the chunks most similar to query, best first.
func (r *RAG) Retrieve(ctx context.Context, query string) ([]models.SearchResult, error) {
	idx := r.index()
	if idx == nil {
		return nil, ErrIndexNotReady
	}

	queryEmbedding, err := embedding.EmbedQuery(ctx, r.embedder, query)
	if err != nil {
		return nil, err
	}
	return idx.Search(ctx, queryEmbedding, r.cfg.RAG.TopK)
}

// Query retrieves context for query, asks the model and returns the answer
// together with the locations it was grounded on.
func (r *RAG) Query(ctx context.Context, query string) (*models.PromptResponse, error) {
	results, err := r.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	contents := make([]string, len(results))
	sources := make([]string, len(results))
	for i, res := range results {
		contents[i] = res.Chunk.Content
		sources[i] = res.Chunk.Location()
	}

	prompt, err := r.prompt.Format(map[string]any{
		"context":  strings.Join(contents, models.ContextSeparator),
		"question": query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format prompt: %w", err)
	}

	answer, err := llmservice.GenerateContent(ctx, r.llm, prompt, r.cfg.LLM.Temperature)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("query", query).Int("retrieved", len(results)).Msg("Answered query")

	return &models.PromptResponse{
		Query:   query,
		Source:  strings.Join(sources, models.SourceSeparator),
		Content: answer,
	}, nil
}

// Answer returns the raw model answer to question.
func (r *RAG) Answer(ctx context.Context, question string) (string, error) {
	response, err := r.Query(ctx, question)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

func (r *RAG) Ready() bool {
	return r.index() != nil
}

// CurrentDocument returns the path of the indexed document, or "".
func (r *RAG) CurrentDocument() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentPath
}

// Close releases the current index; the pipeline is UNINITIALIZED afterwards.
func (r *RAG) Close() error {
	r.mu.Lock()
	idx := r.current
	r.current = nil
	r.currentPath = ""
	r.mu.Unlock()

	if idx == nil {
		return nil
	}
	return idx.Close()
}

func (r *RAG) index() index.Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}
