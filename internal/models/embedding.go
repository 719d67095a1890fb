package models

import (
	"fmt"
	"time"
)

// Page is the text of one page (or sheet, slide) of a document, numbered from 1.
type Page struct {
	Number int
	Text   string
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Source     string `json:"source"`
	PageNumber int    `json:"page_number"`
	ChunkID    int    `json:"chunk_id"`
}

// Location renders the chunk origin as "file p.N#M".
func (c Chunk) Location() string {
	return fmt.Sprintf("%s p.%d#%d", c.Source, c.PageNumber, c.ChunkID)
}

type ChunkEmbedding struct {
	Chunk
	Embedding []float32
}

type SearchResult struct {
	Chunk Chunk
	Score float64
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
}

// Exchange is one question/answer pair of the search history.
type Exchange struct {
	Question string
	Answer   string
	AskedAt  time.Time
}
