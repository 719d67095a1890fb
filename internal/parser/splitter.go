package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"pdf-qa/internal/models"

	"github.com/tmc/langchaingo/textsplitter"
)

var ErrInvalidChunking = errors.New("invalid chunking parameters")

// SplitPages splits every page into overlapping chunks of at most chunkSize
// characters. Chunks never span pages, so each keeps its page number.
func SplitPages(source string, pages []models.Page, chunkSize, chunkOverlap int) ([]models.Chunk, error) {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunking, chunkSize, chunkOverlap)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	name := filepath.Base(source)
	var chunks []models.Chunk
	for _, page := range pages {
		parts, err := splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d: %w", page.Number, err)
		}

		chunkID := 0
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			chunkID++
			chunks = append(chunks, models.Chunk{
				ID:         fmt.Sprintf("%s-p%d-c%d", name, page.Number, chunkID),
				Content:    part,
				Source:     source,
				PageNumber: page.Number,
				ChunkID:    chunkID,
			})
		}
	}
	return chunks, nil
}

// ParseDocument loads a document and splits it into chunks.
func ParseDocument(filePath string, chunkSize, chunkOverlap int) ([]models.Chunk, error) {
	pages, err := LoadPages(filePath)
	if err != nil {
		return nil, err
	}
	return SplitPages(filePath, pages, chunkSize, chunkOverlap)
}
