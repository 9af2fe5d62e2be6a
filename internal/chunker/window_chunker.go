package chunker

import (
	"fmt"
	"strconv"
	"strings"

	"ragtutor/internal/domain"
)

// WindowChunker splits text into fixed-size rune windows where consecutive
// windows share exactly overlap runes.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker validates the window geometry up front so chunking itself
// cannot fail on configuration.
func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, domain.ConfigurationError("chunker", fmt.Errorf("chunk size must be positive, got %d", size))
	}
	if overlap < 0 || overlap >= size {
		return nil, domain.ConfigurationError("chunker", fmt.Errorf("overlap must be in [0, %d), got %d", size, overlap))
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Content) == "" {
		return nil, nil
	}
	runes := []rune(document.Content)
	var chunks []domain.Chunk
	start, idx := 0, 0
	for {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(idx),
			Source:     document.Path,
			Index:      idx,
			Start:      start,
			End:        end,
			Text:       string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
		start = end - c.overlap
		idx++
	}
	return chunks, nil
}

// Split chunks every document in order.
func Split(c domain.Chunker, documents []domain.Document) ([]domain.Chunk, error) {
	var all []domain.Chunk
	for _, d := range documents {
		chunks, err := c.Chunk(d)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	return all, nil
}
