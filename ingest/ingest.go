// Package ingest turns an uploaded statement into retrievable passages.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/finrelay/concierge/embedder"
	"github.com/finrelay/concierge/retriever"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// Parser extracts plain text from an uploaded statement document.
type Parser interface {
	Parse(ctx context.Context, data []byte, mimeType string) (string, error)
}

type Ingestor struct {
	parser    Parser
	embedder  embedder.Embedder
	store     retriever.Retriever
	chunkSize int
	overlap   int
}

// IngestStatement parses, chunks, embeds and stores one statement file.
// Prior passages from the same file are superseded, never mutated in place.
// Returns the number of passages created.
func (i *Ingestor) IngestStatement(ctx context.Context, accountId string, address string, filePath string, data []byte, mimeType string) (int, error) {
	text, err := i.parser.Parse(ctx, data, mimeType)
	if err != nil {
		return 0, fmt.Errorf("parse statement: %w", err)
	}

	chunks := SplitText(text, i.chunkSize, i.overlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("statement %s produced no text", filePath)
	}

	if err := i.store.DeleteByFile(ctx, accountId, filePath); err != nil {
		return 0, fmt.Errorf("supersede prior passages: %w", err)
	}

	for pos, chunk := range chunks {
		vec, err := i.embedder.Embed(ctx, chunk)
		if err != nil {
			return pos, fmt.Errorf("embed chunk %d: %w", pos, err)
		}

		passage := retriever.Passage{
			AccountId: accountId,
			Address:   address,
			Content:   chunk,
			FilePath:  filePath,
			Position:  pos,
			Embedding: vec,
		}

		if err := i.store.Insert(ctx, passage); err != nil {
			return pos, fmt.Errorf("store chunk %d: %w", pos, err)
		}
	}

	return len(chunks), nil
}

// SplitText slides a fixed-size window over the text with the given rune
// overlap between consecutive chunks.
func SplitText(text string, size int, overlap int) []string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	if size <= 0 {
		size = DefaultChunkSize
	}

	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(runes); start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}

func New(p Parser, e embedder.Embedder, store retriever.Retriever, chunkSize int, overlap int) *Ingestor {
	if p == nil {
		panic("parser is required")
	}

	if e == nil {
		panic("embedder is required")
	}

	if store == nil {
		panic("retriever is required")
	}

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
	}

	return &Ingestor{
		parser:    p,
		embedder:  e,
		store:     store,
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}
