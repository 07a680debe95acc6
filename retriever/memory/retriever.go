// Package memory is an in-process retriever used by tests and local runs.
package memory

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/finrelay/concierge/retriever"
)

type memoryRetriever struct {
	passages []retriever.Passage
	nextId   int
	mtx      sync.RWMutex
}

func (r *memoryRetriever) Insert(ctx context.Context, p retriever.Passage) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.nextId++
	p.Id = strconv.Itoa(r.nextId)
	r.passages = append(r.passages, p)

	return nil
}

func (r *memoryRetriever) Search(ctx context.Context, accountId string, vector []float32, threshold float64, limit int) ([]retriever.Match, error) {
	if limit < 1 {
		return nil, nil
	}

	r.mtx.RLock()
	defer r.mtx.RUnlock()

	var matches []retriever.Match
	for _, p := range r.passages {
		if p.AccountId != accountId {
			continue
		}
		score := cosineSimilarity(vector, p.Embedding)
		if score < threshold {
			continue
		}
		matches = append(matches, retriever.Match{Passage: p, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Position < matches[j].Position
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

func (r *memoryRetriever) DeleteByFile(ctx context.Context, accountId string, filePath string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	kept := r.passages[:0]
	for _, p := range r.passages {
		if p.AccountId == accountId && p.FilePath == filePath {
			continue
		}
		kept = append(kept, p)
	}
	r.passages = kept

	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func NewRetriever(opts ...retriever.Option) retriever.Retriever {
	return &memoryRetriever{}
}
