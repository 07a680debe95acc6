package retriever

import "context"

// Passage is one chunk of statement text owned by exactly one account.
// Passages are immutable; re-ingesting a source file supersedes its rows.
type Passage struct {
	Id        string
	AccountId string
	Address   string
	Content   string
	FilePath  string
	Position  int
	Embedding []float32
}

// Match pairs a passage with its cosine similarity to the query vector.
type Match struct {
	Passage
	Score float64
}

type Retriever interface {
	Insert(ctx context.Context, p Passage) error
	// Search returns account-scoped matches with Score >= threshold,
	// ordered by descending score then ascending position, truncated to
	// limit. An empty result is valid.
	Search(ctx context.Context, accountId string, vector []float32, threshold float64, limit int) ([]Match, error)
	// DeleteByFile removes every passage a prior ingest of filePath created.
	DeleteByFile(ctx context.Context, accountId string, filePath string) error
}
