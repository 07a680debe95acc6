package memory

import (
	"context"
	"testing"

	"github.com/finrelay/concierge/retriever"
)

func seed(t *testing.T, r retriever.Retriever, passages ...retriever.Passage) {
	t.Helper()
	for _, p := range passages {
		if err := r.Insert(context.Background(), p); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
}

func TestSearchScopedToAccount(t *testing.T) {
	r := NewRetriever()
	seed(t, r,
		retriever.Passage{AccountId: "acct-a", Content: "a's balance", Embedding: []float32{1, 0}},
		retriever.Passage{AccountId: "acct-b", Content: "b's balance", Embedding: []float32{1, 0}},
	)

	matches, err := r.Search(context.Background(), "acct-a", []float32{1, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].AccountId != "acct-a" {
		t.Errorf("passage leaked from another account: %+v", matches[0])
	}
}

func TestSearchThresholdCutoff(t *testing.T) {
	r := NewRetriever()
	seed(t, r,
		retriever.Passage{AccountId: "acct", Content: "close", Embedding: []float32{1, 0}},
		retriever.Passage{AccountId: "acct", Content: "far", Embedding: []float32{0, 1}},
	)

	matches, err := r.Search(context.Background(), "acct", []float32{1, 0}, 0.6, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if len(matches) != 1 || matches[0].Content != "close" {
		t.Errorf("threshold not applied: %+v", matches)
	}
}

func TestSearchOrderingDeterministic(t *testing.T) {
	r := NewRetriever()
	seed(t, r,
		retriever.Passage{AccountId: "acct", Content: "later tie", Position: 5, Embedding: []float32{1, 0}},
		retriever.Passage{AccountId: "acct", Content: "earlier tie", Position: 2, Embedding: []float32{1, 0}},
		retriever.Passage{AccountId: "acct", Content: "weaker", Position: 0, Embedding: []float32{0.8, 0.6}},
	)

	first, err := r.Search(context.Background(), "acct", []float32{1, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	for i := 1; i < len(first); i++ {
		if first[i].Score > first[i-1].Score {
			t.Errorf("scores not monotonically non-increasing: %v then %v", first[i-1].Score, first[i].Score)
		}
	}

	if first[0].Content != "earlier tie" || first[1].Content != "later tie" {
		t.Errorf("tie not broken by position: %+v", first)
	}

	second, err := r.Search(context.Background(), "acct", []float32{1, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	for i := range first {
		if first[i].Content != second[i].Content {
			t.Fatalf("search not deterministic at %d: %q vs %q", i, first[i].Content, second[i].Content)
		}
	}
}

func TestSearchLimit(t *testing.T) {
	r := NewRetriever()
	for i := 0; i < 5; i++ {
		seed(t, r, retriever.Passage{AccountId: "acct", Content: "p", Position: i, Embedding: []float32{1, 0}})
	}

	matches, err := r.Search(context.Background(), "acct", []float32{1, 0}, 0.5, 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if len(matches) != 3 {
		t.Errorf("limit not applied: got %d", len(matches))
	}
}

func TestSearchEmptyResultIsValid(t *testing.T) {
	r := NewRetriever()

	matches, err := r.Search(context.Background(), "acct", []float32{1, 0}, 0.6, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestDeleteByFileSupersedes(t *testing.T) {
	r := NewRetriever()
	seed(t, r,
		retriever.Passage{AccountId: "acct", Content: "old", FilePath: "acct/jan.pdf", Embedding: []float32{1, 0}},
		retriever.Passage{AccountId: "acct", Content: "keep", FilePath: "acct/feb.pdf", Embedding: []float32{1, 0}},
	)

	if err := r.DeleteByFile(context.Background(), "acct", "acct/jan.pdf"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	matches, err := r.Search(context.Background(), "acct", []float32{1, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if len(matches) != 1 || matches[0].Content != "keep" {
		t.Errorf("supersede removed the wrong rows: %+v", matches)
	}
}
