package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
)

type searcherFake struct {
	matches []domain.DocumentMatch
	err     error
	calls   int
}

func (f *searcherFake) SearchDocuments(context.Context, string, int) ([]domain.DocumentMatch, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

type chunkRepoFake struct {
	byDocument map[string][]domain.Chunk
	replaced   map[string][]domain.Chunk
	deleted    []string
	calls      int
}

func (f *chunkRepoFake) ReplaceForDocument(_ context.Context, fileID string, chunks []domain.Chunk) error {
	if f.replaced == nil {
		f.replaced = make(map[string][]domain.Chunk)
	}
	f.replaced[fileID] = chunks
	return nil
}

func (f *chunkRepoFake) DeleteByDocument(_ context.Context, fileID string) error {
	f.deleted = append(f.deleted, fileID)
	return nil
}
func (f *chunkRepoFake) ListByDocument(_ context.Context, fileID string) ([]domain.Chunk, error) {
	f.calls++
	return f.byDocument[fileID], nil
}

func TestKeywordSearchScoresChunksLocally(t *testing.T) {
	searcher := &searcherFake{matches: []domain.DocumentMatch{
		{ID: "d1", Filename: "a.txt", Score: 2.0},
	}}
	chunks := &chunkRepoFake{byDocument: map[string][]domain.Chunk{
		"d1": {
			{Index: 0, Text: "the quick brown fox jumps over the quick fence"},
			{Index: 1, Text: "nothing matching here at all"},
		},
	}}
	r := &keywordRetriever{searcher: searcher, chunks: chunks}

	got, err := r.search(context.Background(), "quick fox", 10)
	if err != nil {
		t.Fatalf("search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate (second chunk has no token hit), got %d", len(got))
	}
	// "quick" appears twice, "fox" once: (2+1)/2 tokens * doc score 2.0 = 3.0
	if got[0].Score != 3.0 {
		t.Fatalf("expected score 3.0, got %v", got[0].Score)
	}
	if got[0].Source != domain.SourceKeyword || got[0].Rank != 0 {
		t.Fatalf("unexpected source/rank: %+v", got[0])
	}
}

func TestKeywordSearchOrdersByScoreAndTruncates(t *testing.T) {
	searcher := &searcherFake{matches: []domain.DocumentMatch{
		{ID: "d1", Filename: "a.txt", Score: 1.0},
		{ID: "d2", Filename: "b.txt", Score: 3.0},
	}}
	chunks := &chunkRepoFake{byDocument: map[string][]domain.Chunk{
		"d1": {{Index: 0, Text: "term term term"}},
		"d2": {{Index: 0, Text: "one term only"}, {Index: 1, Text: "term here and term there"}},
	}}
	r := &keywordRetriever{searcher: searcher, chunks: chunks}

	got, err := r.search(context.Background(), "term", 2)
	if err != nil {
		t.Fatalf("search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
	// d2/1: 3.0*2=6, d1/0: 1.0*3=3, d2/0: 3.0*1=3; tie broken by document order.
	if got[0].FileID != "d2" || got[0].ChunkIndex != 1 {
		t.Fatalf("expected d2/1 first, got %s/%d", got[0].FileID, got[0].ChunkIndex)
	}
	if got[1].FileID != "d1" {
		t.Fatalf("expected d1 second on tie, got %s", got[1].FileID)
	}
	if got[0].Rank != 0 || got[1].Rank != 1 {
		t.Fatalf("ranks not assigned by final position: %+v", got)
	}
}

func TestKeywordSearchCaseInsensitive(t *testing.T) {
	searcher := &searcherFake{matches: []domain.DocumentMatch{{ID: "d1", Filename: "a.txt", Score: 1.0}}}
	chunks := &chunkRepoFake{byDocument: map[string][]domain.Chunk{
		"d1": {{Index: 0, Text: "Quarterly REPORT for the board"}},
	}}
	r := &keywordRetriever{searcher: searcher, chunks: chunks}

	got, err := r.search(context.Background(), "report", 5)
	if err != nil {
		t.Fatalf("search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected case-insensitive match, got %d candidates", len(got))
	}
}

func TestKeywordSearchPropagatesIndexError(t *testing.T) {
	r := &keywordRetriever{searcher: &searcherFake{err: errors.New("index down")}, chunks: &chunkRepoFake{}}
	if _, err := r.search(context.Background(), "q", 5); err == nil {
		t.Fatalf("expected error")
	}
}
