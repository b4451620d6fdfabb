package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/ports"
)

// keywordRetriever turns document-level matches from the full-text index into
// chunk-level keyword candidates. Document selection is delegated to the
// index; chunk scoring is local: per query token, case-insensitive substring
// occurrence counts summed and normalized by token count, multiplied by the
// document's relevance score.
type keywordRetriever struct {
	searcher ports.DocumentSearcher
	chunks   ports.ChunkRepository
}

func (r *keywordRetriever) search(ctx context.Context, query string, limit int) ([]domain.RankedCandidate, error) {
	matches, err := r.searcher.SearchDocuments(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search full-text index: %w", err)
	}
	tokens := queryTokens(query)
	if len(tokens) == 0 || len(matches) == 0 {
		return nil, nil
	}

	out := make([]domain.RankedCandidate, 0, limit)
	for _, match := range matches {
		chunks, err := r.chunks.ListByDocument(ctx, match.ID)
		if err != nil {
			return nil, fmt.Errorf("load chunks for %s: %w", match.ID, err)
		}
		for _, chunk := range chunks {
			factor := termOverlapFactor(chunk.Text, tokens)
			if factor == 0 {
				continue
			}
			out = append(out, domain.RankedCandidate{
				FileID:     match.ID,
				Filename:   match.Filename,
				ChunkIndex: chunk.Index,
				Text:       chunk.Text,
				Score:      match.Score * factor,
				Source:     domain.SourceKeyword,
			})
		}
	}

	// Stable sort keeps original document order on ties.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i
	}
	return out, nil
}

func queryTokens(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// termOverlapFactor sums literal occurrences of each token in the chunk and
// normalizes by the token count. Zero means no token appears at all, which
// excludes the chunk.
func termOverlapFactor(text string, tokens []string) float64 {
	lower := strings.ToLower(text)
	occurrences := 0
	for _, token := range tokens {
		occurrences += strings.Count(lower, token)
	}
	if occurrences == 0 {
		return 0
	}
	return float64(occurrences) / float64(len(tokens))
}
