package usecase

import (
	"fmt"
	"sort"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
)

// fuseRRF merges ranked candidate lists with Reciprocal Rank Fusion: each
// list contributes 1/(k+rank+1) for the item at 0-based rank. Only rank
// position matters, so heterogeneous score scales (keyword relevance vs
// cosine similarity) fuse cleanly. Items are identified across lists by
// (fileID, chunkIndex); first-seen order is preserved so ties sort
// deterministically.
func fuseRRF(lists [][]domain.RankedCandidate, rrfConstant int) []domain.FusedResult {
	if rrfConstant <= 0 {
		rrfConstant = 60
	}

	index := make(map[string]int, 16)
	out := make([]domain.FusedResult, 0, 16)

	for _, list := range lists {
		for rank, candidate := range list {
			key := fusionKey(candidate.FileID, candidate.ChunkIndex)
			pos, seen := index[key]
			if !seen {
				pos = len(out)
				index[key] = pos
				out = append(out, domain.FusedResult{
					FileID:     candidate.FileID,
					Filename:   candidate.Filename,
					ChunkIndex: candidate.ChunkIndex,
					Text:       candidate.Text,
				})
			}
			result := &out[pos]
			if result.Text == "" && candidate.Text != "" {
				result.Text = candidate.Text
			}
			result.FusedScore += 1.0 / float64(rrfConstant+rank+1)
			result.Sources = append(result.Sources, domain.SourceRecord{
				Source: candidate.Source,
				Rank:   rank,
				Score:  candidate.Score,
			})
			if candidate.Source == domain.SourceVector {
				score := candidate.Score
				result.VectorScore = &score
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FusedScore > out[j].FusedScore
	})
	assignFusionRanks(out)
	return out
}

// applyDiversityPenalty decays the score of repeated appearances of the same
// file: the n-th occurrence (0-indexed) in the current ranking is multiplied
// by penalty^n, then the list is re-sorted. This suppresses single-document
// dominance in the top-K without hard-excluding any source.
func applyDiversityPenalty(results []domain.FusedResult, penalty float64) []domain.FusedResult {
	if penalty <= 0 || penalty >= 1 || len(results) == 0 {
		assignFusionRanks(results)
		return results
	}

	seen := make(map[string]int, len(results))
	out := make([]domain.FusedResult, len(results))
	copy(out, results)
	for i := range out {
		n := seen[out[i].FileID]
		seen[out[i].FileID] = n + 1
		for j := 0; j < n; j++ {
			out[i].FusedScore *= penalty
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FusedScore > out[j].FusedScore
	})
	assignFusionRanks(out)
	return out
}

// fuseWeighted blends the two signals linearly after normalizing each list's
// scores by its own maximum. Used only when the caller explicitly requests
// weighted mode instead of RRF.
func fuseWeighted(keyword, vector []domain.RankedCandidate, keywordWeight, vectorWeight float64) []domain.FusedResult {
	maxKeyword := maxScore(keyword)
	maxVector := maxScore(vector)

	index := make(map[string]int, len(keyword)+len(vector))
	out := make([]domain.FusedResult, 0, len(keyword)+len(vector))

	accumulate := func(list []domain.RankedCandidate, max, weight float64) {
		for rank, candidate := range list {
			key := fusionKey(candidate.FileID, candidate.ChunkIndex)
			pos, seen := index[key]
			if !seen {
				pos = len(out)
				index[key] = pos
				out = append(out, domain.FusedResult{
					FileID:     candidate.FileID,
					Filename:   candidate.Filename,
					ChunkIndex: candidate.ChunkIndex,
					Text:       candidate.Text,
				})
			}
			result := &out[pos]
			normalized := 0.0
			if max > 0 {
				normalized = candidate.Score / max
			}
			result.FusedScore += weight * normalized
			result.Sources = append(result.Sources, domain.SourceRecord{
				Source: candidate.Source,
				Rank:   rank,
				Score:  candidate.Score,
			})
			if candidate.Source == domain.SourceVector {
				score := candidate.Score
				result.VectorScore = &score
			}
		}
	}

	accumulate(keyword, maxKeyword, keywordWeight)
	accumulate(vector, maxVector, vectorWeight)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FusedScore > out[j].FusedScore
	})
	assignFusionRanks(out)
	return out
}

func assignFusionRanks(results []domain.FusedResult) {
	for i := range results {
		results[i].FusionRank = i + 1
	}
}

func trimResults(results []domain.FusedResult, limit int) []domain.FusedResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}

func fusionKey(fileID string, chunkIndex int) string {
	return fmt.Sprintf("%s:%d", fileID, chunkIndex)
}

func maxScore(list []domain.RankedCandidate) float64 {
	max := 0.0
	for _, c := range list {
		if c.Score > max {
			max = c.Score
		}
	}
	return max
}
