package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/ports"
)

// NoRelevantContentAnswer is returned when retrieval yields nothing. It is a
// normal terminal state, not an error, and the generator is never invoked
// for it.
const NoRelevantContentAnswer = "I could not find relevant information about that in your documents."

// QueryUseCase sequences retrieval per search mode, fuses the keyword and
// vector signals, assembles a bounded context, and delegates answer
// generation.
type QueryUseCase struct {
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	keyword   *keywordRetriever
	generator ports.AnswerGenerator
}

func NewQueryUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	searcher ports.DocumentSearcher,
	chunks ports.ChunkRepository,
	generator ports.AnswerGenerator,
) *QueryUseCase {
	return &QueryUseCase{
		embedder:  embedder,
		vectorDB:  vectorDB,
		keyword:   &keywordRetriever{searcher: searcher, chunks: chunks},
		generator: generator,
	}
}

func (uc *QueryUseCase) Answer(ctx context.Context, question string, opts domain.QueryOptions) (*domain.Answer, error) {
	results, meta, err := uc.retrieve(ctx, question, opts)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &domain.Answer{Text: NoRelevantContentAnswer, Sources: []domain.FusedResult{}, Retrieval: meta}, nil
	}

	opts = opts.Normalize()
	contextText := assembleContext(results, opts.MaxContextLength)
	text, err := uc.generator.GenerateAnswer(ctx, question, contextText, meta)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &domain.Answer{Text: text, Sources: results, Retrieval: meta}, nil
}

// StreamAnswer runs the same retrieval pipeline, then exposes the generator's
// incremental output as a fragment channel. The returned answer carries the
// sources and retrieval metadata; its text arrives through the channel.
func (uc *QueryUseCase) StreamAnswer(ctx context.Context, question string, opts domain.QueryOptions) (<-chan domain.AnswerFragment, *domain.Answer, error) {
	results, meta, err := uc.retrieve(ctx, question, opts)
	if err != nil {
		return nil, nil, err
	}
	answer := &domain.Answer{Sources: results, Retrieval: meta}
	if answer.Sources == nil {
		answer.Sources = []domain.FusedResult{}
	}

	if len(results) == 0 {
		fragments := make(chan domain.AnswerFragment, 2)
		fragments <- domain.AnswerFragment{Text: NoRelevantContentAnswer}
		fragments <- domain.AnswerFragment{Done: true}
		close(fragments)
		return fragments, answer, nil
	}

	opts = opts.Normalize()
	contextText := assembleContext(results, opts.MaxContextLength)
	fragments, err := uc.generator.StreamAnswer(ctx, question, contextText, meta)
	if err != nil {
		return nil, nil, fmt.Errorf("stream answer: %w", err)
	}
	return fragments, answer, nil
}

// retrieve validates the question before any I/O, then runs the configured
// retrieval mode. Hybrid and weighted modes cast a wider net (2x topK per
// signal) and fan out both signals concurrently, joining before fusion.
func (uc *QueryUseCase) retrieve(ctx context.Context, question string, opts domain.QueryOptions) ([]domain.FusedResult, domain.RetrievalMetadata, error) {
	opts = opts.Normalize()
	meta := domain.RetrievalMetadata{Files: []string{}, Mode: opts.Mode}

	if strings.TrimSpace(question) == "" {
		return nil, meta, domain.WrapError(domain.ErrInvalidInput, "validate question", errors.New("question is empty"))
	}

	var results []domain.FusedResult
	switch opts.Mode {
	case domain.ModeKeyword:
		candidates, err := uc.keyword.search(ctx, question, opts.TopK)
		if err != nil {
			return nil, meta, err
		}
		results = singleSignalResults(candidates)

	case domain.ModeVector:
		candidates, err := uc.vectorSearch(ctx, question, opts.TopK)
		if err != nil {
			return nil, meta, err
		}
		candidates = filterByScore(candidates, opts.MinScore)
		results = singleSignalResults(candidates)

	case domain.ModeHybrid, domain.ModeWeighted:
		var keywordList, vectorList []domain.RankedCandidate
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			keywordList, err = uc.keyword.search(gctx, question, 2*opts.TopK)
			return err
		})
		g.Go(func() error {
			var err error
			vectorList, err = uc.vectorSearch(gctx, question, 2*opts.TopK)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, meta, err
		}

		if opts.Mode == domain.ModeWeighted {
			results = fuseWeighted(keywordList, vectorList, opts.KeywordWeight, opts.VectorWeight)
		} else {
			results = fuseRRF([][]domain.RankedCandidate{keywordList, vectorList}, opts.RRFConstant)
		}
		results = applyDiversityPenalty(results, opts.DiversityPenalty)
		results = trimResults(results, opts.TopK)

	default:
		return nil, meta, domain.WrapError(domain.ErrInvalidInput, "validate search mode", fmt.Errorf("unknown mode %q", opts.Mode))
	}

	meta = buildRetrievalMetadata(results, opts.Mode)
	return results, meta, nil
}

func (uc *QueryUseCase) vectorSearch(ctx context.Context, question string, limit int) ([]domain.RankedCandidate, error) {
	queryVector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	candidates, err := uc.vectorDB.Search(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("search vector index: %w", err)
	}
	for i := range candidates {
		candidates[i].Source = domain.SourceVector
		candidates[i].Rank = i
	}
	return candidates, nil
}

func filterByScore(candidates []domain.RankedCandidate, minScore float64) []domain.RankedCandidate {
	out := candidates[:0]
	for _, c := range candidates {
		if c.Score >= minScore {
			out = append(out, c)
		}
	}
	for i := range out {
		out[i].Rank = i
	}
	return out
}

// singleSignalResults maps one signal's candidates straight to fused results,
// keeping the signal's own ordering and scores.
func singleSignalResults(candidates []domain.RankedCandidate) []domain.FusedResult {
	out := make([]domain.FusedResult, 0, len(candidates))
	for i, c := range candidates {
		result := domain.FusedResult{
			FileID:     c.FileID,
			Filename:   c.Filename,
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
			FusedScore: c.Score,
			FusionRank: i + 1,
			Sources:    []domain.SourceRecord{{Source: c.Source, Rank: c.Rank, Score: c.Score}},
		}
		if c.Source == domain.SourceVector {
			score := c.Score
			result.VectorScore = &score
		}
		out = append(out, result)
	}
	return out
}

func buildRetrievalMetadata(results []domain.FusedResult, mode domain.SearchMode) domain.RetrievalMetadata {
	seen := make(map[string]struct{}, len(results))
	files := make([]string, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.Filename]; ok {
			continue
		}
		seen[r.Filename] = struct{}{}
		files = append(files, r.Filename)
	}
	sort.Strings(files)
	return domain.RetrievalMetadata{
		ChunksUsed: len(results),
		FileCount:  len(files),
		Files:      files,
		Mode:       mode,
	}
}
