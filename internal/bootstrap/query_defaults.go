package bootstrap

import (
	"context"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/config"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/ports"
)

// queryDefaults fills unset request options with the deployment-configured
// retrieval defaults before the pipeline normalizes them.
type queryDefaults struct {
	inner    ports.QueryService
	defaults domain.QueryOptions
}

func withQueryDefaults(inner ports.QueryService, cfg config.Config) ports.QueryService {
	return &queryDefaults{
		inner: inner,
		defaults: domain.QueryOptions{
			TopK:             cfg.QueryTopK,
			MinScore:         cfg.QueryMinScore,
			MaxContextLength: cfg.QueryMaxContextLength,
			Mode:             domain.SearchMode(cfg.QueryMode),
			RRFConstant:      cfg.QueryRRFConstant,
			DiversityPenalty: cfg.QueryDiversityPenalty,
		},
	}
}

func (q *queryDefaults) Answer(ctx context.Context, question string, opts domain.QueryOptions) (*domain.Answer, error) {
	return q.inner.Answer(ctx, question, q.apply(opts))
}

func (q *queryDefaults) StreamAnswer(ctx context.Context, question string, opts domain.QueryOptions) (<-chan domain.AnswerFragment, *domain.Answer, error) {
	return q.inner.StreamAnswer(ctx, question, q.apply(opts))
}

func (q *queryDefaults) apply(opts domain.QueryOptions) domain.QueryOptions {
	out := opts
	if out.TopK <= 0 {
		out.TopK = q.defaults.TopK
	}
	if out.MinScore <= 0 {
		out.MinScore = q.defaults.MinScore
	}
	if out.MaxContextLength <= 0 {
		out.MaxContextLength = q.defaults.MaxContextLength
	}
	if out.Mode == "" {
		out.Mode = q.defaults.Mode
	}
	if out.RRFConstant <= 0 {
		out.RRFConstant = q.defaults.RRFConstant
	}
	if out.DiversityPenalty <= 0 {
		out.DiversityPenalty = q.defaults.DiversityPenalty
	}
	return out
}
