package embedding

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/akash3tsm7/cloud-based-personal-knowledge-manager/internal/core/domain"
)

// Config bounds batch size, input length and pacing for the coordinator.
type Config struct {
	BatchSize        int
	MaxInputChars    int
	RequestsPerSec   float64
	RateLimitRetries int
	RetryBaseBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:        12,
		MaxInputChars:    8192,
		RequestsPerSec:   2,
		RateLimitRetries: 5,
		RetryBaseBackoff: 500 * time.Millisecond,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c
	if out.BatchSize <= 0 {
		out.BatchSize = def.BatchSize
	}
	if out.MaxInputChars <= 0 {
		out.MaxInputChars = def.MaxInputChars
	}
	if out.RequestsPerSec <= 0 {
		out.RequestsPerSec = def.RequestsPerSec
	}
	if out.RateLimitRetries <= 0 {
		out.RateLimitRetries = def.RateLimitRetries
	}
	if out.RetryBaseBackoff <= 0 {
		out.RetryBaseBackoff = def.RetryBaseBackoff
	}
	return out
}

// provider is the raw batch call underneath the coordinator.
type provider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Coordinator slices chunk texts into provider-sized batches, paces them,
// retries rate-limited batches with bounded backoff, and keeps the output
// positionally aligned with the input. A batch that fails for any other
// reason degrades to nil rows instead of failing the whole document.
type Coordinator struct {
	cfg      Config
	provider provider
	cache    *Cache
	limiter  *rate.Limiter

	// observeBatch, when set, is called once per provider batch with
	// degraded=true for batches that ended up as nil rows.
	observeBatch func(degraded bool)
}

func NewCoordinator(cfg Config, p provider, cache *Cache) *Coordinator {
	cfg = cfg.normalize()
	return &Coordinator{
		cfg:      cfg,
		provider: p,
		cache:    cache,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
	}
}

// SetBatchObserver installs a per-batch outcome callback, typically a worker
// metrics counter. Must be called before the coordinator is shared.
func (c *Coordinator) SetBatchObserver(fn func(degraded bool)) {
	c.observeBatch = fn
}

func (c *Coordinator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	// Resolve cache hits and blank inputs up front; only the remainder
	// goes to the provider.
	pendingIdx := make([]int, 0, len(texts))
	pendingTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		text = truncate(text, c.cfg.MaxInputChars)
		if strings.TrimSpace(text) == "" {
			continue
		}
		if vector, ok := c.cache.Get(ctx, text); ok {
			out[i] = vector
			continue
		}
		pendingIdx = append(pendingIdx, i)
		pendingTexts = append(pendingTexts, text)
	}

	for start := 0; start < len(pendingTexts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(pendingTexts) {
			end = len(pendingTexts)
		}
		batch := pendingTexts[start:end]

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := c.embedWithBackoff(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// A spent rate-limit budget means the provider is throttling
			// the whole job; surface it instead of producing an
			// unindexed document with no error.
			if domain.IsKind(err, domain.ErrRateLimited) {
				return nil, err
			}
			// Leave this batch's rows nil; keyword retrieval still
			// covers the chunks.
			slog.Warn("embedding_batch_degraded", "batch_size", len(batch), "error", err)
			if c.observeBatch != nil {
				c.observeBatch(true)
			}
			continue
		}
		if c.observeBatch != nil {
			c.observeBatch(false)
		}
		for j, vector := range vectors {
			idx := pendingIdx[start+j]
			out[idx] = vector
			c.cache.Put(ctx, batch[j], vector)
		}
	}
	return out, nil
}

func (c *Coordinator) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	text = truncate(text, c.cfg.MaxInputChars)
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "embed query", errors.New("empty query text"))
	}
	if vector, ok := c.cache.Get(ctx, text); ok {
		return vector, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vectors, err := c.embedWithBackoff(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, domain.WrapError(domain.ErrProvider, "embed query", errors.New("provider returned no vector"))
	}
	c.cache.Put(ctx, text, vectors[0])
	return vectors[0], nil
}

// embedWithBackoff retries only rate-limited batches. The retry budget is
// finite: once it is spent the rate-limit error surfaces to the caller.
func (c *Coordinator) embedWithBackoff(ctx context.Context, batch []string) ([][]float32, error) {
	backoff := c.cfg.RetryBaseBackoff

	for attempt := 0; ; attempt++ {
		vectors, err := c.provider.EmbedTexts(ctx, batch)
		if err == nil {
			return vectors, nil
		}
		if !isRateLimited(err) {
			return nil, err
		}
		if attempt == c.cfg.RateLimitRetries {
			return nil, domain.WrapError(domain.ErrRateLimited, "embed batch", err)
		}

		slog.Warn("embedding_rate_limited",
			"attempt", attempt+1,
			"max_retries", c.cfg.RateLimitRetries,
			"backoff_ms", backoff.Milliseconds(),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func isRateLimited(err error) bool {
	if domain.IsKind(err, domain.ErrRateLimited) {
		return true
	}
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests
}

// truncate caps text at limit bytes without splitting a multi-byte rune.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	for len(cut) > 0 && !utf8.RuneStart(cut[len(cut)-1]) {
		cut = cut[:len(cut)-1]
	}
	if r, size := utf8.DecodeLastRuneInString(cut); r == utf8.RuneError && size == 1 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
