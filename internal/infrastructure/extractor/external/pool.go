package external

import "context"

// Pool bounds how many external extraction processes run at once. OCR and
// office-format converters are memory-heavy, so the bound is explicit
// rather than one-per-request.
type Pool struct {
	slots chan struct{}
}

func NewPool(concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Pool{slots: make(chan struct{}, concurrency)}
}

// Run executes job once a slot is free. Waiting is cancellable; the job
// itself is responsible for honoring its context.
func (p *Pool) Run(ctx context.Context, job func(context.Context) error) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()
	return job(ctx)
}
