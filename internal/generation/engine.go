package generation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"PostForge/internal/domain"
)

const defaultMaxAttempts = 2

// Engine walks an ordered strategy chain and always yields a post. The
// template strategy is appended as the last link and cannot fail.
type Engine struct {
	strategies  []Strategy
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithMaxAttempts caps calls per strategy, counting the first one.
func WithMaxAttempts(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithBackoff sets the pause between retries of the same strategy.
func WithBackoff(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d >= 0 {
			e.backoff = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds an engine over the given model strategies.
func NewEngine(strategies []Strategy, opts ...EngineOption) *Engine {
	chain := make([]Strategy, 0, len(strategies)+1)
	chain = append(chain, strategies...)
	chain = append(chain, TemplateStrategy{})

	e := &Engine{
		strategies:  chain,
		maxAttempts: defaultMaxAttempts,
		backoff:     time.Second,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate tries each strategy in order. Transient errors are retried on
// the same strategy; unusable replies and other errors move to the next
// one. The template closes the chain; a done ctx jumps straight to it.
func (e *Engine) Generate(ctx context.Context, req Request) domain.GeneratedPost {
	log := e.logger.With(zap.String("platform", string(req.Platform)))

	for _, strategy := range e.strategies {
		for attempt := 1; attempt <= e.maxAttempts; attempt++ {
			if ctx.Err() != nil {
				log.Warn("generation interrupted, using template", zap.Error(ctx.Err()))
				return e.Fallback(ctx, req)
			}

			if _, last := strategy.(TemplateStrategy); last && len(e.strategies) > 1 {
				log.Info("strategy chain exhausted, using template")
			}
			post, err := strategy.Attempt(ctx, req)
			if err == nil {
				log.Debug("post generated",
					zap.String("strategy", strategy.Name()),
					zap.Int("attempt", attempt))
				return post
			}

			transient := IsTransient(err)
			log.Warn("generation attempt failed",
				zap.String("strategy", strategy.Name()),
				zap.Int("attempt", attempt),
				zap.Bool("transient", transient),
				zap.Error(err))

			if !transient || errors.Is(err, context.Canceled) {
				break
			}
			if attempt < e.maxAttempts && !e.sleep(ctx) {
				break
			}
		}
	}

	return e.Fallback(ctx, req)
}

// Fallback composes the deterministic template post.
func (e *Engine) Fallback(_ context.Context, req Request) domain.GeneratedPost {
	return TemplateStrategy{}.Compose(req)
}

func (e *Engine) sleep(ctx context.Context) bool {
	if e.backoff <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(e.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
