package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to a provider with a token bucket. Waiting
// honours the caller's context, so a request deadline also bounds the queue time.
type RateLimited struct {
	next    LLMProvider
	limiter *rate.Limiter
}

var _ LLMProvider = &RateLimited{}

// NewRateLimited wraps p. rps <= 0 disables limiting.
func NewRateLimited(p LLMProvider, rps float64, burst int) LLMProvider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limit: %w", err)
	}
	return r.next.Chat(ctx, history, options...)
}

func (r *RateLimited) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limit: %w", err)
	}
	return r.next.Generate(ctx, prompt, options...)
}
