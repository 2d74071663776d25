package llm

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"memory-engine/pkg/retry"
)

// ResilientProvider wraps a Provider with the retry/backoff policy spec
// §5 mandates for LLM calls (3 attempts, 1s->10s) and a circuit breaker
// that trips after a run of failures so a degraded upstream fails fast
// instead of queuing retries behind retries. Grounded on the teacher's
// gobreaker-based HTTP circuit breaker middleware, generalized from an
// http.Handler decorator to a Provider decorator.
type ResilientProvider struct {
	inner  Provider
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewResilientProvider wraps inner with retry and circuit-breaking.
func NewResilientProvider(inner Provider, name string, logger *zap.Logger) *ResilientProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm circuit breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &ResilientProvider{inner: inner, cb: cb, logger: logger}
}

func (p *ResilientProvider) IsAvailable() bool { return p.inner.IsAvailable() }

func (p *ResilientProvider) Complete(ctx context.Context, prompt string, options CompletionOptions) (string, error) {
	var result string
	_, err := p.cb.Execute(func() (any, error) {
		return nil, retry.Do(ctx, retry.LlmDefault(), func() error {
			out, err := p.inner.Complete(ctx, prompt, options)
			if err != nil {
				return err
			}
			result = out
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
