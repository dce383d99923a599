package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"bookkeeping-go/internal/apperr"
	"bookkeeping-go/internal/metrics"
)

type ResilientConfig struct {
	// Timeout bounds every call. Zero disables it.
	Timeout time.Duration
	// MaxFailures consecutive failures open the circuit.
	MaxFailures uint32
	// Cooldown is how long the circuit stays open before probing again.
	Cooldown time.Duration
}

// Resilient wraps a Provider with a per-call timeout and a circuit breaker.
// Every failure it returns is classified as ExternalServiceError.
type Resilient struct {
	p       Provider
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.Collector
	log     zerolog.Logger
}

func NewResilient(p Provider, cfg ResilientConfig, m metrics.Collector, log zerolog.Logger) *Resilient {
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	log = log.With().Str("component", "ai").Str("provider", p.Name()).Logger()

	r := &Resilient{p: p, timeout: cfg.Timeout, metrics: m, log: log}
	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")

			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			m.RecordCircuitState(name, state)
		},
	})
	return r
}

func (r *Resilient) Name() string { return r.p.Name() }

func (r *Resilient) Complete(ctx context.Context, req Request) (string, error) {
	out, err := r.call(ctx, "complete", func(ctx context.Context) (interface{}, error) {
		return r.p.Complete(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := r.call(ctx, "embed", func(ctx context.Context) (interface{}, error) {
		return r.p.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return out.([]float32), nil
}

func (r *Resilient) call(ctx context.Context, op string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	start := time.Now()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	out, err := r.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	r.metrics.RecordAIRequest(r.p.Name(), op, err == nil, time.Since(start))
	if err != nil {
		r.log.Warn().Err(err).Str("operation", op).Dur("duration", time.Since(start)).Msg("ai call failed")
		return nil, apperr.Wrap(apperr.ExternalServiceError, err)
	}
	return out, nil
}
