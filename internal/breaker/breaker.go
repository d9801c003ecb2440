package breaker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"storefront-sync/internal/apperrors"
	"storefront-sync/internal/util"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Settings configure every breaker created by a Registry.
type Settings struct {
	// FailureThreshold is the number of failed calls within Window that trips the breaker.
	FailureThreshold uint32
	// Window is the closed-state period after which failure counts are cleared.
	Window time.Duration
	// Cooldown is how long the breaker stays open before allowing a probe.
	Cooldown time.Duration
}

// DefaultSettings trips after 5 failures in a minute and probes after 30s.
func DefaultSettings() Settings {
	return Settings{FailureThreshold: 5, Window: time.Minute, Cooldown: 30 * time.Second}
}

// Registry owns one breaker per logical operation. Breakers live as long as the
// registry and are never shared between operations.
type Registry struct {
	settings Settings
	logger   *zap.Logger
	metrics  *util.Metrics

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewRegistry(settings Settings, logger *zap.Logger, metrics *util.Metrics) *Registry {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = DefaultSettings().FailureThreshold
	}
	return &Registry{
		settings: settings,
		logger:   logger,
		metrics:  metrics,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Register creates breakers for the named operations up front.
func (r *Registry) Register(names ...string) {
	for _, name := range names {
		r.Get(name)
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	threshold := r.settings.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    r.settings.Window,
		Timeout:     r.settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures >= threshold
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.onStateChange(name, from, to)
		},
	})
	r.breakers[name] = cb
	if r.metrics != nil {
		r.metrics.BreakerState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))
	}
	return cb
}

// State returns the current state of the named breaker.
func (r *Registry) State(name string) gobreaker.State {
	return r.Get(name).State()
}

// States returns a snapshot of every registered breaker's state.
func (r *Registry) States() map[string]string {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = r.State(name).String()
	}
	return out
}

func (r *Registry) onStateChange(name string, from, to gobreaker.State) {
	switch to {
	case gobreaker.StateOpen:
		r.logger.Warn("Circuit breaker opened",
			zap.String("breaker", name),
			zap.String("from", from.String()))
	case gobreaker.StateClosed:
		r.logger.Info("Circuit breaker closed",
			zap.String("breaker", name),
			zap.String("from", from.String()))
	default:
		r.logger.Info("Circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}

	if r.metrics != nil {
		r.metrics.BreakerTransitions.WithLabelValues(name, to.String()).Inc()
		r.metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
	}
}

// Fire runs fn through the named breaker. Each call counts as one trial no
// matter how many attempts fn makes internally. While the breaker is open, or
// a half-open probe is already in flight, fn is not invoked and a
// *apperrors.BreakerOpenError is returned.
func Fire[T any](ctx context.Context, r *Registry, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	res, err := r.Get(name).Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, apperrors.NewBreakerOpenError(name)
		}
		return zero, err
	}

	if res == nil {
		return zero, nil
	}
	return res.(T), nil
}

// isSuccessful keeps caller-side outcomes from counting against the remote.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, apperrors.ErrNotFound)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
