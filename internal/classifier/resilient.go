package classifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nexus-chain/nexus/internal/intent"
	"github.com/nexus-chain/nexus/internal/logging"
)

// ResilientOptions tunes the fault handling around a classifier.
type ResilientOptions struct {
	Name             string
	Timeout          time.Duration
	MaxFailures      uint32
	OpenDuration     time.Duration
	HalfOpenRequests uint32
}

// DefaultResilientOptions trips the breaker after five consecutive failures and
// probes again after thirty seconds.
func DefaultResilientOptions() ResilientOptions {
	return ResilientOptions{
		Name:             "classifier",
		Timeout:          15 * time.Second,
		MaxFailures:      5,
		OpenDuration:     30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// Resilient guards a classifier with a per-call timeout and a circuit breaker.
// Every failure, including an open breaker, yields FallbackPlan.
type Resilient struct {
	next    Classifier
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewResilient wraps next.
func NewResilient(next Classifier, opts ResilientOptions, logger *slog.Logger) *Resilient {
	def := DefaultResilientOptions()
	if opts.Name == "" {
		opts.Name = def.Name
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = def.MaxFailures
	}
	if opts.OpenDuration <= 0 {
		opts.OpenDuration = def.OpenDuration
	}
	if opts.HalfOpenRequests == 0 {
		opts.HalfOpenRequests = def.HalfOpenRequests
	}

	log := logging.Component(logger, "classifier")
	maxFailures := opts.MaxFailures
	settings := gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.HalfOpenRequests,
		Timeout:     opts.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Resilient{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: opts.Timeout,
		logger:  log,
	}
}

// Parse classifies text and never fails.
func (r *Resilient) Parse(ctx context.Context, text string) Plan {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		callCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		return r.next.Classify(callCtx, text)
	})
	if err != nil {
		r.logger.Error("classification failed, using fallback", slog.Any("error", err))
		return FallbackPlan()
	}

	plan := result.(Plan)
	if plan.Intents == nil {
		plan.Intents = []intent.Intent{}
	}
	return plan
}

// Classify satisfies Classifier; the error is always nil.
func (r *Resilient) Classify(ctx context.Context, text string) (Plan, error) {
	return r.Parse(ctx, text), nil
}

// State reports the breaker state: closed, half-open or open.
func (r *Resilient) State() string {
	return r.breaker.State().String()
}
