// Package resilience makes a single call to an unreliable HTTP dependency
// reliable enough, and fails fast once the dependency is known to be
// unhealthy.
//
// Policies are composed outermost first:
//
//	total timeout -> circuit breaker -> retry (exponential backoff + jitter) -> per-attempt timeout
//
// The breaker sees one outcome per logical call, after retries are exhausted.
// A Pipeline is built once per protected dependency and shared by every
// request; the breaker inside it is the only cross-request state.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-registration/internal/pkg/metrics"
)

const maxPayload = 1 << 20

// Policy holds the knobs of the four layers.
type Policy struct {
	TotalTimeout     time.Duration
	AttemptTimeout   time.Duration
	FailureThreshold uint32
	BreakDuration    time.Duration
	MaxRetries       int
	BackoffBase      time.Duration
	MaxJitter        time.Duration
}

// DefaultPolicy: 10s total, 5s per attempt, open after 3 consecutive
// failures for 15s, 3 retries waiting ~2s, ~4s, ~8s.
func DefaultPolicy() Policy {
	return Policy{
		TotalTimeout:     10 * time.Second,
		AttemptTimeout:   5 * time.Second,
		FailureThreshold: 3,
		BreakDuration:    15 * time.Second,
		MaxRetries:       3,
		BackoffBase:      time.Second,
		MaxJitter:        500 * time.Millisecond,
	}
}

// Call performs one network attempt. It must honor ctx.
type Call func(ctx context.Context) (*http.Response, error)

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// withStateChangeHook observes breaker transitions. The hook runs while the
// breaker is locked and must return quickly.
func withStateChangeHook(fn func(dependency string, from, to State)) Option {
	return func(p *Pipeline) { p.onStateChange = fn }
}

type Pipeline struct {
	name    string
	policy  Policy
	breaker *breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	onStateChange func(dependency string, from, to State)
	jitter        func(time.Duration) time.Duration
	newTimer      func() backoff.Timer
}

func NewPipeline(name string, policy Policy, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:   name,
		policy: policy,
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/jcmexdev/order-registration/internal/resilience"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.breaker = newBreaker(name, policy.FailureThreshold, policy.BreakDuration, p.stateChanged)
	return p
}

func (p *Pipeline) Name() string { return p.name }

// State reports the current circuit state of the dependency.
func (p *Pipeline) State() State { return p.breaker.state() }

// Execute runs call through every layer. It returns a Result when the
// dependency answered 2xx or 404, a *Failure when it did not, and the
// caller's own context error when the caller gave up first.
func (p *Pipeline) Execute(ctx context.Context, call Call) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "resilience.Execute",
		trace.WithAttributes(attribute.String("dependency", p.name)))
	defer span.End()

	totalCtx, cancel := context.WithTimeout(ctx, p.policy.TotalTimeout)
	defer cancel()

	res, err := p.breaker.execute(func() (Result, error) {
		res, err := p.retry(totalCtx, call)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if totalCtx.Err() != nil {
			p.logger.ErrorContext(ctx, "external call exceeded total timeout",
				"dependency", p.name, "timeout", p.policy.TotalTimeout)
			return Result{}, &Failure{
				Kind:      TimeoutExceeded,
				Cause:     fmt.Errorf("total timeout %s: %w", p.policy.TotalTimeout, totalCtx.Err()),
				transient: true,
			}
		}
		return Result{}, err
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.String("result", res.Status.String()))
	return res, nil
}

func (p *Pipeline) retry(ctx context.Context, call Call) (Result, error) {
	var (
		res     Result
		attempt int
	)

	op := func() error {
		attempt++
		r, err := p.attempt(ctx, call, attempt)
		if err != nil {
			var f *Failure
			if errors.As(err, &f) && f.Transient() {
				return err
			}
			return backoff.Permanent(err)
		}
		res = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		p.metrics.Retry(p.name)
		p.logger.WarnContext(ctx, "retrying external call",
			"dependency", p.name,
			"retry", attempt,
			"max_retries", p.policy.MaxRetries,
			"wait", wait,
			"error", err,
		)
	}

	schedule := newExponentialJitter(p.policy.BackoffBase, p.policy.MaxJitter, p.jitter)
	b := backoff.WithContext(backoff.WithMaxRetries(schedule, uint64(p.policy.MaxRetries)), ctx)

	var timer backoff.Timer
	if p.newTimer != nil {
		timer = p.newTimer()
	}

	if err := backoff.RetryNotifyWithTimer(op, b, notify, timer); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (p *Pipeline) attempt(ctx context.Context, call Call, n int) (Result, error) {
	actx, cancel := context.WithTimeout(ctx, p.policy.AttemptTimeout)
	defer cancel()

	resp, err := call(actx)
	if err != nil {
		return Result{}, p.classifyError(ctx, actx, n, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return Result{}, p.classifyError(ctx, actx, n, err)
	}

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		p.metrics.Attempt(p.name, "success")
		return Result{Status: StatusSuccess, StatusCode: code, Payload: body}, nil
	case code == http.StatusNotFound:
		p.metrics.Attempt(p.name, "not_found")
		return Result{Status: StatusNotFound, StatusCode: code, Payload: body}, nil
	default:
		p.metrics.Attempt(p.name, fmt.Sprintf("%dxx", code/100))
		return Result{}, statusFailure(code)
	}
}

func (p *Pipeline) classifyError(ctx, actx context.Context, n int, err error) error {
	if ctx.Err() != nil {
		// the outer budget or the caller ended the call; not retryable
		p.metrics.Attempt(p.name, "aborted")
		return ctx.Err()
	}
	if actx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		p.metrics.Attempt(p.name, "timeout")
		p.logger.WarnContext(ctx, "external attempt timed out",
			"dependency", p.name, "attempt", n, "timeout", p.policy.AttemptTimeout)
		return attemptTimeout(fmt.Errorf("attempt %d exceeded %s: %w", n, p.policy.AttemptTimeout, err))
	}
	p.metrics.Attempt(p.name, "transport_error")
	return transportFailure(err)
}

func (p *Pipeline) stateChanged(from, to State) {
	p.metrics.BreakerTransition(p.name, from.String(), to.String(), float64(to))

	attrs := []any{"dependency", p.name, "from", from.String(), "to", to.String()}
	switch to {
	case StateOpen:
		p.logger.Error("circuit opened", append(attrs, "break_duration", p.policy.BreakDuration)...)
	case StateHalfOpen:
		p.logger.Warn("circuit half-open, admitting one trial call", attrs...)
	default:
		p.logger.Info("circuit closed, dependency recovered", attrs...)
	}

	if p.onStateChange != nil {
		p.onStateChange(p.name, from, to)
	}
}
