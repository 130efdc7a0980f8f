// Package coordinator runs a saga: an ordered list of steps where every
// completed step can be undone by its compensation.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-registration/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-registration/internal/pkg/requestctx"
)

// Step represents a single unit of work in the Saga.
// Compensate undoes the effects of a successful Execute.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Orchestrator manages the execution of a collection of Steps.
type Orchestrator struct {
	sagaID  string
	steps   []Step
	journal sagalog.Repository // nil-safe: transitions are not persisted if nil
	payload string
	logger  *slog.Logger
	tracer  trace.Tracer
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithPayload stores the saga input on the STARTED journal entry.
func WithPayload(payload string) Option {
	return func(o *Orchestrator) { o.payload = payload }
}

func NewOrchestrator(sagaID string, steps []Step, journal sagalog.Repository, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sagaID:  sagaID,
		steps:   steps,
		journal: journal,
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/jcmexdev/order-registration/internal/coordinator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start runs the steps sequentially. If a step fails, every previously
// successful step is compensated in reverse order and the step's error is
// returned unchanged. Compensation ignores cancellation of ctx.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx = requestctx.WithSagaID(ctx, o.sagaID)
	ctx, span := o.tracer.Start(ctx, "saga",
		trace.WithAttributes(attribute.String("saga.id", o.sagaID)))
	defer span.End()

	o.record(ctx, sagalog.StatusStarted, "", o.payload, nil)
	o.logger.InfoContext(ctx, "saga started", "steps", len(o.steps))

	var successfulSteps []Step
	for _, step := range o.steps {
		if err := o.execute(ctx, step); err != nil {
			o.logger.WarnContext(ctx, "saga step failed, starting rollback",
				"step", step.Name(), "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			o.record(ctx, sagalog.StatusCompensating, step.Name(), "", []string{err.Error()})
			compErrs := o.rollback(context.WithoutCancel(ctx), successfulSteps)

			errs := append([]string{fmt.Sprintf("step %s failed: %v", step.Name(), err)}, compErrs...)
			o.record(ctx, sagalog.StatusFailed, step.Name(), "", errs)
			return err
		}
		// Track successful step for potential compensation (LIFO)
		successfulSteps = append(successfulSteps, step)
		o.record(ctx, sagalog.StatusStepDone, step.Name(), "", nil)
	}

	o.record(ctx, sagalog.StatusCompleted, "", "", nil)
	o.logger.InfoContext(ctx, "saga completed")
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, step Step) error {
	ctx, span := o.tracer.Start(ctx, "saga.step "+step.Name())
	defer span.End()

	o.logger.DebugContext(ctx, "executing step", "step", step.Name())
	if err := step.Execute(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// rollback never stops early: a failed compensation is logged and the
// remaining ones still run.
func (o *Orchestrator) rollback(ctx context.Context, steps []Step) []string {
	var errs []string
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		o.logger.InfoContext(ctx, "compensating step", "step", step.Name())
		if err := o.compensate(ctx, step); err != nil {
			o.logger.ErrorContext(ctx, "CRITICAL: failed to compensate step",
				"step", step.Name(), "error", err)
			errs = append(errs, fmt.Sprintf("compensation of %s failed: %v", step.Name(), err))
		}
	}
	return errs
}

func (o *Orchestrator) compensate(ctx context.Context, step Step) (err error) {
	ctx, span := o.tracer.Start(ctx, "saga.compensate "+step.Name())
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()
	return step.Compensate(ctx)
}

// record writes to the journal. A journal failure never changes the saga
// outcome; the write survives cancellation of the request.
func (o *Orchestrator) record(ctx context.Context, status sagalog.Status, step, payload string, errs []string) {
	if o.journal == nil {
		return
	}
	entry := sagalog.NewEntry(ctx, o.sagaID, status, step, payload, errs)
	if err := o.journal.Save(context.WithoutCancel(ctx), entry); err != nil {
		o.logger.WarnContext(ctx, "saga journal write failed",
			"status", string(status), "step", step, "error", err)
	}
}
