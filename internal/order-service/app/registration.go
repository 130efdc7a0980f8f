package app

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-registration/internal/coordinator"
	"github.com/jcmexdev/order-registration/internal/order-service/domain"
	"github.com/jcmexdev/order-registration/internal/order-service/ports"
)

// registration is the state of one saga run.
type registration struct {
	svc   *Service
	req   domain.OrderRequest
	uow   ports.UnitOfWork
	order *domain.Order
}

func (r *registration) steps() []coordinator.Step {
	return []coordinator.Step{
		coordinator.NewStep("begin_transaction", r.begin, r.rollback),
		coordinator.NewStep("audit_start", r.auditStart, nil),
		coordinator.NewStep("validate_customer", r.validateCustomer, nil),
		coordinator.NewStep("persist_order", r.persist, nil),
		coordinator.NewStep("audit_confirmed", r.auditConfirmed, nil),
		coordinator.NewStep("commit", r.commit, nil),
	}
}

func (r *registration) begin(ctx context.Context) error {
	if err := r.uow.Begin(ctx); err != nil {
		return classify(ctx, "begin transaction", err)
	}
	r.milestone(ctx, "transaction_open")
	return nil
}

// rollback is the only compensation: every write of the saga lives in the
// one transaction.
func (r *registration) rollback(ctx context.Context) error {
	if err := r.uow.Rollback(ctx); err != nil {
		return err
	}
	r.milestone(ctx, "rolled_back")
	return nil
}

func (r *registration) auditStart(ctx context.Context) error {
	event := domain.NewAuditEvent(domain.EventOrderStart,
		fmt.Sprintf("registration started for customer_id=%d", r.req.CustomerID),
		r.req.User, domain.LevelInfo, r.svc.now())
	if err := r.uow.Audit().Record(ctx, event); err != nil {
		return classify(ctx, "record start audit", err)
	}
	r.milestone(ctx, "audit_start")
	return nil
}

func (r *registration) validateCustomer(ctx context.Context) error {
	id := r.req.CustomerID
	ok, err := r.svc.customers.ValidateCustomer(ctx, id)

	switch {
	case err != nil && isCancellation(ctx, err):
		r.svc.logger.InfoContext(ctx, "registration canceled during customer validation", "customer_id", id)
		return domain.Canceled(err)

	case err != nil:
		r.svc.logger.ErrorContext(ctx, "customer validation failed", "customer_id", id, "error", err)
		r.recordFailure(ctx, domain.EventValidationError,
			fmt.Sprintf("customer_id=%d could not be validated: %v", id, err), domain.LevelError)
		if errors.Is(err, domain.ErrExternalService) {
			return err
		}
		return domain.ExternalServiceUnavailable("customer validation failed", err)

	case !ok:
		r.svc.logger.WarnContext(ctx, "customer rejected by external validation", "customer_id", id)
		r.recordFailure(ctx, domain.EventCustomerInvalid,
			fmt.Sprintf("customer_id=%d failed external validation", id), domain.LevelWarning)
		return domain.CustomerInvalid(id)
	}

	r.milestone(ctx, "customer_valid")
	return nil
}

// recordFailure stages the failure audit. The rollback that follows
// discards it; a write error is only logged so it cannot mask the cause.
func (r *registration) recordFailure(ctx context.Context, tag, description string, level domain.Level) {
	event := domain.NewAuditEvent(tag, description, r.req.User, level, r.svc.now())
	if err := r.uow.Audit().Record(ctx, event); err != nil {
		r.svc.logger.WarnContext(ctx, "failed to record failure audit", "event", tag, "error", err)
	}
}

func (r *registration) persist(ctx context.Context) error {
	created, err := r.uow.Orders().Create(ctx, domain.NewOrder(r.req, r.svc.now()))
	if err != nil {
		return classify(ctx, "persist order", err)
	}
	r.order = created
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("order.id", created.ID))
	r.milestone(ctx, "order_persisted")
	return nil
}

func (r *registration) auditConfirmed(ctx context.Context) error {
	event := domain.NewAuditEvent(domain.EventOrderConfirmed,
		fmt.Sprintf("order %d confirmed for customer_id=%d, total=%s",
			r.order.ID, r.order.CustomerID, r.order.Total.StringFixed(2)),
		r.req.User, domain.LevelInfo, r.svc.now())
	if err := r.uow.Audit().Record(ctx, event); err != nil {
		return classify(ctx, "record confirmation audit", err)
	}
	r.milestone(ctx, "audit_confirmed")
	return nil
}

func (r *registration) commit(ctx context.Context) error {
	if err := r.uow.Commit(ctx); err != nil {
		return classify(ctx, "commit", err)
	}
	r.milestone(ctx, "committed")
	return nil
}

// classify keeps domain errors as they are, turns caller cancellation into
// Canceled and everything else into PersistenceFailure.
func classify(ctx context.Context, op string, err error) error {
	if isCancellation(ctx, err) {
		if errors.Is(err, domain.ErrCanceled) {
			return err
		}
		return domain.Canceled(err)
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.PersistenceFailure(op, err)
}

func isCancellation(ctx context.Context, err error) bool {
	if errors.Is(err, domain.ErrCanceled) {
		return true
	}
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// milestone marks saga progress on the span and in the log.
func (r *registration) milestone(ctx context.Context, name string) {
	trace.SpanFromContext(ctx).AddEvent(name)
	r.svc.logger.InfoContext(ctx, "saga milestone",
		"milestone", name, "customer_id", r.req.CustomerID)
}
