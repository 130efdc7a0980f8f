// Package app registers orders. A registration is a saga run by
// coordinator.Orchestrator over a single unit of work:
//
//	begin_transaction -> audit_start -> validate_customer -> persist_order -> audit_confirmed -> commit
//
// Any failure rolls the transaction back, audit rows included, and the
// failure is returned classified by domain.Kind.
package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-registration/internal/coordinator"
	"github.com/jcmexdev/order-registration/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-registration/internal/order-service/domain"
	"github.com/jcmexdev/order-registration/internal/order-service/ports"
	"github.com/jcmexdev/order-registration/internal/pkg/metrics"
	"github.com/jcmexdev/order-registration/internal/pkg/requestctx"
)

type Service struct {
	uows      ports.UnitOfWorkFactory
	customers ports.CustomerValidator
	journal   sagalog.Repository
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newSagaID func() string
}

var _ ports.OrderService = (*Service)(nil)

type Option func(*Service)

// WithJournal records every saga transition outside the order transaction.
func WithJournal(j sagalog.Repository) Option {
	return func(s *Service) { s.journal = j }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(uows ports.UnitOfWorkFactory, customers ports.CustomerValidator, opts ...Option) *Service {
	s := &Service{
		uows:      uows,
		customers: customers,
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/jcmexdev/order-registration/internal/order-service/app"),
		now:       time.Now,
		newSagaID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterOrder validates req, then runs the registration saga. Invalid
// input never opens a transaction.
func (s *Service) RegisterOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	started := time.Now()
	sagaID := s.newSagaID()
	ctx = requestctx.WithSagaID(ctx, sagaID)

	ctx, span := s.tracer.Start(ctx, "RegisterOrder")
	defer span.End()

	s.logger.InfoContext(ctx, "order registration received",
		"customer_id", req.CustomerID, "user", req.User, "items", len(req.Items))

	if err := domain.ValidateOrderRequest(req); err != nil {
		s.logger.WarnContext(ctx, "order rejected by validation", "error", err)
		s.observe(ctx, err, started)
		return nil, err
	}

	r := &registration{
		svc: s,
		req: req,
		uow: s.uows.NewUnitOfWork(),
	}
	defer func() {
		if err := r.uow.Close(); err != nil {
			s.logger.ErrorContext(ctx, "failed to release unit of work", "error", err)
		}
	}()

	opts := []coordinator.Option{coordinator.WithLogger(s.logger)}
	if payload, err := json.Marshal(req); err == nil {
		opts = append(opts, coordinator.WithPayload(string(payload)))
	}

	err := coordinator.NewOrchestrator(sagaID, r.steps(), s.journal, opts...).Start(ctx)
	s.observe(ctx, err, started)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order registered",
		"order_id", r.order.ID, "total", r.order.Total.StringFixed(2))
	return domain.NewOrderResult(r.order), nil
}

func (s *Service) observe(ctx context.Context, err error, started time.Time) {
	outcome := "confirmed"
	if err != nil {
		outcome = string(domain.KindOf(err))
		trace.SpanFromContext(ctx).RecordError(err)
	}
	s.metrics.ObserveSaga(outcome, time.Since(started))
}
