package ports

import (
	"context"

	"github.com/jcmexdev/order-registration/internal/order-service/domain"
)

// OrderService is the inbound port called by the transport layer.
type OrderService interface {
	RegisterOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error)
}

// OrderReader serves lookups outside any registration transaction.
type OrderReader interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	// ListAudit returns the committed audit trail, oldest first.
	ListAudit(ctx context.Context) ([]domain.AuditEvent, error)
}

// CustomerValidator answers whether a customer exists in the external system.
// A clean negative is (false, nil); failures to get an answer are errors.
type CustomerValidator interface {
	ValidateCustomer(ctx context.Context, customerID int64) (bool, error)
}

// OrderRepository writes inside the unit of work's active transaction.
type OrderRepository interface {
	// Create assigns the order and item identifiers and returns the
	// materialized aggregate.
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
}

// AuditRecorder stages audit rows inside the active transaction.
type AuditRecorder interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

// UnitOfWork is the transaction boundary of a single registration.
// Writes made through Orders and Audit become durable only on Commit.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	// Rollback is a no-op when no transaction is active.
	Rollback(ctx context.Context) error
	// Close releases the underlying resources on every exit path.
	Close() error

	Orders() OrderRepository
	Audit() AuditRecorder
}

// UnitOfWorkFactory hands out one UnitOfWork per registration.
type UnitOfWorkFactory interface {
	NewUnitOfWork() UnitOfWork
}
