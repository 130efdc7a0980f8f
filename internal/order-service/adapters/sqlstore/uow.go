package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jcmexdev/order-registration/internal/order-service/domain"
	"github.com/jcmexdev/order-registration/internal/order-service/ports"
)

type unitOfWork struct {
	store *Store

	mu     sync.Mutex
	tx     *sql.Tx
	closed bool
}

var _ ports.UnitOfWork = (*unitOfWork)(nil)

func (u *unitOfWork) Begin(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return domain.Fatal("unit of work is closed")
	}
	if u.tx != nil {
		return domain.ErrTransactionActive
	}
	tx, err := u.store.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.PersistenceFailure("begin transaction", err)
	}
	u.tx = tx
	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.tx == nil {
		return domain.ErrNoActiveTransaction
	}
	if err := ctx.Err(); err != nil {
		// the caller gave up before the point of no return
		return domain.Canceled(err)
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Commit(); err != nil {
		return domain.PersistenceFailure("commit transaction", err)
	}
	return nil
}

// Rollback discards staged writes. It is a no-op when nothing is active and
// tolerates a transaction the driver already finished.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rollbackLocked()
}

func (u *unitOfWork) rollbackLocked() error {
	if u.tx == nil {
		return nil
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return domain.PersistenceFailure("rollback transaction", err)
	}
	return nil
}

func (u *unitOfWork) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return nil
	}
	u.closed = true
	return u.rollbackLocked()
}

func (u *unitOfWork) Orders() ports.OrderRepository { return &orderRepository{uow: u} }

func (u *unitOfWork) Audit() ports.AuditRecorder { return &auditRecorder{uow: u} }

// activeTx returns the transaction every repository write must go through.
func (u *unitOfWork) activeTx() (*sql.Tx, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.tx == nil {
		return nil, domain.ErrNoActiveTransaction
	}
	return u.tx, nil
}
