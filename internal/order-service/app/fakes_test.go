package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jcmexdev/order-registration/internal/order-service/domain"
	"github.com/jcmexdev/order-registration/internal/order-service/ports"
)

// fakeUoW records every call so tests can assert the exact saga path.
type fakeUoW struct {
	mu     sync.Mutex
	calls  []string
	audits []domain.AuditEvent
	active bool

	beginErr    error
	createErr   error
	commitErr   error
	rollbackErr error
}

func (u *fakeUoW) log(call string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, call)
}

func (u *fakeUoW) Calls() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.calls...)
}

func (u *fakeUoW) Begin(ctx context.Context) error {
	u.log("begin")
	if u.beginErr != nil {
		return u.beginErr
	}
	u.active = true
	return nil
}

func (u *fakeUoW) Commit(ctx context.Context) error {
	u.log("commit")
	if !u.active {
		return domain.ErrNoActiveTransaction
	}
	if u.commitErr != nil {
		return u.commitErr
	}
	u.active = false
	return nil
}

func (u *fakeUoW) Rollback(ctx context.Context) error {
	u.log("rollback")
	u.active = false
	return u.rollbackErr
}

func (u *fakeUoW) Close() error {
	u.log("close")
	return nil
}

func (u *fakeUoW) Orders() ports.OrderRepository { return fakeOrders{u} }
func (u *fakeUoW) Audit() ports.AuditRecorder    { return fakeAudit{u} }

type fakeOrders struct{ u *fakeUoW }

func (f fakeOrders) Create(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	f.u.log("create")
	if f.u.createErr != nil {
		return nil, f.u.createErr
	}
	out := *o
	out.ID = 1
	out.Items = append([]domain.LineItem(nil), o.Items...)
	for i := range out.Items {
		out.Items[i].ID = int64(i + 1)
		out.Items[i].OrderID = out.ID
	}
	return &out, nil
}

type fakeAudit struct{ u *fakeUoW }

func (f fakeAudit) Record(ctx context.Context, e domain.AuditEvent) error {
	f.u.log("audit:" + e.Event)
	f.u.mu.Lock()
	f.u.audits = append(f.u.audits, e)
	f.u.mu.Unlock()
	return nil
}

type fakeFactory struct {
	uow     *fakeUoW
	created atomic.Int32
}

func (f *fakeFactory) NewUnitOfWork() ports.UnitOfWork {
	f.created.Add(1)
	return f.uow
}

type fakeValidator struct {
	ok    bool
	err   error
	block bool
	calls atomic.Int32
}

func (v *fakeValidator) ValidateCustomer(ctx context.Context, id int64) (bool, error) {
	v.calls.Add(1)
	if v.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return v.ok, v.err
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }
