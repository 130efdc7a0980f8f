package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-registration/internal/order-service/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "orders.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleOrder(customerID int64, at time.Time) *domain.Order {
	return domain.NewOrder(domain.OrderRequest{
		CustomerID: customerID,
		User:       "jdoe",
		Items: []domain.LineItemRequest{
			{ProductID: 10, Quantity: 2, UnitPrice: decimal.RequireFromString("35.06")},
			{ProductID: 11, Quantity: 1, UnitPrice: decimal.RequireFromString("70.12")},
		},
	}, at)
}

func TestRebind(t *testing.T) {
	t.Parallel()

	q := `INSERT INTO t (a, b, c) VALUES (?, ?, ?)`
	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, `INSERT INTO t (a, b, c) VALUES ($1, $2, $3)`, postgresDialect.rebind(q))
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "oracle", "x", nil)
	assert.ErrorContains(t, err, "unknown driver")
}

func TestUnitOfWork_CreateAndCommit(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 30, 0, 123456789, time.UTC)

	uow := s.NewUnitOfWork()
	defer uow.Close()
	require.NoError(t, uow.Begin(ctx))

	require.NoError(t, uow.Audit().Record(ctx, domain.NewAuditEvent(domain.EventOrderStart, "registration started", "", domain.LevelInfo, now)))
	created, err := uow.Orders().Create(ctx, sampleOrder(7, now))
	require.NoError(t, err)
	require.NoError(t, uow.Audit().Record(ctx, domain.NewAuditEvent(domain.EventOrderConfirmed, "confirmed", "jdoe", domain.LevelInfo, now)))
	require.NoError(t, uow.Commit(ctx))

	assert.Positive(t, created.ID)
	require.Len(t, created.Items, 2)
	for _, it := range created.Items {
		assert.Positive(t, it.ID)
		assert.Equal(t, created.ID, it.OrderID)
	}

	got, err := s.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.CustomerID)
	assert.Equal(t, "jdoe", got.User)
	assert.True(t, got.CreatedAt.Equal(now), "created_at %s", got.CreatedAt)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("140.24")), "total %s", got.Total)
	require.Len(t, got.Items, 2)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("35.06")))
	assert.True(t, domain.SumSubtotals(got.Items).Equal(got.Total))

	events, err := s.ListAudit(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventOrderStart, events[0].Event)
	assert.Empty(t, events[0].User)
	assert.Equal(t, domain.EventOrderConfirmed, events[1].Event)
	assert.Equal(t, "jdoe", events[1].User)
	assert.Equal(t, domain.LevelInfo, events[1].Level)
}

func TestUnitOfWork_RollbackDiscardsEverything(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	uow := s.NewUnitOfWork()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.Audit().Record(ctx, domain.NewAuditEvent(domain.EventOrderStart, "x", "", domain.LevelInfo, time.Now())))
	_, err := uow.Orders().Create(ctx, sampleOrder(1, time.Now()))
	require.NoError(t, err)

	require.NoError(t, uow.Rollback(ctx))
	require.NoError(t, uow.Rollback(ctx), "second rollback is a no-op")
	require.NoError(t, uow.Close())

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
	events, err := s.ListAudit(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestUnitOfWork_CloseRollsBackOpenTransaction(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	uow := s.NewUnitOfWork()
	require.NoError(t, uow.Begin(ctx))
	_, err := uow.Orders().Create(ctx, sampleOrder(1, time.Now()))
	require.NoError(t, err)

	require.NoError(t, uow.Close())
	require.NoError(t, uow.Close())

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	err = uow.Begin(ctx)
	assert.ErrorIs(t, err, domain.ErrFatal)
}

func TestUnitOfWork_ProtocolViolations(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	uow := s.NewUnitOfWork()
	defer uow.Close()

	assert.ErrorIs(t, uow.Commit(ctx), domain.ErrNoActiveTransaction)
	assert.Equal(t, domain.KindFatal, domain.KindOf(uow.Commit(ctx)))
	assert.NoError(t, uow.Rollback(ctx))

	_, err := uow.Orders().Create(ctx, sampleOrder(1, time.Now()))
	assert.ErrorIs(t, err, domain.ErrNoActiveTransaction)
	assert.ErrorIs(t, uow.Audit().Record(ctx, domain.AuditEvent{}), domain.ErrNoActiveTransaction)

	require.NoError(t, uow.Begin(ctx))
	assert.ErrorIs(t, uow.Begin(ctx), domain.ErrTransactionActive)
	require.NoError(t, uow.Commit(ctx))
	assert.ErrorIs(t, uow.Commit(ctx), domain.ErrNoActiveTransaction)
}

func TestUnitOfWork_CommitObservesCancellation(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	uow := s.NewUnitOfWork()
	defer uow.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, uow.Begin(ctx))
	_, err := uow.Orders().Create(ctx, sampleOrder(1, time.Now()))
	require.NoError(t, err)

	cancel()
	err = uow.Commit(ctx)
	assert.Equal(t, domain.KindCanceled, domain.KindOf(err))
	assert.NoError(t, uow.Rollback(context.Background()))

	orders, err := s.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestListOrders_NewestFirst(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, at := range []time.Time{base, base.Add(2 * time.Hour), base.Add(time.Hour)} {
		uow := s.NewUnitOfWork()
		require.NoError(t, uow.Begin(ctx))
		_, err := uow.Orders().Create(ctx, sampleOrder(int64(i+1), at))
		require.NoError(t, err)
		require.NoError(t, uow.Commit(ctx))
		require.NoError(t, uow.Close())
	}

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{orders[0].CustomerID, orders[1].CustomerID, orders[2].CustomerID})
	for _, o := range orders {
		assert.Len(t, o.Items, 2)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	_, err := s.GetOrder(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestItemsCascadeWithOrder(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	uow := s.NewUnitOfWork()
	require.NoError(t, uow.Begin(ctx))
	created, err := uow.Orders().Create(ctx, sampleOrder(1, time.Now()))
	require.NoError(t, err)
	require.NoError(t, uow.Commit(ctx))
	require.NoError(t, uow.Close())

	_, err = s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, created.ID)
	require.NoError(t, err)

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items`).Scan(&n))
	assert.Zero(t, n)
}

func TestTimeColumn(t *testing.T) {
	t.Parallel()

	var got time.Time
	want := time.Date(2024, 5, 6, 7, 8, 9, 10, time.UTC)

	require.NoError(t, timeColumn{dst: &got}.Scan(formatTime(want)))
	assert.True(t, got.Equal(want))

	require.NoError(t, timeColumn{dst: &got}.Scan(want.In(time.FixedZone("X", 3600))))
	assert.Equal(t, time.UTC, got.Location())

	assert.Error(t, timeColumn{dst: &got}.Scan(42))
}
