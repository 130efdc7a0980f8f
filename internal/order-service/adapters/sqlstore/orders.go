package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-registration/internal/order-service/domain"
)

type orderRepository struct {
	uow *unitOfWork
}

// Create inserts the header and then every item inside the active
// transaction and returns a copy carrying the generated ids.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	tx, err := r.uow.activeTx()
	if err != nil {
		return nil, err
	}
	d := r.uow.store.dialect

	const insertOrder = `
		INSERT INTO orders (customer_id, user_name, created_at, total)
		VALUES (?, ?, ?, ?)
		RETURNING id`

	out := *order
	out.Items = make([]domain.LineItem, len(order.Items))

	err = tx.QueryRowContext(ctx, d.rebind(insertOrder),
		order.CustomerID,
		order.User,
		d.timeArg(order.CreatedAt),
		order.Total,
	).Scan(&out.ID)
	if err != nil {
		return nil, domain.PersistenceFailure("insert order", err)
	}

	const insertItem = `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES (?, ?, ?, ?)
		RETURNING id`

	for i, it := range order.Items {
		it.OrderID = out.ID
		if err := tx.QueryRowContext(ctx, d.rebind(insertItem),
			it.OrderID, it.ProductID, it.Quantity, it.UnitPrice,
		).Scan(&it.ID); err != nil {
			return nil, domain.PersistenceFailure(fmt.Sprintf("insert item %d", i), err)
		}
		out.Items[i] = it
	}
	return &out, nil
}

const selectOrders = `
	SELECT o.id, o.customer_id, o.user_name, o.created_at, o.total,
	       i.id, i.product_id, i.quantity, i.unit_price
	FROM   orders o
	LEFT   JOIN order_items i ON i.order_id = o.id`

// ListOrders returns every order with its items, newest first.
func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	q := selectOrders + ` ORDER BY o.created_at DESC, o.id DESC, i.id`
	orders, err := s.queryOrders(ctx, q)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	q := selectOrders + ` WHERE o.id = ? ORDER BY i.id`
	orders, err := s.queryOrders(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.NotFound(fmt.Sprintf("order %d not found", id))
	}
	return &orders[0], nil
}

func (s *Store) queryOrders(ctx context.Context, q string, args ...any) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(q), args...)
	if err != nil {
		return nil, domain.PersistenceFailure("query orders", err)
	}
	defer rows.Close()

	var (
		orders []domain.Order
		index  = map[int64]int{}
	)
	for rows.Next() {
		var (
			o         domain.Order
			itemID    sql.NullInt64
			productID sql.NullInt64
			quantity  sql.NullInt64
			unitPrice decimal.NullDecimal
		)
		if err := rows.Scan(
			&o.ID, &o.CustomerID, &o.User, timeColumn{dst: &o.CreatedAt}, &o.Total,
			&itemID, &productID, &quantity, &unitPrice,
		); err != nil {
			return nil, domain.PersistenceFailure("scan order", err)
		}

		pos, seen := index[o.ID]
		if !seen {
			pos = len(orders)
			index[o.ID] = pos
			orders = append(orders, o)
		}
		if itemID.Valid {
			orders[pos].Items = append(orders[pos].Items, domain.LineItem{
				ID:        itemID.Int64,
				OrderID:   o.ID,
				ProductID: productID.Int64,
				Quantity:  quantity.Int64,
				UnitPrice: unitPrice.Decimal,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceFailure("iterate orders", err)
	}
	return orders, nil
}
