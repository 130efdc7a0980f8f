package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest is the already-deserialized input of a registration.
// It is request scoped and never persisted as-is.
type OrderRequest struct {
	CustomerID int64
	User       string
	Items      []LineItemRequest
}

type LineItemRequest struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
}

// Order is the aggregate root: a header plus its line items.
// Total always equals the sum of the item subtotals.
type Order struct {
	ID         int64
	CustomerID int64
	User       string
	CreatedAt  time.Time
	Total      decimal.Decimal
	Items      []LineItem
}

// LineItem is owned by exactly one Order and is deleted with it.
type LineItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
}

// Subtotal is derived and never stored.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// NewOrder builds the aggregate from a validated request, stamping it with
// now (in UTC) and computing the total with exact decimal arithmetic.
// Callers must run ValidateOrderRequest first.
func NewOrder(req OrderRequest, now time.Time) *Order {
	items := make([]LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = LineItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}

	return &Order{
		CustomerID: req.CustomerID,
		User:       req.User,
		CreatedAt:  now.UTC(),
		Total:      SumSubtotals(items),
		Items:      items,
	}
}

func SumSubtotals(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
