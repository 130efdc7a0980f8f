package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderResult is what a confirmed registration hands back to the caller.
type OrderResult struct {
	OrderID    int64           `json:"order_id"`
	CustomerID int64           `json:"customer_id"`
	User       string          `json:"user"`
	CreatedAt  time.Time       `json:"created_at"`
	Total      decimal.Decimal `json:"total"`
	Items      []ItemResult    `json:"items"`
}

type ItemResult struct {
	ItemID    int64           `json:"item_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// NewOrderResult materializes a persisted order, subtotals included.
func NewOrderResult(o *Order) *OrderResult {
	items := make([]ItemResult, len(o.Items))
	for i, it := range o.Items {
		items[i] = ItemResult{
			ItemID:    it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
		}
	}
	return &OrderResult{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		User:       o.User,
		CreatedAt:  o.CreatedAt,
		Total:      o.Total,
		Items:      items,
	}
}
