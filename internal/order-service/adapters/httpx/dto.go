package httpx

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-registration/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-registration/internal/order-service/domain"
)

type CreateOrderRequest struct {
	CustomerID int64                `json:"customer_id"`
	User       string               `json:"user"`
	Items      []CreateOrderItemDTO `json:"items"`
}

// CreateOrderItemDTO accepts unit_price as a JSON number or string; both are
// decoded exactly.
type CreateOrderItemDTO struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderResponse struct {
	ID         int64               `json:"id"`
	CustomerID int64               `json:"customer_id"`
	User       string              `json:"user"`
	CreatedAt  string              `json:"created_at"`
	Total      string              `json:"total"`
	Items      []OrderItemResponse `json:"items"`
}

type OrderItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type AuditEventResponse struct {
	ID          int64  `json:"id"`
	Timestamp   string `json:"timestamp"`
	Event       string `json:"event"`
	Description string `json:"description"`
	User        string `json:"user,omitempty"`
	Level       string `json:"level"`
}

// SagaEntryResponse is one journal row. Payload is only set on STARTED.
type SagaEntryResponse struct {
	ID         int64    `json:"id"`
	SagaID     string   `json:"saga_id"`
	Status     string   `json:"status"`
	Step       string   `json:"step,omitempty"`
	Payload    string   `json:"payload,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	TraceID    string   `json:"trace_id,omitempty"`
	SpanID     string   `json:"span_id,omitempty"`
	RecordedAt string   `json:"recorded_at"`
	Terminal   bool     `json:"terminal"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (r CreateOrderRequest) toDomain() domain.OrderRequest {
	items := make([]domain.LineItemRequest, len(r.Items))
	for i, it := range r.Items {
		items[i] = domain.LineItemRequest{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return domain.OrderRequest{CustomerID: r.CustomerID, User: r.User, Items: items}
}

func mapResultToResponse(res *domain.OrderResult) OrderResponse {
	items := make([]OrderItemResponse, len(res.Items))
	for i, it := range res.Items {
		items[i] = OrderItemResponse{
			ID:        it.ItemID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: money(it.UnitPrice),
			Subtotal:  money(it.Subtotal),
		}
	}
	return OrderResponse{
		ID:         res.OrderID,
		CustomerID: res.CustomerID,
		User:       res.User,
		CreatedAt:  res.CreatedAt.UTC().Format(time.RFC3339),
		Total:      money(res.Total),
		Items:      items,
	}
}

func mapOrderToResponse(o *domain.Order) OrderResponse {
	return mapResultToResponse(domain.NewOrderResult(o))
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func mapAuditToResponse(e domain.AuditEvent) AuditEventResponse {
	return AuditEventResponse{
		ID:          e.ID,
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339Nano),
		Event:       e.Event,
		Description: e.Description,
		User:        e.User,
		Level:       string(e.Level),
	}
}

func mapEntryToResponse(e *sagalog.Entry) SagaEntryResponse {
	return SagaEntryResponse{
		ID:         e.ID,
		SagaID:     e.SagaID,
		Status:     string(e.Status),
		Step:       e.Step,
		Payload:    e.Payload,
		Errors:     e.Errors,
		TraceID:    e.TraceID,
		SpanID:     e.SpanID,
		RecordedAt: e.RecordedAt.UTC().Format(time.RFC3339Nano),
		Terminal:   e.Status.Terminal(),
	}
}
