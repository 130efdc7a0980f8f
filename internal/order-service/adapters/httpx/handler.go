package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/order-registration/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-registration/internal/order-service/domain"
	"github.com/jcmexdev/order-registration/internal/order-service/ports"
)

const maxBodyBytes = 1 << 20

// Pinger is a dependency the health check can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler exposes order registration and lookups over HTTP.
type Handler struct {
	orders ports.OrderService
	reader ports.OrderReader
	checks  map[string]Pinger
	journal sagalog.Repository
	logger  *slog.Logger
}

type HandlerOption func(*Handler)

// WithJournal exposes the saga journal under /sagas.
func WithJournal(j sagalog.Repository) HandlerOption {
	return func(h *Handler) { h.journal = j }
}

// NewHandler initializes the handler. checks may be nil.
func NewHandler(orders ports.OrderService, reader ports.OrderReader, checks map[string]Pinger, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{orders: orders, reader: reader, checks: checks, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateOrder registers an order and answers 201 with its Location.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	res, err := h.orders.RegisterOrder(r.Context(), req.toDomain())
	if err != nil {
		h.fail(r, w, err)
		return
	}

	w.Header().Set("Location", "/orders/"+strconv.FormatInt(res.OrderID, 10))
	writeJSON(w, http.StatusCreated, mapResultToResponse(res))
}

// ListOrders returns every order, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.reader.ListOrders(r.Context())
	if err != nil {
		h.fail(r, w, err)
		return
	}
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = mapOrderToResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a positive integer")
		return
	}

	order, err := h.reader.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// ListAudit returns the audit trail of committed registrations.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	events, err := h.reader.ListAudit(r.Context())
	if err != nil {
		h.fail(r, w, err)
		return
	}
	out := make([]AuditEventResponse, len(events))
	for i, e := range events {
		out[i] = mapAuditToResponse(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// SagaHistory returns every journal entry of one registration.
func (h *Handler) SagaHistory(w http.ResponseWriter, r *http.Request) {
	sagaID := chi.URLParam(r, "id")
	entries, err := h.journal.History(r.Context(), sagaID)
	if err != nil {
		h.fail(r, w, err)
		return
	}
	if len(entries) == 0 {
		h.fail(r, w, domain.NotFound("saga "+sagaID+" not found"))
		return
	}
	out := make([]SagaEntryResponse, len(entries))
	for i := range entries {
		out[i] = mapEntryToResponse(&entries[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// SagaStatus returns the latest journal entry of one registration.
func (h *Handler) SagaStatus(w http.ResponseWriter, r *http.Request) {
	sagaID := chi.URLParam(r, "id")
	entry, err := h.journal.Latest(r.Context(), sagaID)
	if errors.Is(err, sagalog.ErrNotFound) {
		err = domain.NotFound("saga " + sagaID + " not found")
	}
	if err != nil {
		h.fail(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapEntryToResponse(entry))
}

// Healthz pings every registered dependency.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (h *Handler) fail(r *http.Request, w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	kind := errorKind(err)

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status, kind = http.StatusRequestEntityTooLarge, "body_too_large"
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "kind", kind, "status", status, "error", err)
	} else {
		h.logger.InfoContext(r.Context(), "request rejected", "kind", kind, "status", status, "error", err)
	}
	writeError(w, status, kind, publicMessage(err, status))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
