package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-registration/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-registration/internal/order-service/domain"
	"github.com/jcmexdev/order-registration/internal/pkg/requestctx"
)

type fakeOrders struct {
	gotReq  domain.OrderRequest
	gotCtx  context.Context
	result  *domain.OrderResult
	err     error
	calls   int
	list    []domain.Order
	byID    map[int64]*domain.Order
	audit   []domain.AuditEvent
	readErr error
}

func (f *fakeOrders) RegisterOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	f.calls++
	f.gotReq = req
	f.gotCtx = ctx
	return f.result, f.err
}

func (f *fakeOrders) ListOrders(context.Context) ([]domain.Order, error) {
	return f.list, f.readErr
}

func (f *fakeOrders) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	o, ok := f.byID[id]
	if !ok {
		return nil, domain.NotFound(fmt.Sprintf("order %d not found", id))
	}
	return o, nil
}

func (f *fakeOrders) ListAudit(context.Context) ([]domain.AuditEvent, error) {
	return f.audit, f.readErr
}

type fakeJournal struct {
	entries []sagalog.Entry
	err     error
}

func (j *fakeJournal) Save(context.Context, *sagalog.Entry) error { return nil }

func (j *fakeJournal) History(_ context.Context, sagaID string) ([]sagalog.Entry, error) {
	var out []sagalog.Entry
	for _, e := range j.entries {
		if e.SagaID == sagaID {
			out = append(out, e)
		}
	}
	return out, j.err
}

func (j *fakeJournal) Latest(ctx context.Context, sagaID string) (*sagalog.Entry, error) {
	h, err := j.History(ctx, sagaID)
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, sagalog.ErrNotFound
	}
	return &h[len(h)-1], nil
}

type pinger func(context.Context) error

func (p pinger) Ping(ctx context.Context) error { return p(ctx) }

var created = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:         7,
		CustomerID: 3,
		User:       "alice",
		CreatedAt:  created,
		Total:      decimal.RequireFromString("140.24"),
		Items: []domain.LineItem{
			{ID: 11, OrderID: 7, ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("50.12")},
			{ID: 12, OrderID: 7, ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("40")},
		},
	}
}

func newTestServer(t *testing.T, orders *fakeOrders, checks map[string]Pinger, opts ...HandlerOption) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(orders, orders, checks, logger, opts...)
	srv := httptest.NewServer(NewRouter(h, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "metrics")
	})))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/orders", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCreateOrder_Confirmed(t *testing.T) {
	orders := &fakeOrders{result: domain.NewOrderResult(sampleOrder())}
	srv := newTestServer(t, orders, nil)

	body := `{"customer_id":3,"user":"alice","items":[
		{"product_id":1,"quantity":2,"unit_price":"50.12"},
		{"product_id":2,"quantity":1,"unit_price":40}]}`
	resp := post(t, srv, body, map[string]string{
		requestctx.HeaderXRequestID:      "req-42",
		requestctx.HeaderXIdempotencyKey: " key-1 ",
	})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/orders/7", resp.Header.Get("Location"))
	assert.Equal(t, "req-42", resp.Header.Get(requestctx.HeaderXRequestID))

	got := decodeBody[OrderResponse](t, resp)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "140.24", got.Total)
	assert.Equal(t, "2024-06-01T12:00:00Z", got.CreatedAt)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "50.12", got.Items[0].UnitPrice)
	assert.Equal(t, "100.24", got.Items[0].Subtotal)
	assert.Equal(t, "40.00", got.Items[1].UnitPrice)

	require.Len(t, orders.gotReq.Items, 2)
	assert.Equal(t, int64(3), orders.gotReq.CustomerID)
	assert.True(t, decimal.RequireFromString("50.12").Equal(orders.gotReq.Items[0].UnitPrice))
	assert.True(t, decimal.NewFromInt(40).Equal(orders.gotReq.Items[1].UnitPrice))

	assert.Equal(t, "req-42", requestctx.RequestID(orders.gotCtx))
	assert.Equal(t, "key-1", requestctx.IdempotencyKey(orders.gotCtx))
}

func TestCreateOrder_GeneratesRequestID(t *testing.T) {
	orders := &fakeOrders{result: domain.NewOrderResult(sampleOrder())}
	srv := newTestServer(t, orders, nil)

	resp := post(t, srv, `{"customer_id":3,"items":[{"product_id":1,"quantity":1,"unit_price":1}]}`, nil)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestctx.HeaderXRequestID))
	assert.Empty(t, requestctx.IdempotencyKey(orders.gotCtx))
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
		wantMsg  string
	}{
		{"invalid order", domain.InvalidOrder("items must not be empty"), http.StatusBadRequest, "invalid_order", "items must not be empty"},
		{"customer invalid", domain.CustomerInvalid(3), http.StatusUnprocessableEntity, "customer_invalid", ""},
		{"external unavailable", domain.ExternalServiceUnavailable("customer service breaker_open", nil), http.StatusServiceUnavailable, "external_service_unavailable", ""},
		{"persistence", domain.PersistenceFailure("insert order", errors.New("disk full")), http.StatusInternalServerError, "persistence_failure", "internal error"},
		{"fatal", domain.Fatal("unit of work closed"), http.StatusInternalServerError, "fatal", "internal error"},
		{"canceled", domain.Canceled(context.Canceled), http.StatusRequestTimeout, "canceled", ""},
		{"in-flight duplicate", domain.Conflict("registration with this idempotency key is in progress"), http.StatusConflict, "conflict", "registration with this idempotency key is in progress"},
		{"bare error", errors.New("boom"), http.StatusInternalServerError, "internal", "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeOrders{err: tt.err}, nil)

			resp := post(t, srv, `{"customer_id":3,"items":[]}`, nil)

			assert.Equal(t, tt.wantCode, resp.StatusCode)
			got := decodeBody[ErrorResponse](t, resp)
			assert.Equal(t, tt.wantKind, got.Error)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, got.Message)
			}
		})
	}
}

func TestCreateOrder_MalformedJSON(t *testing.T) {
	orders := &fakeOrders{}
	srv := newTestServer(t, orders, nil)

	resp := post(t, srv, `{"customer_id":`, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_json", decodeBody[ErrorResponse](t, resp).Error)
	assert.Zero(t, orders.calls)
}

func TestListOrders(t *testing.T) {
	orders := &fakeOrders{list: []domain.Order{*sampleOrder()}}
	srv := newTestServer(t, orders, nil)

	resp, err := srv.Client().Get(srv.URL + "/orders")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[[]OrderResponse](t, resp)
	require.Len(t, got, 1)
	assert.Equal(t, "140.24", got[0].Total)
}

func TestGetOrder(t *testing.T) {
	orders := &fakeOrders{byID: map[int64]*domain.Order{7: sampleOrder()}}
	srv := newTestServer(t, orders, nil)

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/orders/7", http.StatusOK},
		{"/orders/8", http.StatusNotFound},
		{"/orders/abc", http.StatusBadRequest},
		{"/orders/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := srv.Client().Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantCode, resp.StatusCode)
		})
	}
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestListAudit(t *testing.T) {
	orders := &fakeOrders{audit: []domain.AuditEvent{
		{ID: 1, Timestamp: created, Event: "ORDER_REGISTRATION_START", Description: "customer 3", User: "alice", Level: domain.LevelInfo},
		{ID: 2, Timestamp: created, Event: "ORDER_REGISTRATION_CONFIRMED", Description: "order 7", Level: domain.LevelInfo},
	}}
	srv := newTestServer(t, orders, nil)

	resp := get(t, srv, "/audit")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[[]AuditEventResponse](t, resp)
	require.Len(t, got, 2)
	assert.Equal(t, "ORDER_REGISTRATION_START", got[0].Event)
	assert.Equal(t, "alice", got[0].User)
	assert.Equal(t, "2024-06-01T12:00:00Z", got[0].Timestamp)
	assert.Equal(t, "INFO", got[1].Level)
}

func TestListAudit_StoreFailureIsHidden(t *testing.T) {
	srv := newTestServer(t, &fakeOrders{readErr: domain.PersistenceFailure("list audit", errors.New("connection reset"))}, nil)

	resp := get(t, srv, "/audit")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", decodeBody[ErrorResponse](t, resp).Message)
}

func TestSagaJournalRoutes(t *testing.T) {
	journal := &fakeJournal{entries: []sagalog.Entry{
		{ID: 1, SagaID: "saga-1", Status: sagalog.StatusStarted, Payload: `{"customer_id":3}`, RecordedAt: created},
		{ID: 2, SagaID: "saga-1", Status: sagalog.StatusCompensating, Step: "validate_customer", Errors: []string{"customer 3 is not valid"}, TraceID: "4bf92f3577b34da6a3ce929d0e0e4736", RecordedAt: created},
		{ID: 3, SagaID: "saga-1", Status: sagalog.StatusFailed, Step: "validate_customer", RecordedAt: created},
	}}
	srv := newTestServer(t, &fakeOrders{}, nil, WithJournal(journal))

	t.Run("history", func(t *testing.T) {
		resp := get(t, srv, "/sagas/saga-1")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decodeBody[[]SagaEntryResponse](t, resp)
		require.Len(t, got, 3)
		assert.Equal(t, "STARTED", got[0].Status)
		assert.Equal(t, `{"customer_id":3}`, got[0].Payload)
		assert.Equal(t, []string{"customer 3 is not valid"}, got[1].Errors)
		assert.False(t, got[1].Terminal)
		assert.True(t, got[2].Terminal)
	})

	t.Run("status", func(t *testing.T) {
		resp := get(t, srv, "/sagas/saga-1/status")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decodeBody[SagaEntryResponse](t, resp)
		assert.Equal(t, int64(3), got.ID)
		assert.Equal(t, "FAILED", got.Status)
		assert.Equal(t, "2024-06-01T12:00:00Z", got.RecordedAt)
	})

	for _, path := range []string{"/sagas/unknown", "/sagas/unknown/status"} {
		t.Run("unknown "+path, func(t *testing.T) {
			resp := get(t, srv, path)

			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.Equal(t, "not_found", decodeBody[ErrorResponse](t, resp).Error)
		})
	}
}

func TestSagaJournalRoutes_NotMountedWithoutJournal(t *testing.T) {
	srv := newTestServer(t, &fakeOrders{}, nil)

	resp := get(t, srv, "/sagas/saga-1")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := newTestServer(t, &fakeOrders{}, map[string]Pinger{
			"store": pinger(func(context.Context) error { return nil }),
		})
		resp, err := srv.Client().Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, map[string]string{"store": "ok"}, decodeBody[map[string]string](t, resp))
	})

	t.Run("degraded", func(t *testing.T) {
		srv := newTestServer(t, &fakeOrders{}, map[string]Pinger{
			"store": pinger(func(context.Context) error { return nil }),
			"cache": pinger(func(context.Context) error { return errors.New("connection refused") }),
		})
		resp, err := srv.Client().Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		got := decodeBody[map[string]string](t, resp)
		assert.Equal(t, "connection refused", got["cache"])
	})
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t, &fakeOrders{}, nil)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "metrics", string(body))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusRequestTimeout, HTTPStatus(context.DeadlineExceeded))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("lookup: %w", domain.NotFound("missing"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("x")))
}
