package httpx

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/order-registration/internal/pkg/requestctx"
)

// AttachRequestContext copies the request id assigned by middleware.RequestID
// and the caller's idempotency key into the request context, and echoes the
// request id back to the caller.
func AttachRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		idempotencyKey := strings.TrimSpace(r.Header.Get(requestctx.HeaderXIdempotencyKey))

		ctx := requestctx.WithRequestID(r.Context(), requestID)
		ctx = requestctx.WithIdempotencyKey(ctx, idempotencyKey)

		if requestID != "" {
			w.Header().Set(requestctx.HeaderXRequestID, requestID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
