// Package interceptors decorates outbound HTTP calls with the identifiers
// of the request that triggered them.
package interceptors

import (
	"log/slog"
	"net/http"

	"github.com/jcmexdev/order-registration/internal/pkg/requestctx"
)

// HeaderXSagaID carries the saga id to downstream services.
const HeaderXSagaID = "X-Saga-Id"

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// RequestID copies the inbound request id and saga id onto every outbound
// request. Headers already set by the caller are left alone.
func RequestID(next http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		ctx := r.Context()
		requestID := requestctx.RequestID(ctx)
		sagaID := requestctx.SagaID(ctx)

		if requestID != "" || sagaID != "" {
			r = r.Clone(ctx)
			if requestID != "" && r.Header.Get(requestctx.HeaderXRequestID) == "" {
				r.Header.Set(requestctx.HeaderXRequestID, requestID)
			}
			if sagaID != "" && r.Header.Get(HeaderXSagaID) == "" {
				r.Header.Set(HeaderXSagaID, sagaID)
			}
		}

		logger.DebugContext(ctx, "outbound call", "method", r.Method, "url", r.URL.Redacted())
		return next.RoundTrip(r)
	})
}
