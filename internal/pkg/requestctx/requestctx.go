// Package requestctx carries per-request identifiers through context.Context.
package requestctx

import "context"

// contextKey is unexported so values set here cannot collide with keys from
// other packages using the same string.
type contextKey string

const (
	HeaderXRequestID      = "X-Request-Id"
	HeaderXIdempotencyKey = "X-Idempotency-Key"

	requestIDKey      contextKey = "request_id"
	idempotencyKeyKey contextKey = "idempotency_key"
	sagaIDKey         contextKey = "saga_id"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKeyKey, key)
}

// IdempotencyKey returns "" when the caller sent none.
func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyKey).(string)
	return key
}

func WithSagaID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sagaIDKey, id)
}

func SagaID(ctx context.Context) string {
	id, _ := ctx.Value(sagaIDKey).(string)
	return id
}
