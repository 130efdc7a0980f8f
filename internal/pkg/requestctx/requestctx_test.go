package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, IdempotencyKey(ctx))
	assert.Empty(t, SagaID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithIdempotencyKey(ctx, "idem-1")
	ctx = WithSagaID(ctx, "saga-1")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "idem-1", IdempotencyKey(ctx))
	assert.Equal(t, "saga-1", SagaID(ctx))
}

func TestEmptyValuesAreNotStored(t *testing.T) {
	t.Parallel()

	parent := WithRequestID(context.Background(), "req-1")
	ctx := WithRequestID(parent, "")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, parent, WithIdempotencyKey(parent, ""))
}
