package sagalog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// TraceInfo holds the OTel identifiers extracted from a context.
type TraceInfo struct {
	TraceID string // 32 lowercase hex chars
	SpanID  string // 16 lowercase hex chars
}

// ExtractTraceInfo returns empty ids when ctx carries no valid span,
// which is the case in tests and when tracing is disabled.
func ExtractTraceInfo(ctx context.Context) TraceInfo {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return TraceInfo{}
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// NewEntry builds an entry stamped with the active span of ctx.
//
//	entry := sagalog.NewEntry(ctx, sagaID, sagalog.StatusStepDone, "validate_customer", "", nil)
//	_ = repo.Save(ctx, entry)
func NewEntry(ctx context.Context, sagaID string, status Status, step, payload string, errs []string) *Entry {
	ti := ExtractTraceInfo(ctx)
	return &Entry{
		SagaID:     sagaID,
		Status:     status,
		Step:       step,
		Payload:    payload,
		Errors:     errs,
		TraceID:    ti.TraceID,
		SpanID:     ti.SpanID,
		RecordedAt: time.Now().UTC(),
	}
}
