package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type runContextKey struct{}

// RunMeta correlates log lines and spans belonging to one discovery run.
type RunMeta struct {
	RunID   string
	TraceID string
	SpanID  string
}

func (m RunMeta) IsZero() bool {
	return m.RunID == "" && m.TraceID == "" && m.SpanID == ""
}

func WithRunMeta(ctx context.Context, meta RunMeta) context.Context {
	if meta.IsZero() {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runContextKey{}, meta)
}

func RunMetaFromContext(ctx context.Context) (RunMeta, bool) {
	if ctx == nil {
		return RunMeta{}, false
	}
	meta, ok := ctx.Value(runContextKey{}).(RunMeta)
	return meta, ok && !meta.IsZero()
}

func NewRunID() string {
	return uuid.NewString()
}

func TraceSpanFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return "", ""
	}
	return spanCtx.TraceID().String(), spanCtx.SpanID().String()
}

// EnsureRunMeta attaches run metadata, generating a run id when none is given.
func EnsureRunMeta(ctx context.Context, runID string) (context.Context, RunMeta) {
	if existing, ok := RunMetaFromContext(ctx); ok && runID == "" {
		runID = existing.RunID
	}
	if runID == "" {
		runID = NewRunID()
	}
	traceID, spanID := TraceSpanFromContext(ctx)
	meta := RunMeta{RunID: runID, TraceID: traceID, SpanID: spanID}
	return WithRunMeta(ctx, meta), meta
}

// RunFields returns the correlation fields for the run carried by ctx.
func RunFields(ctx context.Context) []zap.Field {
	meta, ok := RunMetaFromContext(ctx)
	if !ok {
		return nil
	}
	fields := make([]zap.Field, 0, 3)
	if meta.RunID != "" {
		fields = append(fields, RunIDField(meta.RunID))
	}
	if meta.TraceID != "" {
		fields = append(fields, TraceIDField(meta.TraceID))
	}
	if meta.SpanID != "" {
		fields = append(fields, SpanIDField(meta.SpanID))
	}
	return fields
}
