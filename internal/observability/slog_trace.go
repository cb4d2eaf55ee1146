package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const taskIDKey = "task_id"

type taskIDCtxKey struct{}

// WithTaskID marks ctx as running on behalf of a task. Every record logged
// with that context carries task_id, including records from the handlers the
// executor dispatches to.
func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDCtxKey{}, id)
}

func TaskIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(taskIDCtxKey{}).(string)
	return id, ok && id != ""
}

// TraceHandler adds trace_id/span_id from the active span and task_id from
// the context, unless the logger already bound a task_id.
type TraceHandler struct {
	next        slog.Handler
	boundTaskID bool
}

func NewTraceHandler(next slog.Handler) *TraceHandler {
	return &TraceHandler{next: next}
}

func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	if id, ok := TaskIDFromContext(ctx); ok && !h.boundTaskID && !recordHas(r, taskIDKey) {
		r.AddAttrs(slog.String(taskIDKey, id))
	}
	return h.next.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := h.boundTaskID
	for _, a := range attrs {
		if a.Key == taskIDKey {
			bound = true
		}
	}
	return &TraceHandler{next: h.next.WithAttrs(attrs), boundTaskID: bound}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{next: h.next.WithGroup(name), boundTaskID: h.boundTaskID}
}

func recordHas(r slog.Record, key string) bool {
	found := false
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			found = true
			return false
		}
		return true
	})
	return found
}
