package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	keyRequestID ctxKey = iota
	keyParticipant
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)
	return v, ok
}

// WithParticipant tags ctx so every record logged with it names the participant.
func WithParticipant(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyParticipant, id)
}

func Participant(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyParticipant).(string)
	return v, ok
}

// AttrsFromCtx returns req_id, participant and trace_id/span_id for
// whichever of them ctx carries.
func AttrsFromCtx(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if v, ok := RequestID(ctx); ok && v != "" {
		attrs = append(attrs, slog.String("req_id", v))
	}
	if v, ok := Participant(ctx); ok && v != "" {
		attrs = append(attrs, slog.String("participant", v))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}

// contextHandler adds AttrsFromCtx to every record logged with a context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(AttrsFromCtx(ctx)...)
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
