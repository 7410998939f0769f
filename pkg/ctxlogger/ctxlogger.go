package ctxlogger

import (
	"context"
	"log/slog"
)

type ctxKey int

const attrsCtxKey ctxKey = 0

// AppendCtx returns a context carrying attrs that ContextHandler will add
// to every record logged with it.
func AppendCtx(ctx context.Context, attrs ...slog.Attr) context.Context {
	existing, _ := ctx.Value(attrsCtxKey).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)

	return context.WithValue(ctx, attrsCtxKey, merged)
}

// ContextHandler wraps a slog.Handler and injects attrs stored in the
// context by AppendCtx.
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(attrsCtxKey).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}

	return h.Handler.Handle(ctx, r)
}
