package middleware

import (
	"context"

	"github.com/google/uuid"
)

// OpIDField is the log field carrying the operation id.
const OpIDField = "op_id"

type opIDKey struct{}

// WithOpID stores an operation id in ctx so that nested layers log the same value.
func WithOpID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, opIDKey{}, id)
}

// OpIDFromContext returns the operation id stored in ctx, or "".
func OpIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(opIDKey{}).(string); ok {
		return v
	}
	return ""
}

// ensureOpID reuses the caller's id when present and generates a new UUID otherwise.
func ensureOpID(ctx context.Context) (context.Context, string) {
	if id := OpIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithOpID(ctx, id), id
}
