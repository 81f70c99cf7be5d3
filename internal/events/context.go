package events

import (
	"context"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// WithRequestID tags ctx with the id attached to every audit entry recorded under it.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// EnsureRequestID returns ctx unchanged if it already carries an id,
// otherwise a child tagged with a fresh uuid.
func EnsureRequestID(ctx context.Context) context.Context {
	if RequestID(ctx) != "" {
		return ctx
	}
	return WithRequestID(ctx, uuid.NewString())
}
