// Package reqctx carries request-scoped values through context.Context.
package reqctx

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header and gRPC metadata key request ids travel under.
const Header = "graphql-request-id"

type idKey struct{}

type attrsKey struct{}

// NewContext returns a copy of parent with a new random request ID stored.
// It also returns the generated ID.
func NewContext(parent context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(parent, idKey{}, id), id
}

// WithID stores an ID received from upstream. Empty ids are replaced with a
// fresh one.
func WithID(parent context.Context, id string) (context.Context, string) {
	if id == "" {
		return NewContext(parent)
	}
	return context.WithValue(parent, idKey{}, id), id
}

// FromContext extracts the request ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey{}).(string)
	return id, ok
}

// WithAttributes returns a copy of parent carrying attrs in addition to any
// attributes already present. Later values win.
func WithAttributes(parent context.Context, attrs map[string]string) context.Context {
	prev := Attributes(parent)
	merged := make(map[string]string, len(prev)+len(attrs))
	for k, v := range prev {
		merged[k] = v
	}
	for k, v := range attrs {
		merged[k] = v
	}
	return context.WithValue(parent, attrsKey{}, merged)
}

// Attributes returns the attributes stored in ctx. The map must not be
// modified.
func Attributes(ctx context.Context) map[string]string {
	attrs, _ := ctx.Value(attrsKey{}).(map[string]string)
	return attrs
}
