package identity

import "context"

type ctxKey struct{}

// WithIdentity stores a resolved identity in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by the auth middleware, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	if v := ctx.Value(ctxKey{}); v != nil {
		if id, ok := v.(Identity); ok && id.Valid() {
			return id, true
		}
	}
	return Identity{}, false
}
