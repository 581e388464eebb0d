package identity

import (
	"context"

	"github.com/iota-uz/saaskit/pkg/constants"
)

func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, constants.IdentityKey, ident)
}

// FromContext returns the identity resolved for the current request, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	ident, ok := ctx.Value(constants.IdentityKey).(*Identity)
	return ident, ok && ident != nil
}
