package httpapi

import (
	"context"

	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/auth/token"
)

type claimsKey struct{}

func WithClaims(ctx context.Context, c token.SessionClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func ClaimsFromContext(ctx context.Context) (token.SessionClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(token.SessionClaims)
	return c, ok && c.SubjectID != 0
}

// SubjectFromContext returns the authenticated user id, or 0 when the request
// did not pass the bearer middleware.
func SubjectFromContext(ctx context.Context) domain.UserID {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return 0
	}
	return c.SubjectID
}
