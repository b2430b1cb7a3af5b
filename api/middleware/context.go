package middleware

import (
	"context"

	pkgAuth "github.com/angelmondragon/musicportal-backend/pkg/auth"
	"github.com/google/uuid"
)

type claimsKey struct{}

// WithClaims stores verified access token claims on the request context.
func WithClaims(ctx context.Context, claims *pkgAuth.AccessTokenClaims) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns nil on unauthenticated requests.
func ClaimsFromContext(ctx context.Context) *pkgAuth.AccessTokenClaims {
	claims, _ := ctx.Value(claimsKey{}).(*pkgAuth.AccessTokenClaims)
	return claims
}

// ActorFromContext falls back to the anonymous actor.
func ActorFromContext(ctx context.Context) pkgAuth.Actor {
	return pkgAuth.ActorFromClaims(ClaimsFromContext(ctx))
}

// UserIDFromContext is "" for anonymous callers.
func UserIDFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil && claims.UserID != uuid.Nil {
		return claims.UserID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return string(claims.Role)
	}
	return ""
}
