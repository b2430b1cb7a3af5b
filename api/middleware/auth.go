package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/musicportal-backend/api/responses"
	pkgAuth "github.com/angelmondragon/musicportal-backend/pkg/auth"
	"github.com/angelmondragon/musicportal-backend/pkg/auth/session"
	"github.com/angelmondragon/musicportal-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
)

// TokenHeader mirrors the issued access token for clients that read headers.
const TokenHeader = "X-MP-Token"

// BearerToken returns the Authorization bearer value, or "" when absent.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ParseBearer verifies the request's bearer token. allowExpired is for
// logout and refresh, which must accept a token past its exp.
func ParseBearer(r *http.Request, cfg config.JWTConfig, allowExpired bool) (*pkgAuth.AccessTokenClaims, error) {
	token := BearerToken(r)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	parse := pkgAuth.ParseAccessToken
	if allowExpired {
		parse = pkgAuth.ParseAccessTokenAllowExpired
	}
	claims, err := parse(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if err := claims.Complete(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	return claims, nil
}

// authenticate also requires the token's session to still exist, so tokens
// die with logout or refresh rotation rather than at exp.
func authenticate(r *http.Request, cfg config.JWTConfig, sessions session.AccessSessionChecker) (*pkgAuth.AccessTokenClaims, error) {
	claims, err := ParseBearer(r, cfg, false)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		return claims, nil
	}
	live, err := sessions.HasSession(r.Context(), claims.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	}
	if !live {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
	}
	return claims, nil
}

// Auth rejects requests without a valid token and live session.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r, cfg, sessions)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(signedIn(r, claims, logg)))
		})
	}
}

// OptionalAuth signs the caller in when it can and otherwise continues
// anonymously. Bad tokens are not an error here.
func OptionalAuth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, err := authenticate(r, cfg, sessions); err == nil {
				r = r.WithContext(signedIn(r, claims, logg))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func signedIn(r *http.Request, claims *pkgAuth.AccessTokenClaims, logg *logger.Logger) context.Context {
	ctx := WithClaims(r.Context(), claims)
	return logg.WithActor(ctx, claims.UserID.String(), claims.Username, string(claims.Role))
}
