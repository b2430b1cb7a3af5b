package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/musicportal-backend/internal/accounts"
	pkgAuth "github.com/angelmondragon/musicportal-backend/pkg/auth"
	"github.com/angelmondragon/musicportal-backend/pkg/auth/session"
	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/google/uuid"
)

// Service defines the behavior needed by the auth controllers.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, claims *pkgAuth.AccessTokenClaims) error
	Refresh(ctx context.Context, claims *pkgAuth.AccessTokenClaims, refreshToken string) (*TokenPair, error)
}

type service struct {
	accounts accountStore
	pending  pendingChecker
	session  sessionManager
	jwtCfg   config.JWTConfig
	now      func() time.Time
}

type accountStore interface {
	VerifyCredentials(ctx context.Context, username, password string) (*models.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type pendingChecker interface {
	PendingFor(ctx context.Context, username string) (bool, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Accounts       accountStore
	Registrations  pendingChecker
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	Clock          func() time.Time
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Accounts == nil {
		return nil, fmt.Errorf("accounts store is required")
	}
	if params.Registrations == nil {
		return nil, fmt.Errorf("registration checker is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	now := params.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		accounts: params.Accounts,
		pending:  params.Registrations,
		session:  params.SessionManager,
		jwtCfg:   params.JWTConfig,
		now:      now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	username := strings.TrimSpace(req.Username)

	// A pending request wins over any credential outcome.
	pending, err := s.pending.PendingFor(ctx, username)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, pkgerrors.New(pkgerrors.CodePendingApproval, "your registration is awaiting administrator approval")
	}

	account, err := s.accounts.VerifyCredentials(ctx, username, req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.accounts.RecordLogin(ctx, account.ID, now); err != nil {
		return nil, err
	}
	account.LastLoginAt = &now

	accessToken, refreshToken, err := s.issue(ctx, account, now)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		TokenPair: s.pair(accessToken, refreshToken),
		User:      accounts.FromModel(account),
	}, nil
}

func (s *service) Logout(ctx context.Context, claims *pkgAuth.AccessTokenClaims) error {
	if claims == nil || claims.ID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if err := s.session.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke session")
	}
	return nil
}

// Refresh rotates the refresh token and mints a new access token carrying the
// account's current role. Deactivated accounts cannot refresh.
func (s *service) Refresh(ctx context.Context, claims *pkgAuth.AccessTokenClaims, refreshToken string) (*TokenPair, error) {
	if claims == nil || claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	account, err := s.accounts.FindByID(ctx, claims.UserID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	}

	newAccessID, newRefreshToken, err := s.session.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rotate session")
	}

	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now(), pkgAuth.AccessTokenPayload{
		UserID:   account.ID,
		Username: account.Username,
		Role:     accounts.PrimaryRole(account.RoleNames()),
		JTI:      newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	pair := s.pair(accessToken, newRefreshToken)
	return &pair, nil
}

func (s *service) pair(access, refresh string) TokenPair {
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(pkgAuth.AccessTokenTTL(s.jwtCfg).Seconds()),
	}
}

func (s *service) issue(ctx context.Context, account *models.Account, now time.Time) (string, string, error) {
	accessID := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID:   account.ID,
		Username: account.Username,
		Role:     accounts.PrimaryRole(account.RoleNames()),
		JTI:      accessID,
	})
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, accessID)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}
	return accessToken, refreshToken, nil
}
