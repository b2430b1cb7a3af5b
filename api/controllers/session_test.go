package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/musicportal-backend/api/middleware"
	"github.com/angelmondragon/musicportal-backend/internal/auth"
	pkgAuth "github.com/angelmondragon/musicportal-backend/pkg/auth"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
)

type stubAuthService struct {
	loginReq      auth.LoginRequest
	loginResp     *auth.LoginResponse
	loginErr      error
	logoutClaims  *pkgAuth.AccessTokenClaims
	logoutErr     error
	refreshClaims *pkgAuth.AccessTokenClaims
	refreshToken  string
	refreshResp   *auth.TokenPair
	refreshErr    error
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	s.loginReq = req
	return s.loginResp, s.loginErr
}

func (s *stubAuthService) Logout(ctx context.Context, claims *pkgAuth.AccessTokenClaims) error {
	s.logoutClaims = claims
	return s.logoutErr
}

func (s *stubAuthService) Refresh(ctx context.Context, claims *pkgAuth.AccessTokenClaims, refreshToken string) (*auth.TokenPair, error) {
	s.refreshClaims = claims
	s.refreshToken = refreshToken
	return s.refreshResp, s.refreshErr
}

func TestAuthLogout(t *testing.T) {
	svc := &stubAuthService{}
	handler := AuthLogout(svc, testJWT, nil)

	token, jti := mintTestToken(t, testJWT, enums.RoleUser)
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.logoutClaims == nil || svc.logoutClaims.ID != jti {
		t.Fatalf("expected logout for session %s", jti)
	}
}

func TestAuthLogoutMissingToken(t *testing.T) {
	svc := &stubAuthService{}
	rec := httptest.NewRecorder()
	AuthLogout(svc, testJWT, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if svc.logoutClaims != nil {
		t.Fatalf("service should not be called")
	}
}

func TestAuthRefresh(t *testing.T) {
	svc := &stubAuthService{refreshResp: &auth.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}}
	handler := AuthRefresh(svc, testJWT, nil)

	token, jti := mintTestToken(t, testJWT, enums.RoleUser)
	req := httptest.NewRequest(http.MethodPost, "/refresh", bytes.NewBufferString(`{"refresh_token":"old-refresh"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.refreshClaims.ID != jti || svc.refreshToken != "old-refresh" {
		t.Fatalf("unexpected refresh args %s %s", svc.refreshClaims.ID, svc.refreshToken)
	}
	var envelope struct {
		Data auth.TokenPair `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.RefreshToken != "new-refresh" {
		t.Fatalf("expected refresh token new-refresh got %s", envelope.Data.RefreshToken)
	}
	if rec.Header().Get(middleware.TokenHeader) != "new-access" {
		t.Fatalf("expected header token match body token")
	}
}

func TestAuthRefreshInvalidToken(t *testing.T) {
	svc := &stubAuthService{refreshErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")}
	handler := AuthRefresh(svc, testJWT, nil)

	token, _ := mintTestToken(t, testJWT, enums.RoleUser)
	req := httptest.NewRequest(http.MethodPost, "/refresh", bytes.NewBufferString(`{"refresh_token":"old-refresh"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
