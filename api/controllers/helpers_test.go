package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/musicportal-backend/api/middleware"
	"github.com/angelmondragon/musicportal-backend/pkg/auth"
	"github.com/angelmondragon/musicportal-backend/pkg/auth/session"
	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}

func mintTestToken(t *testing.T, cfg config.JWTConfig, role enums.Role) (string, string) {
	t.Helper()
	accessID := session.NewAccessID()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		UserID:   uuid.New(),
		Username: "tester",
		Role:     role,
		JTI:      accessID,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	return token, accessID
}

// withActor simulates the Auth middleware having run.
func withActor(req *http.Request, id uuid.UUID, role enums.Role) *http.Request {
	claims := &auth.AccessTokenClaims{UserID: id, Username: "tester", Role: role}
	return req.WithContext(middleware.WithClaims(req.Context(), claims))
}

// serveRoute mounts handler under pattern so chi URL params resolve.
func serveRoute(method, pattern string, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, handler)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}
