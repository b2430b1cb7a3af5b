package auth

import (
	"testing"
	"time"

	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "musicportal",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID:   userID,
		Username: "melody",
		Role:     enums.RoleAdministrator,
		JTI:      "jti-1",
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, "melody", claims.Username)
	require.Equal(t, enums.RoleAdministrator, claims.Role)
	require.Equal(t, "jti-1", claims.ID)
	require.Equal(t, cfg.Issuer, claims.Issuer)
	require.Equal(t, userID.String(), claims.Subject)
	require.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestMintAccessTokenGeneratesJTI(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	require.NoError(t, err)

	other := cfg
	other.Secret = "another-secret"
	_, err = ParseAccessToken(other, token)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := ParseAccessTokenAllowExpired(cfg, token)
	require.NoError(t, err)
	require.Equal(t, enums.RoleUser, claims.Role)
}

func TestMintAccessTokenRejectsBadPayload(t *testing.T) {
	cfg := testJWTConfig()

	_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: ""})
	require.Error(t, err)

	_, err = MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.RoleUser})
	require.Error(t, err)

	noSecret := cfg
	noSecret.Secret = ""
	_, err = MintAccessToken(noSecret, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	require.Error(t, err)
}

func TestActorPermissions(t *testing.T) {
	owner := uuid.New()
	user := Actor{UserID: owner, Username: "melody", Role: enums.RoleUser}
	admin := Actor{UserID: uuid.New(), Username: "admin", Role: enums.RoleAdministrator}

	if !user.CanManage(owner) {
		t.Fatal("owner should manage own resource")
	}
	if user.CanManage(uuid.New()) {
		t.Fatal("user should not manage others' resources")
	}
	if !admin.CanManage(owner) {
		t.Fatal("admin should manage any resource")
	}
	if AnonymousActor.CanManage(uuid.Nil) {
		t.Fatal("anonymous actor manages nothing")
	}
	if got := ActorFromClaims(nil); !got.IsAnonymous() {
		t.Fatalf("nil claims should map to anonymous, got %+v", got)
	}
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	cfg := testJWTConfig()
	claims := AccessTokenClaims{
		UserID:           uuid.New(),
		Role:             enums.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{ID: "j", Issuer: cfg.Issuer},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = ParseAccessTokenAllowExpired(cfg, token)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestClaimsComplete(t *testing.T) {
	full := &AccessTokenClaims{UserID: uuid.New(), Role: enums.RoleUser, RegisteredClaims: jwt.RegisteredClaims{ID: "jti"}}
	require.NoError(t, full.Complete())

	noSession := *full
	noSession.ID = ""
	require.ErrorIs(t, noSession.Complete(), ErrIncompleteToken)

	var missing *AccessTokenClaims
	require.ErrorIs(t, missing.Complete(), ErrIncompleteToken)
}
