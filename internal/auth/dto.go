package auth

import (
	"github.com/angelmondragon/musicportal-backend/internal/accounts"
)

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is the credential set handed to a client. ExpiresIn is the
// access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type LoginResponse struct {
	TokenPair
	User *accounts.AccountDTO `json:"user"`
}
