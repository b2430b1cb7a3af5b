package accounts

import (
	"time"

	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/google/uuid"
)

// AccountDTO is the transport shape that omits credentials.
type AccountDTO struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"is_active"`
	Roles       []string   `json:"roles"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func FromModel(a *models.Account) *AccountDTO {
	if a == nil {
		return nil
	}
	return &AccountDTO{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		IsActive:    a.IsActive,
		Roles:       a.RoleNames(),
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// CreateAccountInput carries a plaintext password that is checked against
// the password policy and hashed.
type CreateAccountInput struct {
	Username string
	Email    string
	Password string
}

// CreateAccountWithHashInput carries a hash produced earlier from a password
// that already passed the policy.
type CreateAccountWithHashInput struct {
	Username     string
	Email        string
	PasswordHash string
}

// UpdateInput is the admin edit form. Roles, when non-nil, is the complete
// desired role set.
type UpdateInput struct {
	Username string   `json:"username" validate:"required,username,min=3,max=64"`
	Email    string   `json:"email" validate:"required,email"`
	IsActive *bool    `json:"is_active,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

type ListResult struct {
	Accounts   []AccountDTO `json:"accounts"`
	NextCursor string       `json:"next_cursor,omitempty"`
}
