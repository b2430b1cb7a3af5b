package registration

import (
	"time"

	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/google/uuid"
)

// SubmitInput is the self-registration form.
type SubmitInput struct {
	Username    string `json:"username" validate:"required,username,min=3,max=64"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	RequestedBy string `json:"-"`
}

// RequestDTO is the admin view of a request; the password hash never leaves
// the service.
type RequestDTO struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	RequestedBy string    `json:"requested_by"`
	RequestDate time.Time `json:"request_date"`
	IsApproved  bool      `json:"is_approved"`
	IsProcessed bool      `json:"is_processed"`
	Status      Status    `json:"status"`
}

// Status is the derived lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

func FromModel(m *models.RegistrationRequest) *RequestDTO {
	if m == nil {
		return nil
	}
	status := StatusPending
	if m.IsProcessed && m.IsApproved {
		status = StatusApproved
	}
	return &RequestDTO{
		ID:          m.ID,
		Username:    m.Username,
		Email:       m.Email,
		RequestedBy: m.RequestedBy,
		RequestDate: m.RequestDate,
		IsApproved:  m.IsApproved,
		IsProcessed: m.IsProcessed,
		Status:      status,
	}
}

func fromModels(rows []models.RegistrationRequest) []RequestDTO {
	out := make([]RequestDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
