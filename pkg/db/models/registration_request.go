package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RegistrationRequest is a pending or approved self-registration. Rejected
// requests are deleted rather than stored.
type RegistrationRequest struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Username     string    `gorm:"column:username;not null"`
	Email        string    `gorm:"column:email;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	RequestedBy  string    `gorm:"column:requested_by;not null"`
	RequestDate  time.Time `gorm:"column:request_date;not null"`
	IsApproved   bool      `gorm:"column:is_approved;not null;default:false"`
	IsProcessed  bool      `gorm:"column:is_processed;not null;default:false"`
}

func (r *RegistrationRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// Pending reports whether the request still awaits an admin decision.
func (r RegistrationRequest) Pending() bool {
	return !r.IsProcessed
}
