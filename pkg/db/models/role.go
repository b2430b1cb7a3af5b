package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name string    `gorm:"column:name;not null;uniqueIndex"`
}

func (r *Role) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// AccountRole is the explicit join row between accounts and roles.
type AccountRole struct {
	AccountID uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey"`
	RoleID    uuid.UUID `gorm:"column:role_id;type:uuid;primaryKey"`
}
