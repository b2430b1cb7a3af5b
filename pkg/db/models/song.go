package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Song is a catalog entry pointing at an uploaded audio file.
type Song struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title            string    `gorm:"column:title;size:100;not null"`
	Artist           string    `gorm:"column:artist;size:100;not null"`
	FilePath         string    `gorm:"column:file_path;size:255;not null"`
	OriginalFilename string    `gorm:"column:original_filename;not null"`
	ContentType      string    `gorm:"column:content_type;not null"`
	SizeBytes        int64     `gorm:"column:size_bytes;not null"`
	GenreID          uuid.UUID `gorm:"column:genre_id;type:uuid;not null"`
	Genre            *Genre    `gorm:"foreignKey:GenreID"`
	OwnerID          uuid.UUID `gorm:"column:owner_id;type:uuid;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Song) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
