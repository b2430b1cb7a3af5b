package catalog

import (
	"io"
	"time"

	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	"github.com/google/uuid"
)

type GenreDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func genreFromModel(g *models.Genre) GenreDTO {
	return GenreDTO{ID: g.ID, Name: g.Name}
}

// SongDTO is the public catalog entry. FilePath is the URL the audio is
// served from.
type SongDTO struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	Artist           string    `json:"artist"`
	FilePath         string    `json:"file_path"`
	OriginalFilename string    `json:"original_filename"`
	ContentType      string    `json:"content_type"`
	SizeBytes        int64     `json:"size_bytes"`
	GenreID          uuid.UUID `json:"genre_id"`
	GenreName        string    `json:"genre_name"`
	OwnerID          uuid.UUID `json:"owner_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func SongFromModel(s *models.Song) SongDTO {
	dto := SongDTO{
		ID:               s.ID,
		Title:            s.Title,
		Artist:           s.Artist,
		FilePath:         s.FilePath,
		OriginalFilename: s.OriginalFilename,
		ContentType:      s.ContentType,
		SizeBytes:        s.SizeBytes,
		GenreID:          s.GenreID,
		OwnerID:          s.OwnerID,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	if s.Genre != nil {
		dto.GenreName = s.Genre.Name
	}
	return dto
}

func songsFromModels(rows []models.Song) []SongDTO {
	out := make([]SongDTO, 0, len(rows))
	for i := range rows {
		out = append(out, SongFromModel(&rows[i]))
	}
	return out
}

// QueryParams are the catalog browse inputs. Page is 1-based.
type QueryParams struct {
	Search   string
	GenreID  *uuid.UUID
	Sort     enums.SongSort
	Page     int
	PageSize int
}

type QueryResult struct {
	Items      []SongDTO `json:"items"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalCount int64     `json:"total_count"`
	TotalPages int       `json:"total_pages"`
}

// FileInput is an uploaded file as received from the transport layer.
type FileInput struct {
	Filename string
	Size     int64
	Body     io.Reader
}

type UploadInput struct {
	Title   string
	Artist  string
	GenreID uuid.UUID
	File    *FileInput
}

// UpdateInput carries optional changes; nil fields are left alone.
type UpdateInput struct {
	Title   *string
	Artist  *string
	GenreID *uuid.UUID
	File    *FileInput
}
