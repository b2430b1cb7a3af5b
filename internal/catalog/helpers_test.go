package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedAccount(t *testing.T, conn *gorm.DB, username string) *models.Account {
	t.Helper()
	account := &models.Account{Username: username, Email: username + "@example.com", PasswordHash: "hash", IsActive: true}
	require.NoError(t, conn.Omit("Roles").Create(account).Error)
	return account
}

func seedGenre(t *testing.T, conn *gorm.DB, name string) *models.Genre {
	t.Helper()
	genre := &models.Genre{Name: name}
	require.NoError(t, conn.Create(genre).Error)
	return genre
}

func seedSong(t *testing.T, conn *gorm.DB, title, artist string, genreID, ownerID uuid.UUID) *models.Song {
	t.Helper()
	song := &models.Song{
		Title:            title,
		Artist:           artist,
		FilePath:         fmt.Sprintf("/songs/%s.mp3", uuid.NewString()),
		OriginalFilename: title + ".mp3",
		ContentType:      "audio/mpeg",
		SizeBytes:        1,
		GenreID:          genreID,
		OwnerID:          ownerID,
	}
	require.NoError(t, conn.Omit("Genre").Create(song).Error)
	return song
}

func countSongs(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.WithContext(context.Background()).Model(&models.Song{}).Count(&n).Error)
	return n
}
