package catalog

import (
	"context"
	"strings"

	"github.com/angelmondragon/musicportal-backend/internal/repo"
	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists songs and genres.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// songFilter narrows the catalog. Zero values match everything.
type songFilter struct {
	Search  string
	GenreID *uuid.UUID
	OwnerID *uuid.UUID
}

var songOrder = map[enums.SongSort]string{
	enums.SongSortTitleAsc:   "songs.title ASC, songs.id ASC",
	enums.SongSortTitleDesc:  "songs.title DESC, songs.id ASC",
	enums.SongSortArtistAsc:  "songs.artist ASC, songs.id ASC",
	enums.SongSortArtistDesc: "songs.artist DESC, songs.id ASC",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *Repository) songs(ctx context.Context, f songFilter) *gorm.DB {
	q := r.DB(ctx).Model(&models.Song{})
	if f.Search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(f.Search)) + "%"
		q = q.Where(`(LOWER(songs.title) LIKE ? ESCAPE '\' OR LOWER(songs.artist) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if f.GenreID != nil {
		q = q.Where("songs.genre_id = ?", *f.GenreID)
	}
	if f.OwnerID != nil {
		q = q.Where("songs.owner_id = ?", *f.OwnerID)
	}
	return q
}

func (r *Repository) CountSongs(ctx context.Context, f songFilter) (int64, error) {
	var count int64
	if err := r.songs(ctx, f).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repository) ListSongs(ctx context.Context, f songFilter, sort enums.SongSort, offset, limit int) ([]models.Song, error) {
	order, ok := songOrder[sort]
	if !ok {
		order = songOrder[enums.SongSortTitleAsc]
	}
	var rows []models.Song
	q := r.songs(ctx, f).Preload("Genre").Order(order)
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) CreateSong(ctx context.Context, song *models.Song) error {
	return r.DB(ctx).Omit("Genre").Create(song).Error
}

func (r *Repository) FindSong(ctx context.Context, id uuid.UUID) (*models.Song, error) {
	return repo.First[models.Song](ctx, r.Base, []string{"Genre"}, "id = ?", id)
}

// UpdateSong writes the song's mutable columns.
func (r *Repository) UpdateSong(ctx context.Context, song *models.Song) error {
	return r.DB(ctx).Model(&models.Song{}).Where("id = ?", song.ID).Updates(map[string]any{
		"title":             song.Title,
		"artist":            song.Artist,
		"genre_id":          song.GenreID,
		"file_path":         song.FilePath,
		"original_filename": song.OriginalFilename,
		"content_type":      song.ContentType,
		"size_bytes":        song.SizeBytes,
	}).Error
}

func (r *Repository) DeleteSong(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Delete(&models.Song{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

func (r *Repository) ListGenres(ctx context.Context) ([]models.Genre, error) {
	var rows []models.Genre
	if err := r.DB(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindGenre(ctx context.Context, id uuid.UUID) (*models.Genre, error) {
	return repo.First[models.Genre](ctx, r.Base, nil, "id = ?", id)
}

func (r *Repository) FindGenreByName(ctx context.Context, name string) (*models.Genre, error) {
	return repo.First[models.Genre](ctx, r.Base, nil, "LOWER(name) = ?", strings.ToLower(name))
}

func (r *Repository) CreateGenre(ctx context.Context, genre *models.Genre) error {
	return r.DB(ctx).Create(genre).Error
}

func (r *Repository) RenameGenre(ctx context.Context, id uuid.UUID, name string) (int64, error) {
	res := r.DB(ctx).Model(&models.Genre{}).Where("id = ?", id).Update("name", name)
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteGenre(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Delete(&models.Genre{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

func (r *Repository) CountSongsByGenre(ctx context.Context, genreID uuid.UUID) (int64, error) {
	return r.CountSongs(ctx, songFilter{GenreID: &genreID})
}
