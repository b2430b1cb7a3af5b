package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/musicportal-backend/pkg/cache"
	"github.com/angelmondragon/musicportal-backend/pkg/db"
	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxGenreNameLength = 64
	genreListKey       = "genres:all"
)

type GenreService interface {
	List(ctx context.Context) ([]GenreDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*GenreDTO, error)
	Create(ctx context.Context, name string) (*GenreDTO, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*GenreDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type GenreServiceParams struct {
	DB       *gorm.DB
	CacheTTL time.Duration
}

type genreService struct {
	repo  *Repository
	cache *cache.Cache[[]GenreDTO]
}

func NewGenreService(params GenreServiceParams) (GenreService, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &genreService{
		repo:  NewRepository(params.DB),
		cache: cache.New[[]GenreDTO](params.CacheTTL),
	}, nil
}

func (s *genreService) List(ctx context.Context) ([]GenreDTO, error) {
	if cached, ok := s.cache.Get(genreListKey); ok {
		return cached, nil
	}
	rows, err := s.repo.ListGenres(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list genres")
	}
	out := make([]GenreDTO, 0, len(rows))
	for i := range rows {
		out = append(out, genreFromModel(&rows[i]))
	}
	s.cache.Set(genreListKey, out)
	return out, nil
}

func (s *genreService) Get(ctx context.Context, id uuid.UUID) (*GenreDTO, error) {
	genre, err := s.repo.FindGenre(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "genre not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load genre")
	}
	dto := genreFromModel(genre)
	return &dto, nil
}

func (s *genreService) Create(ctx context.Context, name string) (*GenreDTO, error) {
	name, err := validGenreName(name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, name, uuid.Nil); err != nil {
		return nil, err
	}
	genre := &models.Genre{Name: name}
	if err := s.repo.CreateGenre(ctx, genre); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, genreExists(name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create genre")
	}
	s.cache.Flush()
	dto := genreFromModel(genre)
	return &dto, nil
}

func (s *genreService) Rename(ctx context.Context, id uuid.UUID, name string) (*GenreDTO, error) {
	name, err := validGenreName(name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, name, id); err != nil {
		return nil, err
	}
	affected, err := s.repo.RenameGenre(ctx, id, name)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, genreExists(name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rename genre")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "genre not found")
	}
	s.cache.Flush()
	return &GenreDTO{ID: id, Name: name}, nil
}

// Delete refuses while any song still references the genre.
func (s *genreService) Delete(ctx context.Context, id uuid.UUID) error {
	inUse, err := s.repo.CountSongsByGenre(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count genre songs")
	}
	if inUse > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "genre is in use").
			WithDetails(map[string]any{"songs": inUse})
	}
	affected, err := s.repo.DeleteGenre(ctx, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return pkgerrors.New(pkgerrors.CodeConflict, "genre is in use")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete genre")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "genre not found")
	}
	s.cache.Flush()
	return nil
}

func (s *genreService) ensureNameFree(ctx context.Context, name string, exclude uuid.UUID) error {
	existing, err := s.repo.FindGenreByName(ctx, name)
	if err != nil {
		if db.IsNotFound(err) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup genre")
	}
	if existing.ID == exclude {
		return nil
	}
	return genreExists(name)
}

func validGenreName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid genre").
			WithDetails(map[string]string{"name": "name is required"})
	}
	if utf8.RuneCountInString(name) > maxGenreNameLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid genre").
			WithDetails(map[string]string{"name": fmt.Sprintf("name must be at most %d characters", maxGenreNameLength)})
	}
	return name, nil
}

func genreExists(name string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("genre %q already exists", name))
}
