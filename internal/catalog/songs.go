package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/angelmondragon/musicportal-backend/internal/intake"
	"github.com/angelmondragon/musicportal-backend/pkg/auth"
	"github.com/angelmondragon/musicportal-backend/pkg/db"
	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxTitleLength    = 100
	maxArtistLength   = 100
	maxFilePathLength = 255
)

// SongService manages catalog entries and the files behind them.
type SongService interface {
	Upload(ctx context.Context, actor auth.Actor, input UploadInput) (*SongDTO, error)
	Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateInput) (*SongDTO, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*SongDTO, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]SongDTO, error)
}

type txRunner interface {
	DB() *gorm.DB
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type fileStore interface {
	Store(ctx context.Context, upload intake.Upload) (*intake.StoredFile, error)
	Remove(ctx context.Context, reference string) error
}

type SongServiceParams struct {
	DB     txRunner
	Files  fileStore
	Outbox outbox.Emitter
	Logger *logger.Logger
}

type songService struct {
	db     txRunner
	repo   *Repository
	files  fileStore
	outbox outbox.Emitter
	logg   *logger.Logger
}

func NewSongService(params SongServiceParams) (SongService, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if params.Files == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}
	return &songService{
		db:     params.DB,
		repo:   NewRepository(params.DB.DB()),
		files:  params.Files,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

func (s *songService) Upload(ctx context.Context, actor auth.Actor, input UploadInput) (*SongDTO, error) {
	if actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to upload songs")
	}

	title := strings.TrimSpace(input.Title)
	artist := strings.TrimSpace(input.Artist)
	fields := map[string]string{}
	checkText(fields, "title", title, maxTitleLength)
	checkText(fields, "artist", artist, maxArtistLength)
	if input.GenreID == uuid.Nil {
		fields["genre_id"] = "genre_id is required"
	}
	if input.File == nil || input.File.Body == nil {
		fields["file"] = "file is required"
	}
	if len(fields) > 0 {
		return nil, invalidSong(fields)
	}

	genre, err := s.lookupGenre(ctx, input.GenreID)
	if err != nil {
		return nil, err
	}

	stored, err := s.files.Store(ctx, intake.Upload{Filename: input.File.Filename, Size: input.File.Size, Body: input.File.Body})
	if err != nil {
		return nil, err
	}

	song := &models.Song{
		ID:               uuid.New(),
		Title:            title,
		Artist:           artist,
		GenreID:          genre.ID,
		OwnerID:          actor.UserID,
		FilePath:         stored.Reference,
		OriginalFilename: stored.OriginalFilename,
		ContentType:      stored.ContentType,
		SizeBytes:        stored.SizeBytes,
	}
	if err := checkFilePath(song.FilePath); err != nil {
		s.discard(ctx, stored.Reference)
		return nil, err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := NewRepository(tx).CreateSong(ctx, song); err != nil {
			if db.IsForeignKeyViolation(err) {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid song").
					WithDetails(map[string]string{"genre_id": "genre does not exist"})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create song")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSongUploaded,
			AggregateType: enums.AggregateSong,
			AggregateID:   song.ID,
			Actor:         actorRef(actor),
			Data: payloads.SongUploadedEvent{
				SongID:    song.ID,
				Title:     song.Title,
				Artist:    song.Artist,
				GenreID:   song.GenreID,
				OwnerID:   song.OwnerID,
				FilePath:  song.FilePath,
				SizeBytes: song.SizeBytes,
			},
		})
	})
	if err != nil {
		s.discard(ctx, stored.Reference)
		return nil, err
	}

	song.Genre = genre
	dto := SongFromModel(song)
	return &dto, nil
}

func (s *songService) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateInput) (*SongDTO, error) {
	song, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if input.Title != nil {
		song.Title = strings.TrimSpace(*input.Title)
		checkText(fields, "title", song.Title, maxTitleLength)
	}
	if input.Artist != nil {
		song.Artist = strings.TrimSpace(*input.Artist)
		checkText(fields, "artist", song.Artist, maxArtistLength)
	}
	if input.GenreID != nil && *input.GenreID == uuid.Nil {
		fields["genre_id"] = "genre_id is invalid"
	}
	if len(fields) > 0 {
		return nil, invalidSong(fields)
	}
	if input.GenreID != nil && *input.GenreID != song.GenreID {
		genre, err := s.lookupGenre(ctx, *input.GenreID)
		if err != nil {
			return nil, err
		}
		song.GenreID = genre.ID
		song.Genre = genre
	}

	oldPath := ""
	newPath := ""
	if input.File != nil && input.File.Body != nil {
		stored, err := s.files.Store(ctx, intake.Upload{Filename: input.File.Filename, Size: input.File.Size, Body: input.File.Body})
		if err != nil {
			return nil, err
		}
		oldPath, newPath = song.FilePath, stored.Reference
		song.FilePath = stored.Reference
		song.OriginalFilename = stored.OriginalFilename
		song.ContentType = stored.ContentType
		song.SizeBytes = stored.SizeBytes
		if err := checkFilePath(song.FilePath); err != nil {
			s.discard(ctx, newPath)
			return nil, err
		}
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := NewRepository(tx).UpdateSong(ctx, song); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update song")
		}
		return nil
	})
	if err != nil {
		if newPath != "" {
			s.discard(ctx, newPath)
		}
		return nil, err
	}
	if oldPath != "" {
		s.discard(ctx, oldPath)
	}

	return s.Get(ctx, song.ID)
}

func (s *songService) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	song, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := NewRepository(tx).DeleteSong(ctx, song.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete song")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "song not found")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSongDeleted,
			AggregateType: enums.AggregateSong,
			AggregateID:   song.ID,
			Actor:         actorRef(actor),
			Data: payloads.SongDeletedEvent{
				SongID:   song.ID,
				OwnerID:  song.OwnerID,
				FilePath: song.FilePath,
			},
		})
	})
	if err != nil {
		return err
	}

	s.discard(ctx, song.FilePath)
	return nil
}

func (s *songService) Get(ctx context.Context, id uuid.UUID) (*SongDTO, error) {
	song, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := SongFromModel(song)
	return &dto, nil
}

func (s *songService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]SongDTO, error) {
	rows, err := s.repo.ListSongs(ctx, songFilter{OwnerID: &ownerID}, enums.SongSortTitleAsc, 0, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list songs")
	}
	return songsFromModels(rows), nil
}

func (s *songService) find(ctx context.Context, id uuid.UUID) (*models.Song, error) {
	song, err := s.repo.FindSong(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "song not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load song")
	}
	return song, nil
}

func (s *songService) loadManaged(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Song, error) {
	if actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	song, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(song.OwnerID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the owner or an administrator can change this song")
	}
	return song, nil
}

func (s *songService) lookupGenre(ctx context.Context, id uuid.UUID) (*models.Genre, error) {
	genre, err := s.repo.FindGenre(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, invalidSong(map[string]string{"genre_id": "genre does not exist"})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load genre")
	}
	return genre, nil
}

// discard removes a stored file that is no longer referenced. Failures leave
// an orphan on disk and are only logged.
func (s *songService) discard(ctx context.Context, reference string) {
	if err := s.files.Remove(ctx, reference); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "file_path", reference), "failed to remove song file", err)
	}
}

func checkText(fields map[string]string, name, value string, max int) {
	switch {
	case value == "":
		fields[name] = name + " is required"
	case utf8.RuneCountInString(value) > max:
		fields[name] = fmt.Sprintf("%s must be at most %d characters", name, max)
	}
}

func checkFilePath(path string) error {
	if len(path) > maxFilePathLength {
		return pkgerrors.New(pkgerrors.CodeStorage, "file reference too long")
	}
	return nil
}

func invalidSong(fields map[string]string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid song").WithDetails(fields)
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Username: actor.Username, Role: actor.Role.String()}
}
