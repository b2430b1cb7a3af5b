package controllers

import (
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/musicportal-backend/api/middleware"
	"github.com/angelmondragon/musicportal-backend/api/responses"
	"github.com/angelmondragon/musicportal-backend/api/validators"
	"github.com/angelmondragon/musicportal-backend/internal/catalog"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
)

const (
	// multipartMemory is how much of a form is buffered before spilling to temp files.
	multipartMemory = 8 << 20
	// formOverhead leaves room for the text fields and boundaries around the file.
	formOverhead = 1 << 20
)

// SongQuery browses the catalog with search, genre filter, sort and paging.
func SongQuery(svc catalog.QueryService, maxPageSize int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		// out of range pages are answered with an empty page by the catalog
		page, err := validators.ParseQueryInt(r, "page", 1, math.MinInt32, math.MaxInt32)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pageSize, err := validators.ParseQueryInt(r, "page_size", 0, 0, maxPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		genreID, err := validators.ParseQueryUUID(r, "genre_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		q := r.URL.Query()
		result, err := svc.Query(r.Context(), catalog.QueryParams{
			Search:   q.Get("search"),
			GenreID:  genreID,
			Sort:     enums.ParseSongSort(q.Get("sort")),
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func SongGet(svc catalog.SongService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "songId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		song, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, song)
	}
}

// SongUpload accepts multipart/form-data with title, artist, genre_id and file.
func SongUpload(svc catalog.SongService, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := readSongForm(w, r, maxUploadBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer form.close()

		input := catalog.UploadInput{
			Title:  form.value("title"),
			Artist: form.value("artist"),
			File:   form.file,
		}
		if raw := form.value("genre_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, invalidGenreField())
				return
			}
			input.GenreID = id
		}

		song, err := svc.Upload(r.Context(), middleware.ActorFromContext(r.Context()), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, song)
	}
}

// SongUpdate applies a partial multipart edit; absent fields are unchanged.
func SongUpdate(svc catalog.SongService, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "songId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		form, err := readSongForm(w, r, maxUploadBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer form.close()

		input := catalog.UpdateInput{
			Title:  form.optional("title"),
			Artist: form.optional("artist"),
			File:   form.file,
		}
		if raw := form.optional("genre_id"); raw != nil {
			genreID, err := uuid.Parse(strings.TrimSpace(*raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, invalidGenreField())
				return
			}
			input.GenreID = &genreID
		}

		song, err := svc.Update(r.Context(), middleware.ActorFromContext(r.Context()), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, song)
	}
}

func SongDelete(svc catalog.SongService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "songId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), middleware.ActorFromContext(r.Context()), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type songForm struct {
	form *multipart.Form
	file *catalog.FileInput
	body multipart.File
}

func readSongForm(w http.ResponseWriter, r *http.Request, maxUploadBytes int64) (*songForm, error) {
	if maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+formOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "upload too large").
				WithDetails(map[string]any{"max_bytes": maxUploadBytes})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}

	f := &songForm{form: r.MultipartForm}
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		f.body = file
		f.file = &catalog.FileInput{Filename: header.Filename, Size: header.Size, Body: file}
	case errors.Is(err, http.ErrMissingFile):
	default:
		f.close()
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid file part")
	}
	return f, nil
}

func (f *songForm) value(key string) string {
	if v := f.optional(key); v != nil {
		return *v
	}
	return ""
}

func (f *songForm) optional(key string) *string {
	if f.form == nil {
		return nil
	}
	values, ok := f.form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func (f *songForm) close() {
	if f.body != nil {
		_ = f.body.Close()
	}
	if f.form != nil {
		_ = f.form.RemoveAll()
	}
}

func invalidGenreField() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid song").
		WithDetails(map[string]string{"genre_id": "must be a valid id"})
}
