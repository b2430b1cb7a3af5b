package controllers

import (
	"net/http"

	"github.com/angelmondragon/musicportal-backend/api/responses"
	"github.com/angelmondragon/musicportal-backend/api/validators"
	"github.com/angelmondragon/musicportal-backend/internal/catalog"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
)

type genreRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

func GenreList(svc catalog.GenreService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		genres, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, genres)
	}
}

func AdminGenreCreate(svc catalog.GenreService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body genreRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		genre, err := svc.Create(r.Context(), body.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, genre)
	}
}

func AdminGenreRename(svc catalog.GenreService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "genreId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body genreRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		genre, err := svc.Rename(r.Context(), id, body.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, genre)
	}
}

func AdminGenreDelete(svc catalog.GenreService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "genreId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
