package controllers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/musicportal-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
)

type stubGenres struct {
	created string
	renamed uuid.UUID
	err     error
}

func (s *stubGenres) List(ctx context.Context) ([]catalog.GenreDTO, error) {
	return []catalog.GenreDTO{{ID: uuid.New(), Name: "Rock"}}, nil
}

func (s *stubGenres) Get(ctx context.Context, id uuid.UUID) (*catalog.GenreDTO, error) {
	return &catalog.GenreDTO{ID: id}, nil
}

func (s *stubGenres) Create(ctx context.Context, name string) (*catalog.GenreDTO, error) {
	s.created = name
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.GenreDTO{ID: uuid.New(), Name: name}, nil
}

func (s *stubGenres) Rename(ctx context.Context, id uuid.UUID, name string) (*catalog.GenreDTO, error) {
	s.renamed = id
	return &catalog.GenreDTO{ID: id, Name: name}, s.err
}

func (s *stubGenres) Delete(ctx context.Context, id uuid.UUID) error {
	return s.err
}

func TestAdminGenreCreate(t *testing.T) {
	svc := &stubGenres{}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/genres", bytes.NewBufferString(`{"name":"Blues"}`))
	rec := httptest.NewRecorder()
	AdminGenreCreate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "Blues", svc.created)
}

func TestAdminGenreDeleteInUse(t *testing.T) {
	svc := &stubGenres{err: pkgerrors.New(pkgerrors.CodeConflict, "genre is in use by songs")}
	req := httptest.NewRequest(http.MethodDelete, "/api/admin/v1/genres/"+uuid.NewString(), nil)
	rec := serveRoute(http.MethodDelete, "/api/admin/v1/genres/{genreId}", AdminGenreDelete(svc, nil), req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "genre is in use by songs", decodeError(t, rec).Error.Message)
}

func TestGenreList(t *testing.T) {
	rec := httptest.NewRecorder()
	GenreList(&stubGenres{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/genres", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Rock")
}
