package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/musicportal-backend/internal/catalog"
	pkgAuth "github.com/angelmondragon/musicportal-backend/pkg/auth"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
)

type stubQuery struct {
	params catalog.QueryParams
}

func (s *stubQuery) Query(ctx context.Context, params catalog.QueryParams) (*catalog.QueryResult, error) {
	s.params = params
	return &catalog.QueryResult{Items: []catalog.SongDTO{}, Page: params.Page}, nil
}

type stubSongs struct {
	actor       pkgAuth.Actor
	upload      catalog.UploadInput
	uploadBody  []byte
	update      catalog.UpdateInput
	updatedID   uuid.UUID
	deletedID   uuid.UUID
	err         error
	ownerListed uuid.UUID
}

func (s *stubSongs) Upload(ctx context.Context, actor pkgAuth.Actor, input catalog.UploadInput) (*catalog.SongDTO, error) {
	s.actor, s.upload = actor, input
	if input.File != nil {
		s.uploadBody, _ = io.ReadAll(input.File.Body)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.SongDTO{ID: uuid.New(), Title: input.Title}, nil
}

func (s *stubSongs) Update(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, input catalog.UpdateInput) (*catalog.SongDTO, error) {
	s.actor, s.updatedID, s.update = actor, id, input
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.SongDTO{ID: id}, nil
}

func (s *stubSongs) Delete(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) error {
	s.actor, s.deletedID = actor, id
	return s.err
}

func (s *stubSongs) Get(ctx context.Context, id uuid.UUID) (*catalog.SongDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.SongDTO{ID: id}, nil
}

func (s *stubSongs) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]catalog.SongDTO, error) {
	s.ownerListed = ownerID
	return []catalog.SongDTO{}, nil
}

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestSongQueryParsesParameters(t *testing.T) {
	svc := &stubQuery{}
	genreID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/songs?search=love&genre_id="+genreID.String()+"&sort=title_desc&page=2&page_size=5", nil)
	rec := httptest.NewRecorder()
	SongQuery(svc, 100, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "love", svc.params.Search)
	require.Equal(t, genreID, *svc.params.GenreID)
	require.Equal(t, enums.SongSortTitleDesc, svc.params.Sort)
	require.Equal(t, 2, svc.params.Page)
	require.Equal(t, 5, svc.params.PageSize)
}

func TestSongQueryDefaults(t *testing.T) {
	svc := &stubQuery{}
	rec := httptest.NewRecorder()
	SongQuery(svc, 100, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/songs?sort=bogus", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, svc.params.Page)
	require.Equal(t, 0, svc.params.PageSize)
	require.Nil(t, svc.params.GenreID)
	require.Equal(t, enums.SongSortTitleAsc, svc.params.Sort)
}

func TestSongQueryRejectsBadInput(t *testing.T) {
	for _, query := range []string{"?page=abc", "?page_size=500", "?genre_id=nope"} {
		rec := httptest.NewRecorder()
		SongQuery(&stubQuery{}, 100, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/songs"+query, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, "query %q", query)
	}
}

func TestSongQueryPageBelowOneIsEmptyPage(t *testing.T) {
	for _, page := range []int{0, -3} {
		svc := &stubQuery{}
		rec := httptest.NewRecorder()
		target := fmt.Sprintf("/api/v1/songs?page=%d", page)
		SongQuery(svc, 100, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		require.Equal(t, http.StatusOK, rec.Code, "page %d", page)
		require.Equal(t, page, svc.params.Page)

		var body struct {
			Data struct {
				Items []json.RawMessage `json:"items"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Empty(t, body.Data.Items)
	}
}

func TestSongUploadMultipart(t *testing.T) {
	svc := &stubSongs{}
	userID := uuid.New()
	genreID := uuid.New()
	body, contentType := multipartBody(t, map[string]string{
		"title":    "Blue",
		"artist":   "Band",
		"genre_id": genreID.String(),
	}, "blue.mp3", []byte("ID3 audio"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/songs", body)
	req.Header.Set("Content-Type", contentType)
	req = withActor(req, userID, enums.RoleUser)
	rec := httptest.NewRecorder()
	SongUpload(svc, 1<<20, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, userID, svc.actor.UserID)
	require.Equal(t, "Blue", svc.upload.Title)
	require.Equal(t, genreID, svc.upload.GenreID)
	require.Equal(t, "blue.mp3", svc.upload.File.Filename)
	require.Equal(t, []byte("ID3 audio"), svc.uploadBody)
}

func TestSongUploadWithoutFileReachesService(t *testing.T) {
	svc := &stubSongs{err: pkgerrors.New(pkgerrors.CodeValidation, "invalid song").WithDetails(map[string]string{"file": "file is required"})}
	body, contentType := multipartBody(t, map[string]string{"title": "Blue"}, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/songs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	SongUpload(svc, 1<<20, nil).ServeHTTP(rec, withActor(req, uuid.New(), enums.RoleUser))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, svc.upload.File)
	require.Contains(t, decodeError(t, rec).Error.Details, "file")
}

func TestSongUploadTooLarge(t *testing.T) {
	svc := &stubSongs{}
	body, contentType := multipartBody(t, map[string]string{"title": "Big"}, "big.mp3", bytes.Repeat([]byte("a"), 3<<20))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/songs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	SongUpload(svc, 1024, nil).ServeHTTP(rec, withActor(req, uuid.New(), enums.RoleUser))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "", svc.upload.Title)
}

func TestSongUpdatePartialFields(t *testing.T) {
	svc := &stubSongs{}
	songID := uuid.New()
	body, contentType := multipartBody(t, map[string]string{"artist": "New Artist"}, "", nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/songs/"+songID.String(), body)
	req.Header.Set("Content-Type", contentType)
	req = withActor(req, uuid.New(), enums.RoleUser)
	rec := serveRoute(http.MethodPatch, "/api/v1/songs/{songId}", SongUpdate(svc, 1<<20, nil), req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, songID, svc.updatedID)
	require.Nil(t, svc.update.Title)
	require.NotNil(t, svc.update.Artist)
	require.Equal(t, "New Artist", *svc.update.Artist)
	require.Nil(t, svc.update.GenreID)
	require.Nil(t, svc.update.File)
}

func TestSongDeleteForbidden(t *testing.T) {
	svc := &stubSongs{err: pkgerrors.New(pkgerrors.CodeForbidden, "only the owner or an administrator may change this song")}
	songID := uuid.New()
	req := withActor(httptest.NewRequest(http.MethodDelete, "/api/v1/songs/"+songID.String(), nil), uuid.New(), enums.RoleUser)
	rec := serveRoute(http.MethodDelete, "/api/v1/songs/{songId}", SongDelete(svc, nil), req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, songID, svc.deletedID)
}

func TestSongGet(t *testing.T) {
	songID := uuid.New()
	rec := serveRoute(http.MethodGet, "/api/v1/songs/{songId}", SongGet(&stubSongs{}, nil), httptest.NewRequest(http.MethodGet, "/api/v1/songs/"+songID.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data catalog.SongDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, songID, env.Data.ID)
}
