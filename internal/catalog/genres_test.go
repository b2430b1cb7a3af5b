package catalog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/musicportal-backend/pkg/db/dbtest"
	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenreLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewGenreService(GenreServiceParams{DB: conn, CacheTTL: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	rock, err := svc.Create(ctx, "  Rock ")
	require.NoError(t, err)
	assert.Equal(t, "Rock", rock.Name)

	_, err = svc.Create(ctx, "rock")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = svc.Create(ctx, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Create(ctx, strings.Repeat("x", 65))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	renamed, err := svc.Rename(ctx, rock.ID, "Rock & Roll")
	require.NoError(t, err)
	assert.Equal(t, "Rock & Roll", renamed.Name)

	// Renaming to its own name is not a conflict.
	_, err = svc.Rename(ctx, rock.ID, "Rock & Roll")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, uuid.New(), "Ghost")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	got, err := svc.Get(ctx, rock.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rock & Roll", got.Name)

	require.NoError(t, svc.Delete(ctx, rock.ID))
	_, err = svc.Get(ctx, rock.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(svc.Delete(ctx, rock.ID), pkgerrors.CodeNotFound))
}

func TestGenreListIsCachedAndInvalidated(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewGenreService(GenreServiceParams{DB: conn, CacheTTL: time.Hour})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Create(ctx, "Pop")
	require.NoError(t, err)
	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// A write behind the service's back is invisible until the cache is dropped.
	require.NoError(t, conn.Create(&models.Genre{Name: "Jazz"}).Error)
	list, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.Create(ctx, "Classical")
	require.NoError(t, err)
	list, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Classical", "Jazz", "Pop"}, []string{list[0].Name, list[1].Name, list[2].Name})
}

func TestGenreDeleteInUseConflicts(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewGenreService(GenreServiceParams{DB: conn})
	require.NoError(t, err)

	owner := seedAccount(t, conn, "melody")
	genre := seedGenre(t, conn, "Jazz")
	seedSong(t, conn, "So What", "Miles Davis", genre.ID, owner.ID)

	err = svc.Delete(context.Background(), genre.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = svc.Get(context.Background(), genre.ID)
	require.NoError(t, err)
}
