package intake

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/angelmondragon/musicportal-backend/pkg/storage/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mp3 frame header followed by filler.
var mp3Bytes = append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), bytes.Repeat([]byte{0xAA}, 4096)...)

func newTestService(t *testing.T, maxBytes int64) (Service, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "songs")
	store, err := local.New(dir, nil)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Store: store, MaxBytes: maxBytes})
	require.NoError(t, err)
	return svc, dir
}

func TestStoreWritesFileUnderUUIDKey(t *testing.T) {
	svc, dir := newTestService(t, 0)

	stored, err := svc.Store(context.Background(), Upload{
		Filename: `C:\music\My Song.MP3`,
		Size:     int64(len(mp3Bytes)),
		Body:     bytes.NewReader(mp3Bytes),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(stored.Key, ".mp3"))
	assert.Equal(t, "/songs/"+stored.Key, stored.Reference)
	assert.Equal(t, "My Song.MP3", stored.OriginalFilename)
	assert.Equal(t, "audio/mpeg", stored.ContentType)
	assert.EqualValues(t, len(mp3Bytes), stored.SizeBytes)

	data, err := os.ReadFile(filepath.Join(dir, stored.Key))
	require.NoError(t, err)
	assert.Equal(t, mp3Bytes, data)
}

func TestStoreSameFilenameDoesNotOverwrite(t *testing.T) {
	svc, dir := newTestService(t, 0)

	first, err := svc.Store(context.Background(), Upload{Filename: "song.mp3", Size: -1, Body: strings.NewReader("first")})
	require.NoError(t, err)
	second, err := svc.Store(context.Background(), Upload{Filename: "song.mp3", Size: -1, Body: strings.NewReader("second")})
	require.NoError(t, err)
	require.NotEqual(t, first.Key, second.Key)

	data, err := os.ReadFile(filepath.Join(dir, first.Key))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestStoreEmptyPayloadWritesNothing(t *testing.T) {
	svc, dir := newTestService(t, 0)

	cases := []Upload{
		{Filename: "empty.mp3", Size: 0, Body: strings.NewReader("")},
		{Filename: "empty.mp3", Size: -1, Body: strings.NewReader("")},
		{Filename: "nil.mp3", Size: 10, Body: nil},
	}
	for _, upload := range cases {
		_, err := svc.Store(context.Background(), upload)
		require.ErrorIs(t, err, ErrEmptyPayload)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	}

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "songs directory should not be created for empty uploads")
}

func TestStoreCreatesMissingDirectory(t *testing.T) {
	svc, dir := newTestService(t, 0)
	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))

	_, err = svc.Store(context.Background(), Upload{Filename: "a.wav", Size: 3, Body: strings.NewReader("abc")})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStoreEnforcesMaxBytes(t *testing.T) {
	svc, dir := newTestService(t, 4)

	_, err := svc.Store(context.Background(), Upload{Filename: "big.mp3", Size: 10, Body: strings.NewReader("0123456789")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	// Undeclared sizes are caught after the write and cleaned up.
	_, err = svc.Store(context.Background(), Upload{Filename: "big.mp3", Size: -1, Body: strings.NewReader("0123456789")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestStoreFallsBackToSniffedExtension(t *testing.T) {
	svc, _ := newTestService(t, 0)
	stored, err := svc.Store(context.Background(), Upload{Filename: "noext", Size: -1, Body: bytes.NewReader(mp3Bytes)})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Key, ".mp3"), stored.Key)

	stored, err = svc.Store(context.Background(), Upload{Filename: "weird.m p3", Size: -1, Body: strings.NewReader("plain text")})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Key, ".txt"), stored.Key)
}

type failingStore struct {
	removed []string
}

func (f *failingStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	return 0, errors.New("disk full")
}

func (f *failingStore) Remove(ctx context.Context, key string) error {
	f.removed = append(f.removed, key)
	return nil
}

func TestStoreReportsStorageFailure(t *testing.T) {
	svc, err := NewService(ServiceParams{Store: &failingStore{}})
	require.NoError(t, err)

	_, err = svc.Store(context.Background(), Upload{Filename: "a.mp3", Size: 3, Body: strings.NewReader("abc")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorage), "got %v", err)
}

func TestRemove(t *testing.T) {
	svc, dir := newTestService(t, 0)
	stored, err := svc.Store(context.Background(), Upload{Filename: "a.mp3", Size: 3, Body: strings.NewReader("abc")})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(context.Background(), stored.Reference))
	_, err = os.Stat(filepath.Join(dir, stored.Key))
	assert.True(t, os.IsNotExist(err))

	// Removing twice is fine.
	require.NoError(t, svc.Remove(context.Background(), stored.Reference))

	for _, ref := range []string{"/other/x.mp3", "/songs/../etc/passwd", "/songs/"} {
		err := svc.Remove(context.Background(), ref)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "ref %q got %v", ref, err)
	}
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
