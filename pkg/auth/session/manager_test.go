package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/musicportal-backend/pkg/config"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return "sess:" + accessID
}

func newTestManager(store *mockStore) *Manager {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Manager{store: store, keyer: store, ttl: time.Hour, now: func() time.Time { return issued }}
}

func TestGenerateStoresDigestNotToken(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(store)

	token, err := manager.Generate(context.Background(), "access-123")
	require.NoError(t, err)

	raw := store.data[store.AccessSessionKey("access-123")]
	require.NotContains(t, raw, token)

	var rec record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	require.Equal(t, digest(token), rec.Digest)
	require.Equal(t, 2026, rec.IssuedAt.Year())
}

func TestRotateIssuesNewSessionAndClosesOld(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(store)
	ctx := context.Background()

	token, err := manager.Generate(ctx, "access-123")
	require.NoError(t, err)

	_, _, err = manager.Rotate(ctx, "access-123", "wrong")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	newAccessID, newToken, err := manager.Rotate(ctx, "access-123", token)
	require.NoError(t, err)
	require.NotEqual(t, token, newToken)

	ok, err := manager.HasSession(ctx, "access-123")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = manager.HasSession(ctx, newAccessID)
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = manager.Rotate(ctx, "access-123", token)
	require.ErrorIs(t, err, ErrInvalidRefreshToken, "a rotated refresh token must not be reusable")
}

func TestRevokeEndsSession(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(store)
	ctx := context.Background()

	accessID := NewAccessID()
	_, err := manager.Generate(ctx, accessID)
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(ctx, accessID))
	ok, err := manager.HasSession(ctx, accessID)
	require.NoError(t, err)
	require.False(t, ok)

	require.Error(t, manager.Revoke(ctx, " "))
}

func TestCorruptSessionIsTreatedAsMissing(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(store)
	store.data[store.AccessSessionKey("legacy")] = "plain-refresh-token"

	ok, err := manager.HasSession(context.Background(), "legacy")
	require.NoError(t, err)
	require.False(t, ok)
}

type failingStore struct{ *mockStore }

func (f failingStore) Get(context.Context, string) (string, error) {
	return "", errors.New("redis down")
}

func TestHasSessionSurfacesStoreErrors(t *testing.T) {
	store := failingStore{newMockStore()}
	manager := &Manager{store: store, keyer: store, ttl: time.Hour}

	_, err := manager.HasSession(context.Background(), "access-1")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrInvalidRefreshToken))
}

func TestNewManagerValidatesConfig(t *testing.T) {
	_, err := NewManager(nil, config.JWTConfig{})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "redis"))
}
