package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() (*Client, *fakeCommands) {
	fake := &fakeCommands{data: map[string]string{}, counters: map[string]int64{}, ttl: map[string]time.Duration{}}
	return &Client{Keys: DefaultNamespace, cmd: fake}, fake
}

func TestIncrWithTTLSetsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	client, fake := newTestClient()

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, "mp:rate_limit:login", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, time.Minute, fake.ttl["mp:rate_limit:login"])
	assert.Equal(t, 1, fake.expireSet, "EXPIRE NX only takes effect for the first call")
}

func TestGetMissIsReported(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient()
	key := client.AccessSessionKey("jti-1")

	require.NoError(t, client.Set(ctx, key, "digest", time.Minute))
	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "digest", got)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.True(t, IsMiss(err))
}

func TestSetNXOnlyOnce(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient()
	key := client.IdempotencyKey("approve", "abc")

	ok, err := client.SetNX(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = client.SetNX(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUninitializedClient(t *testing.T) {
	var nilClient *Client
	assert.ErrorIs(t, nilClient.Ping(context.Background()), ErrNotInitialized)
	assert.NoError(t, nilClient.Close())

	empty := &Client{}
	_, err := empty.IncrWithTTL(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestKeys(t *testing.T) {
	var k Keys
	assert.Equal(t, "mp:idempotency:scope:id", k.IdempotencyKey("scope", "id"))
	assert.Equal(t, "mp:idempotency:scope", k.IdempotencyKey("scope", " "))
	assert.Equal(t, "mp:rate_limit:login:ip", k.RateLimitKey("login:ip"))
	assert.Equal(t, "test:session:access:jti", Keys("test").AccessSessionKey("jti"))
}

func TestOptionsMergeConfigIntoURL(t *testing.T) {
	opts, err := options(config.RedisConfig{URL: "redis://:pw@cache:6380/3", PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = options(config.RedisConfig{Address: "localhost:6379", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)

	_, err = options(config.RedisConfig{})
	assert.Error(t, err)
}

type fakeCommands struct {
	data      map[string]string
	counters  map[string]int64
	ttl       map[string]time.Duration
	expireSet int
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *fakeCommands) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	if _, ok := f.ttl[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.ttl[key] = ttl
	f.expireSet++
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
