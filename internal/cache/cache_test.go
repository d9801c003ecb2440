package cache

import (
	"context"
	"testing"
	"time"

	"storefront-sync/internal/redisclient"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisclient.NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, zap.NewNop()), mr
}

func newMemoryStore(t *testing.T) (*MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, err := NewMemoryStore(16)
	require.NoError(t, err)
	return s.WithClock(clock.now), clock
}

func TestKey(t *testing.T) {
	assert.Equal(t, "product:42", Key("product", "42"))
}

func testStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	_, ok := s.Get(ctx, "product:1")
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "product:1", `{"id":"1"}`, time.Hour))
	v, ok := s.Get(ctx, "product:1")
	require.True(t, ok)
	assert.Equal(t, `{"id":"1"}`, v)

	require.NoError(t, s.Set(ctx, "product:1", `{"id":"1","title":"b"}`, time.Hour))
	v, _ = s.Get(ctx, "product:1")
	assert.Equal(t, `{"id":"1","title":"b"}`, v)

	n, err := s.Delete(ctx, "product:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Delete(ctx, "product:1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, ok = s.Get(ctx, "product:1")
	assert.False(t, ok)
}

func TestRedisStoreContract(t *testing.T) {
	s, _ := newRedisStore(t)
	testStoreContract(t, s)
}

func TestMemoryStoreContract(t *testing.T) {
	s, _ := newMemoryStore(t)
	testStoreContract(t, s)
}

func TestRedisStoreTTL(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "product:42", "v", DefaultTTL))
	assert.Equal(t, DefaultTTL, mr.TTL("product:42"))

	mr.FastForward(3599 * time.Second)
	_, ok := s.Get(ctx, "product:42")
	assert.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok = s.Get(ctx, "product:42")
	assert.False(t, ok)
}

func TestMemoryStoreTTL(t *testing.T) {
	s, clock := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "product:42", "v", DefaultTTL))

	clock.advance(3599 * time.Second)
	_, ok := s.Get(ctx, "product:42")
	assert.True(t, ok)

	clock.advance(2 * time.Second)
	_, ok = s.Get(ctx, "product:42")
	assert.False(t, ok)
}

func TestMemoryStoreWithoutTTLNeverExpires(t *testing.T) {
	s, clock := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	clock.advance(365 * 24 * time.Hour)

	v, ok := s.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	s, err := NewMemoryStore(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "1", 0))
	require.NoError(t, s.Set(ctx, "b", "2", 0))
	_, _ = s.Get(ctx, "a")
	require.NoError(t, s.Set(ctx, "c", "3", 0))

	_, ok := s.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = s.Get(ctx, "a")
	assert.True(t, ok)
}

func TestRedisStoreGetSwallowsErrors(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	mr.Close()

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)

	_, err := s.Delete(ctx, "k")
	assert.Error(t, err)
}
