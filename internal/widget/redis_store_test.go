package widget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rahul4469/seemenu/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ttl), mr
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "seemenu:widget:abc", redisKey("abc"))
	assert.Equal(t, "seemenu:widget:abc:file:3", redisFileKey("abc", 3))
}

func TestRedisStoreUpdateAndLoad(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Hour)
	ctx := context.Background()

	s, err := store.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, &State{}, s)

	require.NoError(t, store.Update(ctx, "a", selectFile("menu.jpg", 16)))
	require.NoError(t, store.Update(ctx, "a", func(s *State) error {
		s.Result = &models.AnalysisResult{Success: true, Message: "ok"}
		return nil
	}))

	s, err = store.Load(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, s.File)
	assert.Equal(t, "menu.jpg", s.File.Name)
	assert.Len(t, s.File.Data, 16)
	assert.True(t, s.Result.Success)
	assert.Equal(t, int64(1), s.Selection)

	assert.Equal(t, time.Hour, mr.TTL(redisKey("a")))
	assert.Equal(t, time.Hour, mr.TTL(redisFileKey("a", 1)))
}

func TestRedisStoreKeepsBytesOutOfState(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, "a", selectFile("menu.jpg", 4096)))

	raw, err := mr.Get(redisKey("a"))
	require.NoError(t, err)
	assert.Less(t, len(raw), 1024, "state record holds metadata only")

	var sawBytes bool
	require.NoError(t, store.Update(ctx, "a", func(s *State) error {
		sawBytes = len(s.File.Data) > 0
		s.Loading = true
		return nil
	}))
	assert.False(t, sawBytes, "updates do not read the photo")

	s, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.True(t, s.Loading)
	assert.Len(t, s.File.Data, 4096, "metadata-only update leaves bytes in place")
}

func TestRedisStoreReselectReplacesFileKey(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, "a", selectFile("a.jpg", 8)))
	require.NoError(t, store.Update(ctx, "a", selectFile("b.jpg", 12)))

	assert.False(t, mr.Exists(redisFileKey("a", 1)), "previous photo removed")
	assert.True(t, mr.Exists(redisFileKey("a", 2)))

	s, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "b.jpg", s.File.Name)
	assert.Len(t, s.File.Data, 12)
}

func TestRedisStoreUpdateErrorSavesNothing(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Hour)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Update(ctx, "a", func(s *State) error {
		s.Loading = true
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, mr.Keys())
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, "a", selectFile("menu.jpg", 8)))
	mr.FastForward(2 * time.Minute)

	s, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, s.File)
	assert.False(t, s.Loading)
}

func TestRedisStoreDropsFileWhenBytesMissing(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, "a", selectFile("menu.jpg", 8)))
	mr.Del(redisFileKey("a", 1))

	s, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, s.File, "a file without bytes cannot be uploaded")
	assert.Equal(t, int64(1), s.Selection)
}

func TestRedisStoreRetriesOnConcurrentWrite(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Hour)
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = other.Close() })
	ctx := context.Background()

	calls := 0
	require.NoError(t, store.Update(ctx, "a", func(s *State) error {
		calls++
		if calls == 1 {
			require.NoError(t, other.Set(ctx, redisKey("a"), `{"loading":true}`, 0).Err())
		}
		s.Result = &models.AnalysisResult{Success: true}
		return nil
	}))
	assert.Equal(t, 2, calls, "losing the watch reruns fn on fresh state")

	s, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.True(t, s.Loading, "concurrent write is not overwritten")
	assert.True(t, s.Result.Success)
}

func TestRedisStoreGivesUpUnderContention(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Hour)
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = other.Close() })
	ctx := context.Background()

	calls := 0
	err := store.Update(ctx, "a", func(s *State) error {
		calls++
		return other.Set(ctx, redisKey("a"), `{}`, 0).Err()
	})
	assert.ErrorIs(t, err, ErrStoreContention)
	assert.Equal(t, redisMaxRetries, calls)
}

func TestRedisStoreHealth(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Hour)
	require.NoError(t, store.Health(context.Background()))

	mr.Close()
	assert.Error(t, store.Health(context.Background()))
}

func TestWidgetOnRedisStore(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Hour)
	analyzer := &fakeAnalyzer{result: &models.AnalysisResult{Success: true, Message: "ok", Dishes: []models.DishInfo{{Name: "Soup"}}}}
	w := New(store, analyzer, WithLogger(quietLogger()))
	ctx := context.Background()

	require.NoError(t, w.Select(ctx, session, "menu.png", "image/png", []byte("png")))
	_, err := w.Upload(ctx, session)
	require.NoError(t, err)

	require.Len(t, analyzer.calls, 1)
	assert.Equal(t, []byte("png"), analyzer.calls[0].Data)

	v, err := w.View(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,cG5n", v.Preview)
	assert.False(t, v.Loading)
	assert.True(t, v.HasDishes)
}
