package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedForm struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func newTestManager(t *testing.T) (*CacheManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheManager(client), mr
}

func TestCacheHelper_SetGet(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, cm.Form.Set(ctx, FormKey(7), cachedForm{ID: 7, Title: "Simulado"}, 0))
	assert.True(t, mr.Exists("form:id:7"))
	assert.Equal(t, FormCacheConfig.TTL, mr.TTL("form:id:7"))

	var got cachedForm
	require.NoError(t, cm.Form.Get(ctx, FormKey(7), &got))
	assert.Equal(t, "Simulado", got.Title)

	err := cm.Form.Get(ctx, FormKey(8), &got)
	assert.True(t, errors.Is(err, ErrCacheNotFound))
}

func TestCacheHelper_NilClientDegrades(t *testing.T) {
	cm := NewCacheManager(nil)
	ctx := context.Background()

	assert.NoError(t, cm.Stats.Set(ctx, "x", 1, time.Minute))
	assert.NoError(t, cm.Stats.Delete(ctx, "x"))
	assert.NoError(t, cm.Stats.InvalidatePattern(ctx, "*"))

	var v int
	assert.ErrorIs(t, cm.Stats.Get(ctx, "x", &v), ErrCacheNotAvailable)
	assert.ErrorIs(t, cm.HealthCheck(ctx), ErrCacheNotAvailable)

	calls := 0
	err := cm.Stats.CacheOrExecute(ctx, "x", &v, func() (interface{}, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return cachedForm{ID: 1, Title: "fresh"}, nil
	}

	var first cachedForm
	require.NoError(t, cm.Form.CacheOrExecute(ctx, FormKey(1), &first, fetch))
	assert.Equal(t, "fresh", first.Title)

	require.Eventually(t, func() bool { return mr.Exists("form:id:1") }, time.Second, 10*time.Millisecond)

	var second cachedForm
	require.NoError(t, cm.Form.CacheOrExecute(ctx, FormKey(1), &second, fetch))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestCacheHelper_CacheOrExecutePropagatesFetchError(t *testing.T) {
	cm, _ := newTestManager(t)
	boom := errors.New("boom")

	var v cachedForm
	err := cm.Form.CacheOrExecute(context.Background(), FormKey(3), &v, func() (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestInvalidateStats(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, cm.Stats.Set(ctx, "staff", 1, 0))
	require.NoError(t, cm.Stats.Set(ctx, "teacher:3", 2, 0))
	require.NoError(t, cm.Form.Set(ctx, FormKey(9), cachedForm{ID: 9}, 0))

	InvalidateFormCache(ctx, cm, 9)

	assert.False(t, mr.Exists("stats:staff"))
	assert.False(t, mr.Exists("stats:teacher:3"))
	assert.False(t, mr.Exists("form:id:9"))
}
