package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/shopagent/graph/store"
)

func newRedisStore(t *testing.T, opts ...store.RedisOption) (*store.RedisStore[testState], *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	st := store.NewRedisStoreFromClient[testState](client, opts...)
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func TestRedisStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) store.Store[testState] {
		st, _ := newRedisStore(t)
		return st
	})
}

func TestRedisStore_KeyLayout(t *testing.T) {
	st, mr := newRedisStore(t, store.WithKeyPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, checkpoint("thread-1", 1, "coordinator", 1)))

	assert.True(t, mr.Exists("test:thread-1:steps"))
	assert.True(t, mr.Exists("test:thread-1:data"))

	members, err := mr.ZMembers("test:thread-1:steps")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, members)
}

func TestRedisStore_TTLExpiration(t *testing.T) {
	st, mr := newRedisStore(t, store.WithThreadTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, checkpoint("ttl", 1, "n", 1)))
	_, err := st.Load(ctx, "ttl")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = st.Load(ctx, "ttl")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisStore_Ping(t *testing.T) {
	st, mr := newRedisStore(t)
	assert.NoError(t, st.Ping(context.Background()))

	mr.Close()
	assert.Error(t, st.Ping(context.Background()))
}
