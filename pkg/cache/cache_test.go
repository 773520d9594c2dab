package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0, zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	assert.Nil(t, c.Get(ctx, "user:1"))

	c.Set(ctx, "user:1", []byte(`{"userId":1}`), time.Minute)
	assert.Equal(t, []byte(`{"userId":1}`), c.Get(ctx, "user:1"))

	mr.FastForward(2 * time.Minute)
	assert.Nil(t, c.Get(ctx, "user:1"))

	c.Set(ctx, "user:2", []byte("x"), time.Minute)
	c.Delete(ctx, "user:2")
	assert.False(t, mr.Exists("user:2"))
}

func TestClientFailsSafe(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0, zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	mr.Close()

	assert.NotPanics(t, func() {
		c.Set(ctx, "k", []byte("v"), time.Minute)
		c.Delete(ctx, "k")
	})
	assert.Nil(t, c.Get(ctx, "k"))
	assert.Error(t, c.Ping(ctx))
}

func TestNilClient(t *testing.T) {
	var c *Client
	ctx := context.Background()

	assert.Nil(t, c.Get(ctx, "k"))
	assert.NotPanics(t, func() {
		c.Set(ctx, "k", []byte("v"), time.Minute)
		c.Delete(ctx, "k")
	})
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}
