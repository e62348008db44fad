package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKVTest(t *testing.T) (*KV, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := Init(context.Background(), &ClientOptions{Address: mr.Addr()})
	require.NoError(t, err)

	kv := NewKV(client, "fdss:test")
	t.Cleanup(func() {
		kv.Close()
		mr.Close()
	})
	return kv, mr
}

func TestKVSetAndGetMany(t *testing.T) {
	kv, mr := newKVTest(t)
	ctx := context.Background()

	require.NoError(t, kv.SetMany(ctx, map[string]string{"token": "t1", "user": "{}"}))

	got, err := kv.GetMany(ctx, "token", "user", "absent")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"token": "t1", "user": "{}"}, got)

	raw, err := mr.Get("fdss:test:token")
	require.NoError(t, err)
	assert.Equal(t, "t1", raw)
}

func TestKVDeleteIdempotent(t *testing.T) {
	kv, mr := newKVTest(t)
	ctx := context.Background()

	require.NoError(t, kv.SetMany(ctx, map[string]string{"token": "t1", "user": "{}"}))
	require.NoError(t, kv.DeleteMany(ctx, "token", "user"))
	require.NoError(t, kv.DeleteMany(ctx, "token", "user"))

	assert.False(t, mr.Exists("fdss:test:token"))
	got, err := kv.GetMany(ctx, "token", "user")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInitFailsWhenUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = Init(context.Background(), &ClientOptions{Address: addr})
	assert.Error(t, err)
}
