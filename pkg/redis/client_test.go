package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	mr := miniredis.RunT(t)

	client, err := NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestNewClient_InvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "bad scheme", url: "invalid://url"},
		{name: "empty", url: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.url, "test", zap.NewNop())
			assert.Error(t, err)
			assert.Nil(t, client)
		})
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := NewClient("redis://"+addr, "test", nil)
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestClient_GetSet(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))

	val, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	mr.FastForward(2 * time.Minute)

	_, err = client.Get(ctx, "k")
	assert.ErrorIs(t, err, Nil)
}

func TestClient_Hash(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.HSet(ctx, "h", "dev-1", "red", "dev-2", "blue"))
	require.NoError(t, client.Expire(ctx, "h", time.Hour))

	val, err := client.HGet(ctx, "h", "dev-2")
	require.NoError(t, err)
	assert.Equal(t, "blue", val)

	all, err := client.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"dev-1": "red", "dev-2": "blue"}, all)

	_, err = client.HGet(ctx, "h", "missing")
	assert.ErrorIs(t, err, Nil)
}

func TestClient_Delete(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "a", "1", 0))
	require.NoError(t, client.Set(ctx, "b", "2", 0))
	require.NoError(t, client.Delete(ctx, "a", "b"))
	require.NoError(t, client.Delete(ctx))

	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
}

func TestClient_RunScript(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	incrBy := NewScript(`return redis.call('INCRBY', KEYS[1], ARGV[1])`)

	res, err := client.RunScript(ctx, incrBy, []string{"n"}, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res)

	res, err = client.RunScript(ctx, incrBy, []string{"n"}, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res)

	val, err := mr.Get("n")
	require.NoError(t, err)
	assert.Equal(t, "7", val)
}

func TestClient_PublishSubscribe(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "room")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, client.Publish(ctx, "room", "hello"))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Payload)
}

func TestClient_Health(t *testing.T) {
	mr, client := setupTestRedis(t)

	assert.NoError(t, client.Health(context.Background()))

	mr.Close()
	assert.Error(t, client.Health(context.Background()))
}

func TestPrefixForLog(t *testing.T) {
	assert.Equal(t, "short", prefixForLog("short"))
	assert.Equal(t, "prod:battle:abcdefghijkl…", prefixForLog("prod:battle:abcdefghijklmnop:view"))
}
