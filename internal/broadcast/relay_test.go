package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"versus-backend/internal/metrics"
	"versus-backend/pkg/logger"
	"versus-backend/pkg/redis"
)

type node struct {
	hub   *Hub
	relay *RedisRelay
}

func startNode(t *testing.T, ctx context.Context, addr string) node {
	t.Helper()
	client, err := redis.NewClient("redis://"+addr, "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub(logger.NewNop(), metrics.NewNop())
	relay := NewRedisRelay(client, hub, logger.NewNop())
	hub.SetForwarder(relay)

	hub.Start(ctx)
	go func() { _ = relay.Run(ctx) }()

	select {
	case <-relay.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}
	return node{hub: hub, relay: relay}
}

func TestRedisRelay_FansOutAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startNode(t, ctx, mr.Addr())
	b := startNode(t, ctx, mr.Addr())
	assert.NotEqual(t, a.relay.Origin(), b.relay.Origin())

	subA, err := a.hub.Join("battle-1")
	require.NoError(t, err)
	subB, err := b.hub.Join("battle-1")
	require.NoError(t, err)

	a.hub.Publish(NewEvent(EventVoteUpdate, "battle-1", map[string]int{"totalVotes": 3}))

	local := receive(t, subA)
	assert.Equal(t, map[string]int{"totalVotes": 3}, local.Data)

	remote := receive(t, subB)
	assert.Equal(t, EventVoteUpdate, remote.Type)
	assert.Equal(t, "battle-1", remote.BattleID)
	assert.JSONEq(t, `{"totalVotes":3}`, string(remote.Data.(json.RawMessage)))

	// The origin never receives its own event twice.
	assertNoEvent(t, subA)
}

func TestRedisRelay_IgnoresMalformedMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := startNode(t, ctx, mr.Addr())
	sub, err := n.hub.Join("x")
	require.NoError(t, err)

	mr.Publish(n.relay.channel, "not json")
	assertNoEvent(t, sub)
}
