package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestNodes(t *testing.T, n int) ([]*redis.Client, func()) {
	var clients []*redis.Client
	var servers []*miniredis.Miniredis
	for i := 0; i < n; i++ {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		servers = append(servers, mr)
		clients = append(clients, redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	}
	return clients, func() {
		for _, c := range clients {
			_ = c.Close()
		}
		for _, s := range servers {
			s.Close()
		}
	}
}

func TestAcquireRelease(t *testing.T) {
	clients, cleanup := newTestNodes(t, 3)
	defer cleanup()

	rl := New(clients...)
	ctx := context.Background()

	l, err := rl.Acquire(ctx, "room:abc", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, l)

	require.NoError(t, l.Release(ctx))
}

func TestAcquireContendedSingleWinner(t *testing.T) {
	clients, cleanup := newTestNodes(t, 3)
	defer cleanup()

	rl := New(clients...)
	ctx := context.Background()

	l1, err := rl.Acquire(ctx, "room:contended", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, l1)

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = rl.Acquire(shortCtx, "room:contended", 5*time.Second)
	require.Error(t, err)

	require.NoError(t, l1.Release(ctx))

	l2, err := rl.Acquire(ctx, "room:contended", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, l2)
}

func TestExtend(t *testing.T) {
	clients, cleanup := newTestNodes(t, 3)
	defer cleanup()

	rl := New(clients...)
	ctx := context.Background()

	l, err := rl.Acquire(ctx, "room:extend", 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, l.Extend(ctx, 5*time.Second))
	require.NoError(t, l.Release(ctx))
}

func TestQuorumDegradesGracefully(t *testing.T) {
	clients, cleanup := newTestNodes(t, 3)
	defer cleanup()

	// Kill one node's reachability by closing its client early; quorum of 2/3 still holds.
	require.NoError(t, clients[2].Close())

	rl := New(clients...)
	ctx := context.Background()

	l, err := rl.Acquire(ctx, "room:degraded", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, l)
}
