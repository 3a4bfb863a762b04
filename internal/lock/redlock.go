// Package lock implements the Redlock distributed mutual exclusion algorithm
// against a set of independent Redis nodes.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/amazingchow/game-companion-gateway/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when a quorum of nodes could not be locked.
var ErrNotAcquired = errors.New("lock: failed to acquire quorum")

const (
	defaultRetryCount = 3
	defaultRetryDelay = 200 * time.Millisecond
	clockDriftFactor  = 0.01
)

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Lock represents a held Redlock, returned by Acquire.
type Lock struct {
	resource string
	value    string
	validity time.Duration
	clients  []*redis.Client
}

// Redlock coordinates a quorum lock across N independent Redis clients.
type Redlock struct {
	clients []*redis.Client
	quorum  int
}

// New builds a Redlock instance from a set of independent Redis node clients.
// Passing a single client degrades to a conventional single-node lock, still
// useful in development.
func New(clients ...*redis.Client) *Redlock {
	return &Redlock{
		clients: clients,
		quorum:  len(clients)/2 + 1,
	}
}

// Acquire attempts to lock resource for the given ttl, retrying up to
// defaultRetryCount times with defaultRetryDelay between attempts.
func (r *Redlock) Acquire(ctx context.Context, resource string, ttl time.Duration) (*Lock, error) {
	value, err := uniqueToken()
	if err != nil {
		return nil, fmt.Errorf("lock: generate token: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < defaultRetryCount; attempt++ {
		start := time.Now()
		n := 0
		for _, c := range r.clients {
			ok, err := c.SetNX(ctx, resource, value, ttl).Result()
			if err == nil && ok {
				n++
			}
		}

		drift := time.Duration(math.Ceil(clockDriftFactor*float64(ttl))) + 2*time.Millisecond
		validity := ttl - time.Since(start) - drift

		if n >= r.quorum && validity > 0 {
			metrics.LockAcquireTotal.WithLabelValues(resource, "acquired").Inc()
			return &Lock{resource: resource, value: value, validity: validity, clients: r.clients}, nil
		}

		// quorum not reached (or validity already expired): release what we got and retry.
		l := &Lock{resource: resource, value: value, clients: r.clients}
		_ = l.Release(ctx)
		lastErr = ErrNotAcquired

		select {
		case <-ctx.Done():
			metrics.LockAcquireTotal.WithLabelValues(resource, "timeout").Inc()
			return nil, ctx.Err()
		case <-time.After(defaultRetryDelay):
		}
	}

	metrics.LockAcquireTotal.WithLabelValues(resource, "failed").Inc()
	return nil, lastErr
}

// Release unlocks resource on every node using a compare-and-delete Lua script
// so a lock is never released by a holder that has since lost and reacquired it.
func (l *Lock) Release(ctx context.Context) error {
	for _, c := range l.clients {
		_ = unlockScript.Run(ctx, c, []string{l.resource}, l.value).Err()
	}
	return nil
}

// Extend pushes the lock's expiry out by ttl on every node that still holds it,
// via a compare-and-pexpire Lua script.
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	n := 0
	for _, c := range l.clients {
		res, err := extendScript.Run(ctx, c, []string{l.resource}, l.value, ttl.Milliseconds()).Int64()
		if err == nil && res == 1 {
			n++
		}
	}
	quorum := len(l.clients)/2 + 1
	if n < quorum {
		return ErrNotAcquired
	}
	l.validity = ttl
	return nil
}

// uniqueToken produces a random value suitable as the Redlock fencing token.
func uniqueToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
